package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session keys in Redis.
const keyPrefix = "sess:"

// ErrNotFound is returned when no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// Repository defines the session persistence contract.
type Repository interface {
	// Find loads a session by id. Returns ErrNotFound when the id is
	// unknown or expired.
	Find(ctx context.Context, id string) (*Session, error)

	// Save writes the session and refreshes its TTL.
	Save(ctx context.Context, sess *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error
}

// repository implements Repository on Redis. Sessions are stored as JSON
// blobs with a rolling TTL; a request that loads a session extends it.
type repository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRepository creates a Redis-backed session repository.
func NewRepository(rdb *redis.Client, ttl time.Duration) Repository {
	return &repository{rdb: rdb, ttl: ttl}
}

// New creates a fresh unsaved session for the given application.
func New(applicationID string) *Session {
	return &Session{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Find loads a session by id.
func (r *repository) Find(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}

	// Rolling expiry: activity keeps the session alive.
	if err := r.rdb.Expire(ctx, keyPrefix+id, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("refreshing session ttl: %w", err)
	}
	return &sess, nil
}

// Save writes the session and refreshes its TTL.
func (r *repository) Save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+sess.ID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *repository) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
