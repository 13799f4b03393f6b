package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hoistlabs/datagate/internal/apperror"
)

// Repository defines the data access contract for the tenant registry.
type Repository interface {
	// FindByKeyPrefix loads the application whose api key starts with the
	// given prefix, including its environments, buckets, bucket members,
	// and environment members.
	FindByKeyPrefix(ctx context.Context, prefix string) (*Application, error)
}

// repository implements Repository with MariaDB queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates a new tenant repository.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// FindByKeyPrefix loads an application aggregate by api key prefix.
func (r *repository) FindByKeyPrefix(ctx context.Context, prefix string) (*Application, error) {
	query := `SELECT id, slug, api_key_prefix, api_key_hash, created_at
	          FROM applications WHERE api_key_prefix = ?`

	app := &Application{}
	err := r.db.QueryRowContext(ctx, query, prefix).Scan(
		&app.ID, &app.Slug, &app.APIKeyPrefix, &app.APIKeyHash, &app.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewForbidden("invalid api key")
	}
	if err != nil {
		return nil, fmt.Errorf("querying application by key prefix: %w", err)
	}

	if err := r.loadEnvironments(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// loadEnvironments populates the application's environments together with
// their buckets and members.
func (r *repository) loadEnvironments(ctx context.Context, app *Application) error {
	query := `SELECT id, application_id, name, token, is_default
	          FROM environments WHERE application_id = ? ORDER BY is_default DESC, name`

	rows, err := r.db.QueryContext(ctx, query, app.ID)
	if err != nil {
		return fmt.Errorf("querying environments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var env Environment
		if err := rows.Scan(&env.ID, &env.ApplicationID, &env.Name, &env.Token, &env.IsDefault); err != nil {
			return fmt.Errorf("scanning environment: %w", err)
		}
		app.Environments = append(app.Environments, env)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating environments: %w", err)
	}

	for i := range app.Environments {
		env := &app.Environments[i]
		if err := r.loadBuckets(ctx, env); err != nil {
			return err
		}
		if err := r.loadMembers(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// loadBuckets populates an environment's buckets and each bucket's member
// grants.
func (r *repository) loadBuckets(ctx context.Context, env *Environment) error {
	query := `SELECT b.id, b.bucket_key, b.owner_member_id, bm.member_id, bm.role
	          FROM buckets b
	          LEFT JOIN bucket_members bm ON bm.bucket_id = b.id
	          WHERE b.environment_id = ?
	          ORDER BY b.bucket_key, bm.member_id`

	rows, err := r.db.QueryContext(ctx, query, env.ID)
	if err != nil {
		return fmt.Errorf("querying buckets: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]int)
	for rows.Next() {
		var (
			id, key, owner string
			memberID, role sql.NullString
		)
		if err := rows.Scan(&id, &key, &owner, &memberID, &role); err != nil {
			return fmt.Errorf("scanning bucket: %w", err)
		}

		idx, seen := byID[id]
		if !seen {
			env.Buckets = append(env.Buckets, Bucket{ID: id, Key: key, OwnerMemberID: owner})
			idx = len(env.Buckets) - 1
			byID[id] = idx
		}
		if memberID.Valid {
			env.Buckets[idx].Members = append(env.Buckets[idx].Members, BucketMember{
				MemberID: memberID.String,
				Role:     role.String,
			})
		}
	}
	return rows.Err()
}

// loadMembers populates an environment's member list.
func (r *repository) loadMembers(ctx context.Context, env *Environment) error {
	query := `SELECT m.id, m.name, m.email
	          FROM members m
	          JOIN environment_members em ON em.member_id = m.id
	          WHERE em.environment_id = ?
	          ORDER BY m.name`

	rows, err := r.db.QueryContext(ctx, query, env.ID)
	if err != nil {
		return fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return fmt.Errorf("scanning member: %w", err)
		}
		env.Members = append(env.Members, m)
	}
	return rows.Err()
}
