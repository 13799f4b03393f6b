// Package session manages the per-caller session state held in Redis.
// The gateway keeps exactly one piece of ambient state between requests:
// which member is attached to the session and which bucket that member last
// selected. Everything else about a request is derived fresh each time.
package session

import "time"

// Session is the state persisted in Redis between requests of the same
// caller. The bucket selection is written by the tenant resolver when an
// x-bucket-key header passes the membership check, and carried forward as
// the default scope for subsequent requests.
type Session struct {
	// ID is the opaque session identifier carried in the session cookie.
	ID string `json:"id"`

	// ApplicationID is the tenant application this session belongs to.
	ApplicationID string `json:"application_id"`

	// MemberID identifies the authenticated environment member, when one
	// is attached. Empty for plain api-key sessions with no member.
	MemberID string `json:"member_id,omitempty"`

	// BucketKey is the persisted bucket selection. Empty means the
	// environment's default partition.
	BucketKey string `json:"bucket_key,omitempty"`

	// CreatedAt records when the session was first established.
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether an authenticated member is attached.
func (s *Session) HasMember() bool {
	return s != nil && s.MemberID != ""
}
