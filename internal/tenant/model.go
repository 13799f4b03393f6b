// Package tenant owns the multi-tenancy model of the gateway: applications,
// their environments, the optional buckets inside an environment, and the
// resolution of a request's effective TenantScope. The scope decides which
// store partition every operation in the request runs against, so this
// package is where tenant isolation is enforced.
package tenant

import (
	"strings"
	"time"
)

// Application is a tenant of the gateway. Each application authenticates
// with a single api key and owns one or more environments.
type Application struct {
	ID           string
	Slug         string
	APIKeyPrefix string
	APIKeyHash   string
	Environments []Environment
	CreatedAt    time.Time
}

// DefaultEnvironment returns the application's default environment, falling
// back to the first one when none is flagged. Nil when the application has
// no environments at all.
func (a *Application) DefaultEnvironment() *Environment {
	for i := range a.Environments {
		if a.Environments[i].IsDefault {
			return &a.Environments[i]
		}
	}
	if len(a.Environments) > 0 {
		return &a.Environments[0]
	}
	return nil
}

// Environment is a named deployment context of one application (e.g.
// "default", "dev"). Its token is the first component of every store
// partition the environment owns.
type Environment struct {
	ID            string
	ApplicationID string
	Name          string
	Token         string
	IsDefault     bool
	Buckets       []Bucket
	Members       []Member
}

// FindBucket looks up a bucket by key, case-insensitively. Returns nil when
// no bucket matches.
func (e *Environment) FindBucket(key string) *Bucket {
	for i := range e.Buckets {
		if strings.EqualFold(e.Buckets[i].Key, key) {
			return &e.Buckets[i]
		}
	}
	return nil
}

// Bucket is an optional sub-partition of an environment, restricted to the
// members listed on it.
type Bucket struct {
	ID            string
	Key           string
	OwnerMemberID string
	Members       []BucketMember
}

// HasMember reports whether the given member is listed on the bucket.
// Membership is checked by identity, never by name.
func (b *Bucket) HasMember(memberID string) bool {
	if memberID == "" {
		return false
	}
	for _, m := range b.Members {
		if m.MemberID == memberID {
			return true
		}
	}
	return false
}

// BucketMember grants one environment member access to a bucket.
type BucketMember struct {
	MemberID string
	Role     string
}

// Member is a person belonging to an application's environments.
type Member struct {
	ID    string
	Name  string
	Email string
}

// Scope is the resolved partition coordinates a request operates against.
// Resolved once per request, then frozen and handed read-only to the store.
type Scope struct {
	ApplicationID    string
	EnvironmentToken string

	// BucketKey is empty for the environment's default partition.
	BucketKey string
}
