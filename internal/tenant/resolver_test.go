package tenant

import (
	"testing"

	"github.com/hoistlabs/datagate/internal/session"
)

// testEnvironment returns an environment with one bucket restricted to
// member-1.
func testEnvironment() *Environment {
	return &Environment{
		ApplicationID: "app-1",
		Name:          "_default",
		Token:         "default",
		IsDefault:     true,
		Buckets: []Bucket{
			{
				ID:            "b-1",
				Key:           "bucket_key",
				OwnerMemberID: "member-1",
				Members: []BucketMember{
					{MemberID: "member-1", Role: "User"},
				},
			},
		},
		Members: []Member{
			{ID: "member-1", Name: "someUser"},
			{ID: "member-2", Name: "otherUser"},
		},
	}
}

func TestResolveScopeBaseline(t *testing.T) {
	res := ResolveScope(testEnvironment(), nil, "")

	if res.Scope.ApplicationID != "app-1" {
		t.Errorf("ApplicationID = %q, want app-1", res.Scope.ApplicationID)
	}
	if res.Scope.EnvironmentToken != "default" {
		t.Errorf("EnvironmentToken = %q, want default", res.Scope.EnvironmentToken)
	}
	if res.Scope.BucketKey != "" {
		t.Errorf("BucketKey = %q, want empty", res.Scope.BucketKey)
	}
	if res.PersistBucket != nil {
		t.Error("no bucket should be persisted without a member session")
	}
}

func TestResolveScopeHeaderSelectsBucket(t *testing.T) {
	sess := &session.Session{ID: "s", ApplicationID: "app-1", MemberID: "member-1"}

	res := ResolveScope(testEnvironment(), sess, "bucket_key")

	if res.Scope.BucketKey != "bucket_key" {
		t.Errorf("BucketKey = %q, want bucket_key", res.Scope.BucketKey)
	}
	if res.PersistBucket == nil || res.PersistBucket.Key != "bucket_key" {
		t.Errorf("PersistBucket = %+v, want the matched bucket", res.PersistBucket)
	}
}

func TestResolveScopeHeaderIsCaseInsensitive(t *testing.T) {
	sess := &session.Session{ID: "s", ApplicationID: "app-1", MemberID: "member-1"}

	res := ResolveScope(testEnvironment(), sess, "BUCKET_KEY")

	// The canonical key is used on the scope, not the header spelling.
	if res.Scope.BucketKey != "bucket_key" {
		t.Errorf("BucketKey = %q, want bucket_key", res.Scope.BucketKey)
	}
}

func TestResolveScopeNonMemberHeaderIgnored(t *testing.T) {
	// member-2 is not listed on the bucket: the header is silently ignored
	// and the request proceeds against the prior scope — no error.
	sess := &session.Session{ID: "s", ApplicationID: "app-1", MemberID: "member-2"}

	res := ResolveScope(testEnvironment(), sess, "bucket_key")

	if res.Scope.BucketKey != "" {
		t.Errorf("BucketKey = %q, want empty (default scope)", res.Scope.BucketKey)
	}
	if res.PersistBucket != nil {
		t.Error("a rejected selection must not be persisted")
	}
}

func TestResolveScopeUnknownHeaderFallsBackToPersisted(t *testing.T) {
	sess := &session.Session{
		ID:            "s",
		ApplicationID: "app-1",
		MemberID:      "member-1",
		BucketKey:     "bucket_key",
	}

	res := ResolveScope(testEnvironment(), sess, "no_such_bucket")

	if res.Scope.BucketKey != "bucket_key" {
		t.Errorf("BucketKey = %q, want the session-persisted bucket_key", res.Scope.BucketKey)
	}
	if res.PersistBucket != nil {
		t.Error("fallback to the persisted bucket must not re-persist it")
	}
}

func TestResolveScopePersistedBucketCarriesForward(t *testing.T) {
	sess := &session.Session{
		ID:            "s",
		ApplicationID: "app-1",
		MemberID:      "member-1",
		BucketKey:     "bucket_key",
	}

	res := ResolveScope(testEnvironment(), sess, "")

	if res.Scope.BucketKey != "bucket_key" {
		t.Errorf("BucketKey = %q, want bucket_key", res.Scope.BucketKey)
	}
	if res.PersistBucket != nil {
		t.Error("carrying forward must not re-persist the bucket")
	}
}

func TestResolveScopeSessionWithoutMember(t *testing.T) {
	sess := &session.Session{ID: "s", ApplicationID: "app-1", BucketKey: "bucket_key"}

	res := ResolveScope(testEnvironment(), sess, "bucket_key")

	// Without an authenticated member neither the header nor the persisted
	// selection applies.
	if res.Scope.BucketKey != "" {
		t.Errorf("BucketKey = %q, want empty", res.Scope.BucketKey)
	}
}
