package tenant

import "github.com/hoistlabs/datagate/internal/session"

// Resolution is the outcome of scope resolution. The "persist the bucket
// selection to the session" effect is expressed as an explicit output the
// caller applies, rather than a mutation buried inside resolution logic, so
// the resolver stays pure and testable.
type Resolution struct {
	// Scope is the effective partition for every store operation in the
	// request.
	Scope Scope

	// PersistBucket is non-nil when a bucket selection from the
	// x-bucket-key header passed the membership check and should be
	// written back to the session as the new default.
	PersistBucket *Bucket
}

// ResolveScope selects the partition a request operates against.
//
// Baseline is the environment's default partition. When an authenticated
// member session is present, an x-bucket-key header may narrow the scope to
// a bucket of the environment: the key is matched case-insensitively and the
// member must be listed on the bucket by identity. A header that names no
// bucket, or a bucket the member is not listed on, is silently ignored and
// the prior scope — the session-persisted selection if any, otherwise the
// default — is retained. Without a header, a previously persisted session
// bucket carries forward.
//
// The resolver performs no I/O; sess and env are already-loaded values.
func ResolveScope(env *Environment, sess *session.Session, bucketHeader string) Resolution {
	res := Resolution{
		Scope: Scope{
			ApplicationID:    env.ApplicationID,
			EnvironmentToken: env.Token,
		},
	}

	if !sess.HasMember() {
		return res
	}

	if bucketHeader != "" {
		if bucket := env.FindBucket(bucketHeader); bucket != nil && bucket.HasMember(sess.MemberID) {
			res.Scope.BucketKey = bucket.Key
			res.PersistBucket = bucket
			return res
		}
	}

	// Header absent or rejected: fall back to the session-persisted
	// selection when one exists.
	if sess.BucketKey != "" {
		res.Scope.BucketKey = sess.BucketKey
	}
	return res
}
