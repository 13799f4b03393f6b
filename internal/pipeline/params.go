// Package pipeline contains the pure request-normalization steps of the
// gateway: deriving model path parameters from the URL and turning a raw
// request body into an ordered list of candidate entities. Nothing in this
// package performs I/O; every function is deterministic on its inputs, which
// is what keeps the error semantics (400 vs 403 vs 200) testable in
// isolation from the store and the rule engine.
package pipeline

import (
	"strings"

	"github.com/hoistlabs/datagate/internal/apperror"
)

// PathParams are the model coordinates derived from the request URL.
// Derived once per request and immutable afterward.
type PathParams struct {
	// ModelType is the caller-defined document type, taken from the first
	// path segment. Always non-empty for a recognized request and never
	// contains ':' — the type is a component of the store's composite
	// partition key <env>:<bucket>:<typePlural>.
	ModelType string

	// ModelID is the optional document key from the second path segment.
	// Empty when the URL addresses the whole collection.
	ModelID string
}

// ParsePath derives PathParams from a request path. The first segment is the
// model type, the second (if present) the model id; any further segments are
// ignored.
func ParsePath(rawPath string) (PathParams, error) {
	path := strings.TrimPrefix(rawPath, "/")
	segments := strings.Split(path, "/")

	if len(segments) < 1 || segments[0] == "" {
		return PathParams{}, apperror.NewBadRequest("url must contain a model name")
	}
	if strings.Contains(segments[0], ":") {
		return PathParams{}, apperror.NewBadRequest("model names cannot contain : characters")
	}

	params := PathParams{ModelType: segments[0]}
	if len(segments) > 1 && segments[1] != "" {
		params.ModelID = segments[1]
	}
	return params, nil
}
