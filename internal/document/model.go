// Package document implements document storage and the binding coordinator:
// the sequencing of parse → scope → normalize → bind → persist for writes,
// and the direct store delegation for reads and deletes. Documents are
// schemaless JSON objects addressed by a partition (derived from the tenant
// scope and model type) and a document id.
package document

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/gertd/go-pluralize"

	"github.com/hoistlabs/datagate/internal/apperror"
	"github.com/hoistlabs/datagate/internal/tenant"
)

// Document is a stored JSON document. The reserved keys "_type", "_id", and
// "_createdDate" are managed by the gateway; everything else is caller data.
type Document map[string]any

// ID returns the document's "_id" value, or "" when unset.
func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// defaultBucketKey is the partition component used when the scope has no
// bucket selected.
const defaultBucketKey = "default"

// plural pluralizes model type names for partition composition, matching
// the collection naming of the original store.
var plural = pluralize.NewClient()

// PartitionFor composes the store partition for a scope and model type:
// <environmentToken>:<bucketKeyOrDefault>:<modelTypePlural>. The path parser
// guarantees the model type carries no ':' so the composition is
// unambiguous.
func PartitionFor(scope tenant.Scope, modelType string) string {
	bucket := scope.BucketKey
	if bucket == "" {
		bucket = defaultBucketKey
	}
	return scope.EnvironmentToken + ":" + bucket + ":" + plural.Plural(modelType)
}

// SortField is one component of a collection sort.
type SortField struct {
	Field      string
	Descending bool
}

// QueryOptions are the read options for collection queries.
type QueryOptions struct {
	// Limit caps the number of returned documents; 0 means no cap.
	Limit int

	// Skip drops that many documents from the front of the result.
	Skip int

	// Sort orders the result by the given fields in sequence.
	Sort []SortField
}

// sortFieldPattern restricts sortable field names to simple identifiers and
// dotted paths. Sort fields end up inside a JSON path expression in SQL, so
// anything else is rejected up front.
var sortFieldPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.]*$`)

// ParseQueryOptions parses the limit, skip, and sort query parameters of a
// collection read. sort is a JSON-encoded array of [field, direction] pairs
// where direction is "asc"/"desc" (a numeric 1/-1 is tolerated for older
// clients).
func ParseQueryOptions(limitParam, skipParam, sortParam string) (QueryOptions, error) {
	var opts QueryOptions

	if limitParam != "" {
		if err := json.Unmarshal([]byte(limitParam), &opts.Limit); err != nil || opts.Limit < 0 {
			return QueryOptions{}, apperror.NewBadRequest("limit must be a non-negative number")
		}
	}
	if skipParam != "" {
		if err := json.Unmarshal([]byte(skipParam), &opts.Skip); err != nil || opts.Skip < 0 {
			return QueryOptions{}, apperror.NewBadRequest("skip must be a non-negative number")
		}
	}
	if sortParam != "" {
		sort, err := parseSortParam(sortParam)
		if err != nil {
			return QueryOptions{}, err
		}
		opts.Sort = sort
	}
	return opts, nil
}

// parseSortParam decodes a JSON array of [field, direction] pairs.
func parseSortParam(sortParam string) ([]SortField, error) {
	errSort := apperror.NewBadRequest("sort must be a JSON array of field/direction pairs")

	var pairs [][]any
	if err := json.Unmarshal([]byte(sortParam), &pairs); err != nil {
		return nil, errSort
	}

	sort := make([]SortField, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) != 2 {
			return nil, errSort
		}
		field, ok := pair[0].(string)
		if !ok || !sortFieldPattern.MatchString(field) {
			return nil, errSort
		}

		var descending bool
		switch dir := pair[1].(type) {
		case string:
			switch strings.ToLower(dir) {
			case "asc":
			case "desc":
				descending = true
			default:
				return nil, errSort
			}
		case float64:
			descending = dir < 0
		default:
			return nil, errSort
		}

		sort = append(sort, SortField{Field: field, Descending: descending})
	}
	return sort, nil
}
