package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoistlabs/datagate/internal/apperror"
	"github.com/hoistlabs/datagate/internal/pipeline"
	"github.com/hoistlabs/datagate/internal/rules"
	"github.com/hoistlabs/datagate/internal/tenant"
)

// createdDateKey is the reserved document key for the store-assigned
// creation timestamp.
const createdDateKey = "_createdDate"

// Service is the binding coordinator. It owns the sequencing of a request
// once the scope is resolved: bind-and-save for writes, store delegation for
// reads and deletes. Failures short-circuit; nothing from a batch is
// persisted past a rule rejection.
type Service interface {
	// Write binds the normalized payload against the application's data
	// rules and persists the batch. The result mirrors the submitted
	// shape: a single document for an object body, a slice for an array
	// body, each including the store-assigned creation timestamp.
	Write(ctx context.Context, scope tenant.Scope, params pipeline.PathParams, payload pipeline.Payload, member map[string]any) (any, error)

	// Read returns one document when the path carries an id (404 when it
	// does not exist), otherwise the collection honoring the query
	// options. A collection read never returns nil.
	Read(ctx context.Context, scope tenant.Scope, params pipeline.PathParams, opts QueryOptions) (any, error)

	// Delete removes one document (id present) or the whole collection
	// (id absent) and returns the removed count.
	Delete(ctx context.Context, scope tenant.Scope, params pipeline.PathParams) (int64, error)
}

// service implements Service.
type service struct {
	store     Store
	rulesRepo rules.Repository
	evaluator rules.Evaluator

	// now is the clock used for creation timestamps; replaceable in tests.
	now func() time.Time
}

// NewService creates the binding coordinator.
func NewService(store Store, rulesRepo rules.Repository, evaluator rules.Evaluator) Service {
	return &service{
		store:     store,
		rulesRepo: rulesRepo,
		evaluator: evaluator,
		now:       time.Now,
	}
}

// Write binds and persists a normalized write payload.
func (s *service) Write(ctx context.Context, scope tenant.Scope, params pipeline.PathParams, payload pipeline.Payload, member map[string]any) (any, error) {
	if payload.Skip || len(payload.Entities) == 0 {
		return nil, apperror.NewBadRequest("no data was sent with the request")
	}

	partition := PartitionFor(scope, params.ModelType)

	ruleSet, err := s.rulesRepo.ListForModel(ctx, scope.ApplicationID, params.ModelType)
	if err != nil {
		return nil, fmt.Errorf("loading data rules: %w", err)
	}

	// Bind every entity before touching the store: evaluate the rules with
	// the stored document (when one exists) in scope, and collect failures
	// in submitted order. Any failure rejects the whole batch.
	docs := make([]Document, len(payload.Entities))
	var failures []apperror.RuleFailure
	for i, entity := range payload.Entities {
		existing, err := s.findExisting(ctx, partition, entity)
		if err != nil {
			return nil, err
		}

		if failure := s.evaluator.Evaluate(ruleSet, rules.Input{
			Model:    entity,
			Existing: existing,
			Member:   member,
		}); failure != nil {
			failures = append(failures, *failure)
			continue
		}

		docs[i] = s.toStoredForm(entity, existing)
	}
	if len(failures) > 0 {
		return nil, apperror.NewRulesFailed(failures)
	}

	if err := s.store.SaveAll(ctx, partition, docs); err != nil {
		return nil, apperror.NewSaveFailed(err)
	}

	if payload.Batch {
		return docs, nil
	}
	return docs[0], nil
}

// findExisting loads the stored document an entity addresses, or nil when
// the entity has no id or the id is unknown.
func (s *service) findExisting(ctx context.Context, partition string, entity pipeline.Entity) (Document, error) {
	id, _ := entity["_id"].(string)
	if id == "" {
		return nil, nil
	}

	existing, err := s.store.Get(ctx, partition, id)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("loading existing document: %w", err)
	}
	return existing, nil
}

// toStoredForm produces the persisted form of a bound entity: a generated
// id when the entity has none, and a creation timestamp that is assigned
// once and survives updates.
func (s *service) toStoredForm(entity pipeline.Entity, existing Document) Document {
	doc := Document(entity)
	if doc.ID() == "" {
		doc["_id"] = uuid.NewString()
	}

	if existing != nil {
		if created, ok := existing[createdDateKey]; ok {
			doc[createdDateKey] = created
			return doc
		}
	}
	doc[createdDateKey] = s.now().UTC().Format(time.RFC3339Nano)
	return doc
}

// Read returns one document or the collection.
func (s *service) Read(ctx context.Context, scope tenant.Scope, params pipeline.PathParams, opts QueryOptions) (any, error) {
	partition := PartitionFor(scope, params.ModelType)

	if params.ModelID != "" {
		return s.store.Get(ctx, partition, params.ModelID)
	}
	return s.store.Query(ctx, partition, opts)
}

// Delete removes one document or the whole collection.
func (s *service) Delete(ctx context.Context, scope tenant.Scope, params pipeline.PathParams) (int64, error) {
	partition := PartitionFor(scope, params.ModelType)

	if params.ModelID != "" {
		return s.store.DeleteOne(ctx, partition, params.ModelID)
	}
	return s.store.DeleteAll(ctx, partition)
}
