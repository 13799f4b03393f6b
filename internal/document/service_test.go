package document

import (
	"context"
	"testing"
	"time"

	"github.com/hoistlabs/datagate/internal/apperror"
	"github.com/hoistlabs/datagate/internal/pipeline"
	"github.com/hoistlabs/datagate/internal/rules"
	"github.com/hoistlabs/datagate/internal/tenant"
)

// --- Mock Store ---

// mockStore implements Store for testing.
type mockStore struct {
	getFn       func(ctx context.Context, partition, id string) (Document, error)
	queryFn     func(ctx context.Context, partition string, opts QueryOptions) ([]Document, error)
	saveAllFn   func(ctx context.Context, partition string, docs []Document) error
	deleteOneFn func(ctx context.Context, partition, id string) (int64, error)
	deleteAllFn func(ctx context.Context, partition string) (int64, error)

	// Capture fields for assertions.
	savedPartition string
	savedDocs      []Document
	saveCalls      int
}

func (m *mockStore) Get(ctx context.Context, partition, id string) (Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, partition, id)
	}
	return nil, apperror.NewNotFound("document not found")
}

func (m *mockStore) Query(ctx context.Context, partition string, opts QueryOptions) ([]Document, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, partition, opts)
	}
	return []Document{}, nil
}

func (m *mockStore) SaveAll(ctx context.Context, partition string, docs []Document) error {
	m.saveCalls++
	m.savedPartition = partition
	m.savedDocs = docs
	if m.saveAllFn != nil {
		return m.saveAllFn(ctx, partition, docs)
	}
	return nil
}

func (m *mockStore) DeleteOne(ctx context.Context, partition, id string) (int64, error) {
	if m.deleteOneFn != nil {
		return m.deleteOneFn(ctx, partition, id)
	}
	return 1, nil
}

func (m *mockStore) DeleteAll(ctx context.Context, partition string) (int64, error) {
	if m.deleteAllFn != nil {
		return m.deleteAllFn(ctx, partition)
	}
	return 0, nil
}

// --- Mock Rules Repository ---

// mockRulesRepo implements rules.Repository for testing.
type mockRulesRepo struct {
	rules []rules.DataRule
}

func (m *mockRulesRepo) ListForModel(ctx context.Context, applicationID, modelType string) ([]rules.DataRule, error) {
	return m.rules, nil
}

// --- Helpers ---

var testScope = tenant.Scope{
	ApplicationID:    "app-1",
	EnvironmentToken: "default",
}

func newTestService(t *testing.T, store Store, ruleSet []rules.DataRule) Service {
	t.Helper()
	eval, err := rules.NewEvaluator()
	if err != nil {
		t.Fatalf("creating evaluator: %v", err)
	}
	svc := NewService(store, &mockRulesRepo{rules: ruleSet}, eval)
	svc.(*service).now = func() time.Time {
		return time.Date(2014, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func normalize(t *testing.T, method, body string, params pipeline.PathParams) pipeline.Payload {
	t.Helper()
	payload, err := pipeline.NormalizePayload(method, "application/json", []byte(body), params)
	if err != nil {
		t.Fatalf("normalizing payload: %v", err)
	}
	return payload
}

// --- Write ---

func TestWriteSingleDocument(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, store, nil)
	params := pipeline.PathParams{ModelType: "model"}
	payload := normalize(t, "POST", `{"name":"hi","boolVal":true,"intVal":123}`, params)

	result, err := svc.Write(context.Background(), testScope, params, payload, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, ok := result.(Document)
	if !ok {
		t.Fatalf("a single-object write must return a single document, got %T", result)
	}
	if doc.ID() == "" {
		t.Error("expected a generated _id")
	}
	if doc["_type"] != "model" {
		t.Errorf("_type = %v, want model", doc["_type"])
	}
	if doc[createdDateKey] == nil {
		t.Error("expected a store-assigned creation timestamp")
	}

	if store.saveCalls != 1 {
		t.Fatalf("SaveAll calls = %d, want 1", store.saveCalls)
	}
	if store.savedPartition != "default:default:models" {
		t.Errorf("partition = %q, want default:default:models", store.savedPartition)
	}
}

func TestWriteWithIDFromURL(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, store, nil)
	params := pipeline.PathParams{ModelType: "model", ModelID: "key"}
	payload := normalize(t, "POST", `{"name":"hi"}`, params)

	result, err := svc.Write(context.Background(), testScope, params, payload, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc := result.(Document); doc.ID() != "key" {
		t.Errorf("_id = %q, want key", doc.ID())
	}
}

func TestWriteBatchPreservesOrder(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, store, nil)
	params := pipeline.PathParams{ModelType: "model"}
	payload := normalize(t, "POST", `[{"name":"hi"},{"name":"hi2"}]`, params)

	result, err := svc.Write(context.Background(), testScope, params, payload, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	docs, ok := result.([]Document)
	if !ok {
		t.Fatalf("an array write must return a slice, got %T", result)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2", len(docs))
	}
	if docs[0]["name"] != "hi" || docs[1]["name"] != "hi2" {
		t.Errorf("order not preserved: %v", docs)
	}
	for i, doc := range docs {
		if doc[createdDateKey] == nil {
			t.Errorf("doc %d missing creation timestamp", i)
		}
	}
}

func TestWriteBatchRejectedWhenOneEntityFails(t *testing.T) {
	store := &mockStore{}
	ruleSet := []rules.DataRule{
		{Name: "Rule 1", Expr: `has(model.name)`, ModelScope: rules.ScopeAll, Enabled: true},
	}
	svc := newTestService(t, store, ruleSet)
	params := pipeline.PathParams{ModelType: "model"}
	payload := normalize(t, "POST", `[{"name":"one"},{"nameless":true},{"name":"three"}]`, params)

	_, err := svc.Write(context.Background(), testScope, params, payload, nil)
	if err == nil {
		t.Fatal("expected the batch to be rejected")
	}

	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != 403 {
		t.Errorf("status = %d, want 403", appErr.Code)
	}
	if appErr.Message != "One or more data rules failed" {
		t.Errorf("message = %q", appErr.Message)
	}
	if len(appErr.Failures) != 1 {
		t.Fatalf("failures = %d, want exactly 1 (for item 2)", len(appErr.Failures))
	}
	if appErr.Failures[0].Rule != "Rule 1" {
		t.Errorf("failing rule = %q, want Rule 1", appErr.Failures[0].Rule)
	}

	// All-or-nothing: the valid entities must not be persisted either.
	if store.saveCalls != 0 {
		t.Errorf("SaveAll calls = %d, want 0", store.saveCalls)
	}
}

func TestWriteUpdatePreservesCreationDate(t *testing.T) {
	store := &mockStore{
		getFn: func(ctx context.Context, partition, id string) (Document, error) {
			if id == "key" {
				return Document{"_id": "key", "name": "oldname", createdDateKey: "2013-01-01T00:00:00Z"}, nil
			}
			return nil, apperror.NewNotFound("document not found")
		},
	}
	svc := newTestService(t, store, nil)
	params := pipeline.PathParams{ModelType: "model", ModelID: "key"}
	payload := normalize(t, "PUT", `{"name":"newname"}`, params)

	result, err := svc.Write(context.Background(), testScope, params, payload, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc := result.(Document); doc[createdDateKey] != "2013-01-01T00:00:00Z" {
		t.Errorf("creation timestamp not preserved across update: %v", doc[createdDateKey])
	}
}

func TestWriteUpdateRuleSeesExistingDocument(t *testing.T) {
	store := &mockStore{
		getFn: func(ctx context.Context, partition, id string) (Document, error) {
			return Document{"_id": "1", "name": "oldname"}, nil
		},
	}
	ruleSet := []rules.DataRule{
		{Name: "Rule 2", Expr: `existing == null || model.name == existing.name`, ModelScope: rules.ScopeAll, Enabled: true},
	}
	svc := newTestService(t, store, ruleSet)
	params := pipeline.PathParams{ModelType: "model", ModelID: "1"}
	payload := normalize(t, "POST", `{"name":"newname"}`, params)

	_, err := svc.Write(context.Background(), testScope, params, payload, nil)
	appErr, ok := err.(*apperror.AppError)
	if !ok || appErr.Code != 403 {
		t.Fatalf("expected a 403 rule failure, got %v", err)
	}
	if appErr.Failures[0].Rule != "Rule 2" {
		t.Errorf("failing rule = %q, want Rule 2", appErr.Failures[0].Rule)
	}
	if store.saveCalls != 0 {
		t.Errorf("SaveAll calls = %d, want 0", store.saveCalls)
	}
}

func TestWriteStoreRejectionIsSaveFailed(t *testing.T) {
	store := &mockStore{
		saveAllFn: func(ctx context.Context, partition string, docs []Document) error {
			return context.DeadlineExceeded
		},
	}
	svc := newTestService(t, store, nil)
	params := pipeline.PathParams{ModelType: "model"}
	payload := normalize(t, "POST", `{"name":"hi"}`, params)

	_, err := svc.Write(context.Background(), testScope, params, payload, nil)
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != 403 || appErr.Message != "Saving Entity Failed" {
		t.Errorf("got %d %q, want 403 \"Saving Entity Failed\"", appErr.Code, appErr.Message)
	}
}

func TestWriteMemberBoundIntoRules(t *testing.T) {
	store := &mockStore{}
	ruleSet := []rules.DataRule{
		{Name: "Rule 3", Expr: `member != null && member.role == "Admin"`, ModelScope: rules.ScopeAll, Enabled: true},
	}
	svc := newTestService(t, store, ruleSet)
	params := pipeline.PathParams{ModelType: "model"}
	payload := normalize(t, "POST", `{"name":"hi"}`, params)

	member := map[string]any{"name": "someUser", "role": "Admin"}
	if _, err := svc.Write(context.Background(), testScope, params, payload, member); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Write(context.Background(), testScope, params, payload, nil); err == nil {
		t.Fatal("expected a rule failure without a member")
	}
}

// --- Read / Delete ---

func TestReadSingleDocument(t *testing.T) {
	store := &mockStore{
		getFn: func(ctx context.Context, partition, id string) (Document, error) {
			if partition == "default:default:models" && id == "key" {
				return Document{"_id": "key", "name": "document name"}, nil
			}
			return nil, apperror.NewNotFound("document not found")
		},
	}
	svc := newTestService(t, store, nil)

	result, err := svc.Read(context.Background(), testScope,
		pipeline.PathParams{ModelType: "model", ModelID: "key"}, QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc := result.(Document); doc["name"] != "document name" {
		t.Errorf("unexpected document: %v", doc)
	}
}

func TestReadMissingDocumentIs404(t *testing.T) {
	svc := newTestService(t, &mockStore{}, nil)

	_, err := svc.Read(context.Background(), testScope,
		pipeline.PathParams{ModelType: "model", ModelID: "missing"}, QueryOptions{})
	if apperror.SafeCode(err) != 404 {
		t.Fatalf("status = %d, want 404", apperror.SafeCode(err))
	}
}

func TestReadCollectionNeverNil(t *testing.T) {
	svc := newTestService(t, &mockStore{}, nil)

	result, err := svc.Read(context.Background(), testScope,
		pipeline.PathParams{ModelType: "model"}, QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs, ok := result.([]Document)
	if !ok || docs == nil {
		t.Fatalf("collection read must return a non-nil slice, got %#v", result)
	}
	if len(docs) != 0 {
		t.Errorf("len = %d, want 0", len(docs))
	}
}

func TestReadBucketScopedPartition(t *testing.T) {
	var queried string
	store := &mockStore{
		queryFn: func(ctx context.Context, partition string, opts QueryOptions) ([]Document, error) {
			queried = partition
			return []Document{}, nil
		},
	}
	svc := newTestService(t, store, nil)

	scope := tenant.Scope{ApplicationID: "app-1", EnvironmentToken: "default", BucketKey: "bucket_key"}
	if _, err := svc.Read(context.Background(), scope, pipeline.PathParams{ModelType: "model"}, QueryOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queried != "default:bucket_key:models" {
		t.Errorf("partition = %q, want default:bucket_key:models", queried)
	}
}

func TestDeleteSingleAndCollection(t *testing.T) {
	store := &mockStore{
		deleteOneFn: func(ctx context.Context, partition, id string) (int64, error) { return 1, nil },
		deleteAllFn: func(ctx context.Context, partition string) (int64, error) { return 7, nil },
	}
	svc := newTestService(t, store, nil)

	removed, err := svc.Delete(context.Background(), testScope,
		pipeline.PathParams{ModelType: "model", ModelID: "key"})
	if err != nil || removed != 1 {
		t.Fatalf("single delete: removed = %d, err = %v, want 1, nil", removed, err)
	}

	removed, err = svc.Delete(context.Background(), testScope,
		pipeline.PathParams{ModelType: "model"})
	if err != nil || removed != 7 {
		t.Fatalf("collection delete: removed = %d, err = %v, want 7, nil", removed, err)
	}
}
