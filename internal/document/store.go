package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hoistlabs/datagate/internal/apperror"
)

// Store defines the persistence contract for documents. Implementations own
// query/sort/skip/limit semantics; the coordinator above them owns scoping
// and binding.
type Store interface {
	// Get loads one document by id. Returns apperror.NewNotFound when the
	// partition holds no such document.
	Get(ctx context.Context, partition, id string) (Document, error)

	// Query returns the partition's documents honoring the query options.
	// The result is never nil.
	Query(ctx context.Context, partition string, opts QueryOptions) ([]Document, error)

	// SaveAll upserts the given documents in one transaction. Every
	// document must already carry its "_id".
	SaveAll(ctx context.Context, partition string, docs []Document) error

	// DeleteOne removes one document by id and reports how many rows were
	// removed (0 or 1).
	DeleteOne(ctx context.Context, partition, id string) (int64, error)

	// DeleteAll removes every document in the partition and reports the
	// removed count.
	DeleteAll(ctx context.Context, partition string) (int64, error)
}

// store implements Store with MariaDB queries against the documents table.
// The full document lives in a JSON column; sorting uses JSON_EXTRACT on
// validated field paths.
type store struct {
	db *sql.DB
}

// NewStore creates a MariaDB-backed document store.
func NewStore(db *sql.DB) Store {
	return &store{db: db}
}

// Get loads one document by id.
func (s *store) Get(ctx context.Context, partition, id string) (Document, error) {
	query := `SELECT doc FROM documents WHERE partition_name = ? AND doc_id = ?`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, partition, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling document: %w", err)
	}
	return doc, nil
}

// Query returns the partition's documents honoring limit, skip, and sort.
func (s *store) Query(ctx context.Context, partition string, opts QueryOptions) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT doc FROM documents WHERE partition_name = ?`)
	args := []any{partition}

	if len(opts.Sort) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, sf := range opts.Sort {
			if i > 0 {
				sb.WriteString(", ")
			}
			// Field names were validated against sortFieldPattern when
			// the options were parsed; they contain no quotes.
			fmt.Fprintf(&sb, "JSON_EXTRACT(doc, '$.%s')", sf.Field)
			if sf.Descending {
				sb.WriteString(" DESC")
			}
		}
	} else {
		// Deterministic default order for stable pagination.
		sb.WriteString(" ORDER BY doc_id")
	}

	if opts.Limit > 0 || opts.Skip > 0 {
		limit := opts.Limit
		if limit <= 0 {
			// MySQL has no OFFSET without LIMIT.
			limit = 1<<31 - 1
		}
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, opts.Skip)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshaling document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// SaveAll upserts documents in one transaction, so a batch either lands
// completely or not at all.
func (s *store) SaveAll(ctx context.Context, partition string, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO documents (partition_name, doc_id, doc)
	          VALUES (?, ?, ?)
	          ON DUPLICATE KEY UPDATE doc = VALUES(doc)`

	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, partition, doc.ID(), raw); err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing documents: %w", err)
	}
	return nil
}

// DeleteOne removes one document by id.
func (s *store) DeleteOne(ctx context.Context, partition, id string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE partition_name = ? AND doc_id = ?`,
		partition, id,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting document: %w", err)
	}
	return result.RowsAffected()
}

// DeleteAll removes every document in the partition.
func (s *store) DeleteAll(ctx context.Context, partition string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE partition_name = ?`,
		partition,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}
	return result.RowsAffected()
}
