package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Store keeps schemaless documents grouped by collection. Writes are last
// write wins; a merge write overlays top-level fields onto the stored
// document.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type Doc struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// String returns a string field or "".
func (d Doc) String(field string) string {
	if d.Data == nil {
		return ""
	}
	v, _ := d.Data[field].(string)
	return v
}

type DocWrite struct {
	Collection string
	ID         string
	Data       map[string]any
	Merge      bool
}

// Filter matches documents whose top-level field equals Value.
type Filter struct {
	Field string
	Value any
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var ErrInvalidField = errors.New("invalid field name")

func (s *Store) GetDoc(ctx context.Context, collection, id string) (Doc, bool, error) {
	return getDoc(ctx, s.db, collection, id)
}

func (s *Store) SetDoc(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	return s.SetDocs(ctx, []DocWrite{{Collection: collection, ID: id, Data: data, Merge: merge}})
}

// SetDocs applies all writes in one transaction.
func (s *Store) SetDocs(ctx context.Context, writes []DocWrite) error {
	if len(writes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, wr := range writes {
		if strings.TrimSpace(wr.Collection) == "" || strings.TrimSpace(wr.ID) == "" {
			return fmt.Errorf("collection and id are required")
		}
		data := wr.Data
		if wr.Merge {
			existing, ok, err := getDoc(ctx, tx, wr.Collection, wr.ID)
			if err != nil {
				return err
			}
			if ok {
				merged := existing.Data
				if merged == nil {
					merged = map[string]any{}
				}
				for k, v := range wr.Data {
					merged[k] = v
				}
				data = merged
			}
		}
		if data == nil {
			data = map[string]any{}
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", wr.Collection, wr.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
		`, wr.Collection, wr.ID, string(encoded), now, now)
		if err != nil {
			return fmt.Errorf("write %s/%s: %w", wr.Collection, wr.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit writes: %w", err)
	}
	return nil
}

func (s *Store) FindDocs(ctx context.Context, collection string, filters []Filter, limit int) ([]Doc, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE collection = ?"
	args := []any{collection}
	for _, f := range filters {
		if !fieldPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
		where += " AND json_extract(data, '$." + f.Field + "') = ?"
		args = append(args, f.Value)
	}
	args = append(args, limit)
	return s.queryDocs(ctx, `SELECT id, data, created_at, updated_at FROM documents `+where+` ORDER BY id LIMIT ?`, args...)
}

func (s *Store) ListDocs(ctx context.Context, collection string, limit int) ([]Doc, error) {
	return s.FindDocs(ctx, collection, nil, limit)
}

func (s *Store) CountDocs(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) queryDocs(ctx context.Context, query string, args ...any) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Doc
	for rows.Next() {
		var id, data, createdAt, updatedAt string
		if err := rows.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, decodeDoc(id, data, createdAt, updatedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDoc(ctx context.Context, q queryRower, collection, id string) (Doc, bool, error) {
	var dataStr, createdAtStr, updatedAtStr string
	err := q.QueryRowContext(ctx, `SELECT data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`, collection, id).
		Scan(&dataStr, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return Doc{}, false, nil
	}
	if err != nil {
		return Doc{}, false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDoc(id, dataStr, createdAtStr, updatedAtStr), true, nil
}
