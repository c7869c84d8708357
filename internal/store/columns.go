package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// insert runs an INSERT ... RETURNING id and returns the new row ID.
func (s *Store) insert(ctx context.Context, table string, cols []string, vals []any) (int64, error) {
	query, args := entsql.Dialect(s.dialect).
		Insert(table).
		Columns(cols...).
		Values(vals...).
		Returning("id").
		Query()

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

// selector starts a SELECT against table using the store's dialect.
func (s *Store) selector(table string, cols ...string) *entsql.Selector {
	return entsql.Dialect(s.dialect).Select(cols...).From(entsql.Table(table))
}

// query runs a built selector.
func (s *Store) query(ctx context.Context, sel *entsql.Selector) (*sql.Rows, error) {
	query, args := sel.Query()
	return s.db.QueryContext(ctx, query, args...)
}

// stamp normalizes a timestamp for storage, defaulting to now.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// jsonArg encodes v as a JSON column argument. Nil slices become NULL.
func jsonArg[T any](v []T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

// rawArg passes a stored JSON document through, mapping empty to NULL.
func rawArg(raw json.RawMessage) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return string(raw)
}

// nullString maps empty strings to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt maps zero to NULL.
func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

// rawJSON converts a scanned JSON column to a RawMessage (nil when NULL).
func rawJSON(ns sql.NullString) json.RawMessage {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

// decodeList decodes a JSON array column into its elements as strings.
// Numbers are kept in their literal form. NULL, malformed documents and
// non-array values yield nil.
func decodeList(ns sql.NullString) []string {
	if !ns.Valid {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(ns.String))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		case json.Number:
			out = append(out, v.String())
		}
	}
	return out
}

// decodeStrings decodes a JSON array of topic codes.
func decodeStrings(ns sql.NullString) []string {
	return decodeList(ns)
}

// decodeInts decodes a JSON array of integer IDs, accepting numeric strings.
func decodeInts(ns sql.NullString) []int {
	items := decodeList(ns)
	if items == nil {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		if n, err := strconv.Atoi(it); err == nil {
			out = append(out, n)
			continue
		}
		if f, err := strconv.ParseFloat(it, 64); err == nil && f == float64(int(f)) {
			out = append(out, int(f))
		}
	}
	return out
}
