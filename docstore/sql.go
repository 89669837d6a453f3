package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder and upsert syntax for a SQL backend
type Dialect int

const (
	// DialectSQLite targets mattn/go-sqlite3
	DialectSQLite Dialect = iota
	// DialectPostgres targets lib/pq
	DialectPostgres
)

// SQLStore persists wire documents in a single table of
// (collection, id, body) rows, with the body stored as JSON. It works
// against any database/sql driver covered by the supported dialects.
type SQLStore struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

// NewSQLStore creates a SQL-backed store using the default table name
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, table: "documents", dialect: dialect}
}

// NewSQLStoreWithTable creates a SQL-backed store with a custom table name
func NewSQLStoreWithTable(db *sql.DB, dialect Dialect, table string) *SQLStore {
	return &SQLStore{db: db, table: table, dialect: dialect}
}

// rebind rewrites ? placeholders into the dialect's native form
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureSchema creates the documents table if it does not exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// ListLocations implements Store
func (s *SQLStore) ListLocations(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT collection FROM %s ORDER BY collection", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		locations = append(locations, name)
	}
	return locations, rows.Err()
}

// Read implements Store
func (s *SQLStore) Read(ctx context.Context, location string, filter Filter) (map[string]any, error) {
	// Fast path: lookup by id alone
	if id, ok := filter[IDKey].(string); ok && len(filter) == 1 {
		query := s.rebind(fmt.Sprintf("SELECT body FROM %s WHERE collection = ? AND id = ?", s.table))
		var body string
		err := s.db.QueryRowContext(ctx, query, location, id).Scan(&body)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return unmarshalDoc(body)
	}

	// The store is schema-less, so general filters scan the location and
	// match in memory rather than compiling into SQL.
	query := s.rebind(fmt.Sprintf("SELECT body FROM %s WHERE collection = ? ORDER BY id", s.table))
	rows, err := s.db.QueryContext(ctx, query, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		doc, err := unmarshalDoc(body)
		if err != nil {
			return nil, err
		}
		if matches(doc, filter) {
			return doc, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// Write implements Store
func (s *SQLStore) Write(ctx context.Context, location string, doc map[string]any) error {
	id, err := documentID(doc)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: marshal document %s: %w", id, err)
	}
	query := s.rebind(fmt.Sprintf(
		`INSERT INTO %s (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`, s.table))
	_, err = s.db.ExecContext(ctx, query, location, id, string(body))
	return err
}

// Delete implements Store
func (s *SQLStore) Delete(ctx context.Context, location string, id string) error {
	query := s.rebind(fmt.Sprintf("DELETE FROM %s WHERE collection = ? AND id = ?", s.table))
	res, err := s.db.ExecContext(ctx, query, location, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}
