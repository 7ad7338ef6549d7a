package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dmoskov/shadowsky/internal/event"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a post-fact cache backing over a local SQLite database.
//
// Intended for a single embedded client session: the fact cache
// survives restarts so ancestry fetched in a previous session does not
// need re-fetching.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite backing at the given path.
// Use ":memory:" for an ephemeral database in tests.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call on an existing database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to cache database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	// to a single one and avoid SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply cache schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Load returns all persisted facts ordered by URI.
func (s *SQLite) Load(ctx context.Context) ([]event.PostFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uri, parent_uri, root_uri, content FROM post_facts ORDER BY uri`)
	if err != nil {
		return nil, fmt.Errorf("load post facts: %w", err)
	}
	defer rows.Close()

	var posts []event.PostFact
	for rows.Next() {
		var p event.PostFact
		if err := rows.Scan(&p.URI, &p.ParentURI, &p.RootURI, &p.Content); err != nil {
			return nil, fmt.Errorf("scan post fact: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post facts: %w", err)
	}
	return posts, nil
}

// Save upserts facts in a single transaction.
//
// The ON CONFLICT clause upgrades empty columns only, mirroring
// Store.Merge: persisted ancestry is never downgraded by a partial
// re-fetch.
func (s *SQLite) Save(ctx context.Context, posts []event.PostFact) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO post_facts (uri, parent_uri, root_uri, content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			parent_uri = CASE WHEN post_facts.parent_uri = '' THEN excluded.parent_uri ELSE post_facts.parent_uri END,
			root_uri   = CASE WHEN post_facts.root_uri   = '' THEN excluded.root_uri   ELSE post_facts.root_uri   END,
			content    = CASE WHEN post_facts.content    = '' THEN excluded.content    ELSE post_facts.content    END
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range posts {
		if p.URI == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.URI, p.ParentURI, p.RootURI, p.Content); err != nil {
			return fmt.Errorf("upsert post fact %s: %w", p.URI, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
