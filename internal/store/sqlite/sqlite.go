// Package sqlite stores documents as JSON rows in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"expensedash/internal/core"
	"expensedash/internal/store"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ store.Gateway = (*Repository)(nil)

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, core.E(core.KindConfiguration, "sqlite.open", fmt.Errorf("create db directory: %w", err))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, core.E(core.KindConnection, "sqlite.open", fmt.Errorf("open sqlite database: %w", err))
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, core.E(core.KindConnection, "sqlite.open", fmt.Errorf("ping database: %w", err))
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, core.E(core.KindConnection, "sqlite.open", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.E(core.KindConnection, "sqlite.ping", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) FetchAll(ctx context.Context, collection string) ([]core.RawRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, core.E(core.KindConnection, "sqlite.fetch_all", fmt.Errorf("query documents: %w", err))
	}
	defer rows.Close()

	out := []core.RawRecord{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, core.E(core.KindConnection, "sqlite.fetch_all", fmt.Errorf("scan document: %w", err))
		}
		doc, err := store.DecodeDocument([]byte(body))
		if err != nil {
			slog.WarnContext(ctx, "Skipping undecodable document", "component", "store", "id", id, "error", err)
			continue
		}
		out = append(out, core.RawRecord{ID: id, Fields: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, core.E(core.KindConnection, "sqlite.fetch_all", err)
	}
	return out, nil
}

func (r *Repository) Insert(ctx context.Context, collection string, doc core.Document) (string, error) {
	body, err := store.EncodeDocument(doc)
	if err != nil {
		return "", core.E(core.KindWrite, "sqlite.insert", err)
	}
	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, body) VALUES (?, ?, ?)`, id, collection, string(body)); err != nil {
		return "", core.E(core.KindWrite, "sqlite.insert", fmt.Errorf("insert document: %w", err))
	}

	slog.InfoContext(ctx, "Document saved to SQLite",
		"component", "store",
		"collection", collection,
		"id", id)

	return id, nil
}

func (r *Repository) Delete(ctx context.Context, collection, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return false, core.E(core.KindWrite, "sqlite.delete", fmt.Errorf("delete document: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.E(core.KindWrite, "sqlite.delete", err)
	}
	return n > 0, nil
}
