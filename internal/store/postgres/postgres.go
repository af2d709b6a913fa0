// Package postgres stores documents as jsonb rows through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensedash/internal/core"
	"expensedash/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    seq         BIGSERIAL PRIMARY KEY,
    id          TEXT NOT NULL UNIQUE,
    collection  TEXT NOT NULL,
    body        JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, seq);
`

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Gateway = (*Repository)(nil)

// New opens a pool for databaseURL and makes sure the documents table exists.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, core.E(core.KindConfiguration, "postgres.open", fmt.Errorf("parse database url: %w", err))
	}
	r := &Repository{pool: pool}
	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Migrate creates the documents table if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return core.E(core.KindConnection, "postgres.migrate", fmt.Errorf("create schema: %w", err))
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return core.E(core.KindConnection, "postgres.ping", err)
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) FetchAll(ctx context.Context, collection string) ([]core.RawRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, body FROM documents WHERE collection = $1 ORDER BY seq`, collection)
	if err != nil {
		return nil, core.E(core.KindConnection, "postgres.fetch_all", fmt.Errorf("query documents: %w", err))
	}
	defer rows.Close()

	out := []core.RawRecord{}
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, core.E(core.KindConnection, "postgres.fetch_all", fmt.Errorf("scan document: %w", err))
		}
		doc, err := store.DecodeDocument(body)
		if err != nil {
			slog.WarnContext(ctx, "Skipping undecodable document", "component", "store", "id", id, "error", err)
			continue
		}
		out = append(out, core.RawRecord{ID: id, Fields: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, core.E(core.KindConnection, "postgres.fetch_all", err)
	}
	return out, nil
}

func (r *Repository) Insert(ctx context.Context, collection string, doc core.Document) (string, error) {
	body, err := store.EncodeDocument(doc)
	if err != nil {
		return "", core.E(core.KindWrite, "postgres.insert", err)
	}
	var id string
	err = r.pool.QueryRow(ctx,
		`INSERT INTO documents (id, collection, body) VALUES ($1, $2, $3::jsonb) RETURNING id`,
		uuid.NewString(), collection, string(body)).Scan(&id)
	if err != nil {
		return "", core.E(core.KindWrite, "postgres.insert", fmt.Errorf("insert document: %w", err))
	}
	return id, nil
}

func (r *Repository) Delete(ctx context.Context, collection, id string) (bool, error) {
	var deleted string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING id`, collection, id).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, core.E(core.KindWrite, "postgres.delete", fmt.Errorf("delete document: %w", err))
	}
	return true, nil
}
