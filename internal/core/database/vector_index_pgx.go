package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/models"
)

var _ core.VectorIndex = (*PgVectorIndex)(nil)

// PgVectorIndex stores legal passages in the legal_passages table, one
// namespace column per jurisdiction. Similarity is cosine.
type PgVectorIndex struct {
	db  *sql.DB
	dim int
}

func NewPgVectorIndex(db *sql.DB, dim int) *PgVectorIndex {
	return &PgVectorIndex{db: db, dim: dim}
}

// Upsert writes entries in a single transaction; an existing (namespace, id)
// is overwritten.
func (x *PgVectorIndex) Upsert(ctx context.Context, namespace string, entries []models.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := x.checkDim(e.Values); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}

	tx, err := x.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO legal_passages (namespace, id, embedding, text, source, city, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (namespace, id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			text = EXCLUDED.text,
			source = EXCLUDED.source,
			city = EXCLUDED.city,
			updated_at = now()
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			namespace, e.ID, pgvector.NewVector(e.Values), e.Metadata.Text, e.Metadata.Source, e.Metadata.City,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns up to topK passages of namespace, most similar first.
// Score is 1 - cosine distance.
func (x *PgVectorIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	if topK <= 0 || namespace == "" {
		return nil, nil
	}
	if err := x.checkDim(vector); err != nil {
		return nil, err
	}

	const q = `
		SELECT id, text, source, city, embedding <=> $2 AS distance
		FROM legal_passages
		WHERE namespace = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := x.db.QueryContext(ctx, q, namespace, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var (
			m    models.Match
			dist float64
		)
		if err := rows.Scan(&m.ID, &m.Metadata.Text, &m.Metadata.Source, &m.Metadata.City, &dist); err != nil {
			return nil, err
		}
		m.Score = float32(1 - dist)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (x *PgVectorIndex) checkDim(v []float32) error {
	if x.dim > 0 && len(v) != x.dim {
		return fmt.Errorf("%w: vector dimension %d, index expects %d", core.ErrConfig, len(v), x.dim)
	}
	return nil
}
