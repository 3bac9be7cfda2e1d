package document

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"ragline/internal/rag"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *rag.Document) error {
	id := uuid.NewString()
	query := `INSERT INTO documents (id, text, source) VALUES ($1, $2, $3) RETURNING created_at`
	if err := r.db.QueryRowContext(ctx, query, id, doc.Text, string(doc.Source)).Scan(&doc.CreatedAt); err != nil {
		return err
	}
	doc.ID = id
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*rag.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, rag.ErrNotFound
	}
	d := &rag.Document{}
	var source string
	query := `SELECT id, text, source, created_at FROM documents WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Text, &source, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rag.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Source = rag.SourceKind(source)
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]rag.Document, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT id, text, source, created_at FROM documents ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		var d rag.Document
		var source string
		if err := rows.Scan(&d.ID, &d.Text, &source, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Source = rag.SourceKind(source)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}
