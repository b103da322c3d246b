package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"docdash/internal/document/model"
	"docdash/pkg/logger"
)

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

const selectColumns = `id, title, content, author_id, created_at, last_updated`

func (r *DocumentRepository) Insert(ctx context.Context, c model.Collection, doc model.Document) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO documents (collection, id, title, content, author_id, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.Path(), doc.ID, doc.Title, doc.Content, doc.AuthorID, doc.CreatedAt, doc.LastUpdated)
	if err != nil {
		logger.Sugar.Errorf("Failed to insert doc %s into %s: %v", doc.ID, c, err)
	}
	return err
}

// Upsert writes the whole document. Author and creation time of an existing
// row are kept.
func (r *DocumentRepository) Upsert(ctx context.Context, c model.Collection, doc model.Document) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO documents (collection, id, title, content, author_id, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (collection, id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, last_updated = EXCLUDED.last_updated`,
		c.Path(), doc.ID, doc.Title, doc.Content, doc.AuthorID, doc.CreatedAt, doc.LastUpdated)
	if err != nil {
		logger.Sugar.Errorf("Failed to set doc %s in %s: %v", doc.ID, c, err)
	}
	return err
}

func (r *DocumentRepository) Update(ctx context.Context, c model.Collection, id string, patch model.PatchDocRequest, lastUpdated time.Time) (int64, error) {
	result, err := r.DB.ExecContext(ctx, `UPDATE documents SET title = COALESCE($1, title), content = COALESCE($2, content), last_updated = $3
		WHERE collection = $4 AND id = $5`,
		nullString(patch.Title), nullString(patch.Content), lastUpdated, c.Path(), id)
	if err != nil {
		logger.Sugar.Errorf("Failed to update doc %s in %s: %v", id, c, err)
		return 0, err
	}
	return result.RowsAffected()
}

func (r *DocumentRepository) Delete(ctx context.Context, c model.Collection, id string) (int64, error) {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", c.Path(), id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s from %s: %v", id, c, err)
		return 0, err
	}
	return result.RowsAffected()
}

func (r *DocumentRepository) Get(ctx context.Context, c model.Collection, id string) (model.Document, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM documents WHERE collection = $1 AND id = $2", c.Path(), id)
	doc, err := scanDocument(row, c)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get doc %s from %s: %v", id, c, err)
	}
	return doc, err
}

func (r *DocumentRepository) List(ctx context.Context, c model.Collection) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+selectColumns+" FROM documents WHERE collection = $1 ORDER BY last_updated DESC", c.Path())
	if err != nil {
		logger.Sugar.Errorf("Failed to list %s: %v", c, err)
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows, c)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan doc in %s: %v", c, err)
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		logger.Sugar.Errorf("Failed to iterate %s: %v", c, err)
		return nil, err
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner, c model.Collection) (model.Document, error) {
	var doc model.Document
	err := s.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.AuthorID, &doc.CreatedAt, &doc.LastUpdated)
	doc.IsPublic = c.IsPublic()
	return doc, err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
