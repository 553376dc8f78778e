// Package posts persists blog posts on PostgreSQL or SQLite.
package posts

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

const postColumns = `id, title, content, author_id, created_at, updated_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d}
}

func (r *SQLRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query :=
		`INSERT INTO posts (title, content, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
		post.Title, post.Content, post.AuthorID, post.CreatedAt, post.UpdatedAt).Scan(&post.ID)
	if err != nil {
		return nil, dbx.MapError(err)
	}

	return post, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`

	p := &models.Post{}
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id).
		Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}

	normalize(p)
	return p, nil
}

func (r *SQLRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, dbx.MapError(err)
	}

	query :=
		`SELECT ` + postColumns + ` FROM posts
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), limit, offset)
	if err != nil {
		return nil, 0, dbx.MapError(err)
	}
	defer rows.Close()

	result := make([]*models.Post, 0, limit)
	for rows.Next() {
		p := &models.Post{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, dbx.MapError(err)
		}
		normalize(p)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbx.MapError(err)
	}

	return result, total, nil
}

func (r *SQLRepository) Update(ctx context.Context, id, authorID int64, title, content *string, updatedAt time.Time) error {
	query :=
		`UPDATE posts
		 SET title = COALESCE(?, title), content = COALESCE(?, content), updated_at = ?
		 WHERE id = ? AND author_id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), nullable(title), nullable(content), updatedAt, id, authorID)
	if err != nil {
		return dbx.MapError(err)
	}
	return expectOne(res.RowsAffected())
}

func (r *SQLRepository) Delete(ctx context.Context, id, authorID int64) error {
	query := `DELETE FROM posts WHERE id = ? AND author_id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), id, authorID)
	if err != nil {
		return dbx.MapError(err)
	}
	return expectOne(res.RowsAffected())
}

func (r *SQLRepository) IDsByAuthor(ctx context.Context, authorID int64) ([]int64, error) {
	query := `SELECT id FROM posts WHERE author_id = ?`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), authorID)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, dbx.MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err)
	}
	return ids, nil
}

func expectOne(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return dbx.ErrNotFound
	}
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func normalize(p *models.Post) {
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
}
