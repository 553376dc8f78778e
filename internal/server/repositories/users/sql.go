package users

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d}
}

func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, password_hash, created_at)
         VALUES (?, ?, ?, ?)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
		user.Username, user.Email, user.PasswordHash, user.CreatedAt).Scan(&user.ID)

	if err != nil {
		return nil, dbx.MapError(err)
	}

	return user, nil
}

func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, email, password_hash, created_at FROM users
		 WHERE username = ?
		 `

	return r.getOne(ctx, query, username)
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, username, email, password_hash, created_at FROM users
		 WHERE id = ?
		 `

	return r.getOne(ctx, query, id)
}

// Delete removes the user; posts go with it through ON DELETE CASCADE.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), id)
	if err != nil {
		return dbx.MapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return dbx.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), arg).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		return nil, dbx.MapError(err)
	}

	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
