// Package repomanager provides a concrete RepositoryManager for PostgreSQL
// and SQLite, wiring together repository constructors and database
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/migrations"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends dialect-aware repository implementations and
// exposes a schema migration hook.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// NewRepositoryManager constructs a RepositoryManager for the dialect.
func NewRepositoryManager(d dbx.Dialect) (RepositoryManager, error) {
	if _, err := dbx.ParseDialect(string(d)); err != nil {
		return nil, err
	}
	return &SQLRepositoryManager{dialect: d}, nil
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.dialect)
}

// Posts returns a posts.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Posts(db dbx.DBTX) posts.Repository {
	return posts.NewSQLRepository(db, m.dialect)
}

// gooseUp is a seam for testing the goose provider.
var gooseUp = func(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

// RunMigrations applies the embedded migrations for the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	fsys, err := migrations.For(string(m.dialect))
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	dialect := goose.DialectPostgres
	if m.dialect == dbx.DialectSQLite {
		dialect = goose.DialectSQLite3
	}

	if err := gooseUp(ctx, dialect, db, fsys); err != nil {
		return err
	}
	return nil
}
