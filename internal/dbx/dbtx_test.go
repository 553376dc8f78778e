package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPostsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), DialectSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func titles(t *testing.T, db DBTX) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), `SELECT title FROM posts ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())
	return out
}

func insertPost(ctx context.Context, tx DBTX, title string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO posts (title) VALUES (?)`, title)
	return err
}

func TestWithTx(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(ctx context.Context, tx DBTX) error
		wantErr error
		want    []string
	}{
		{
			name: "commit",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertPost(ctx, tx, "first"); err != nil {
					return err
				}
				return insertPost(ctx, tx, "second")
			},
			want: []string{"first", "second"},
		},
		{
			name: "error rolls back every statement",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertPost(ctx, tx, "first"); err != nil {
					return err
				}
				return errBoom
			},
			wantErr: errBoom,
		},
		{
			name: "failing statement rolls back earlier ones",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertPost(ctx, tx, "first"); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `INSERT INTO posts (title) VALUES (NULL)`)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openPostsDB(t)
			err := WithTx(context.Background(), db, nil, tt.fn)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.want == nil:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, titles(t, db))
		})
	}
}

func TestWithTx_SeesOwnWrites(t *testing.T) {
	db := openPostsDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if err := insertPost(ctx, tx, "draft"); err != nil {
			return err
		}
		assert.Equal(t, []string{"draft"}, titles(t, tx))
		return nil
	})
	require.NoError(t, err)
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openPostsDB(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertPost(ctx, tx, "lost"))
			panic("kaput")
		})
	})
	assert.Empty(t, titles(t, db))
}

func TestWithTx_BeginFails(t *testing.T) {
	db := openPostsDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
