package posts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// Repository stores posts. Missing rows yield dbx.ErrNotFound; a Create
// with an unknown author yields dbx.ErrForeignKey.
type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	// List returns one page ordered newest first plus the total row count.
	List(ctx context.Context, limit, offset int) ([]*models.Post, int64, error)
	// Update changes the non-nil fields of the post owned by authorID.
	Update(ctx context.Context, id, authorID int64, title, content *string, updatedAt time.Time) error
	// Delete removes the post owned by authorID. Zero affected rows is ErrNotFound.
	Delete(ctx context.Context, id, authorID int64) error
	IDsByAuthor(ctx context.Context, authorID int64) ([]int64, error)
}
