package users

import (
	"context"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// Repository stores user accounts. Lookups return dbx.ErrNotFound for a
// missing row; Create returns dbx.ErrDuplicate on a username or email clash.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}
