// Package cache provides an optional read-through cache for single posts.
package cache

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

// PostCache caches posts by id.
//
// Get reports a miss as a nil post together with a stamp. The caller reads
// storage and hands the stamp back to Set, which stores the post only if no
// Delete for that id happened in between. A fill that raced with an update
// or delete is therefore dropped instead of resurrecting the old row.
//
// Errors are advisory; callers fall back to storage.
type PostCache interface {
	Get(ctx context.Context, id int64) (post *models.Post, stamp string, err error)
	Set(ctx context.Context, post *models.Post, stamp string) error
	Delete(ctx context.Context, ids ...int64) error
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, int64) (*models.Post, string, error) { return nil, "", nil }
func (Nop) Set(context.Context, *models.Post, string) error          { return nil }
func (Nop) Delete(context.Context, ...int64) error                   { return nil }

// DefaultTTL bounds staleness if an eviction is ever lost.
const DefaultTTL = 5 * time.Minute
