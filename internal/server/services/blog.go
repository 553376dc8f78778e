// Package services holds the blog core: account registration, login and
// post management with ownership checks. Protocol adapters call it through
// the Blog interface and never touch storage or credentials directly.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/cache"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Blog is the operation set shared by every protocol adapter.
type Blog interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	DeleteAccount(ctx context.Context, token string) error

	CreatePost(ctx context.Context, token, title, content string) (*models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context, limit, offset int) (*PostPage, error)
	UpdatePost(ctx context.Context, token string, id int64, title, content *string) (*models.Post, error)
	DeletePost(ctx context.Context, token string, id int64) error
}

type RegisterInput struct {
	Username string `json:"username" validate:"username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"min=8,max=128"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
	Username  string
}

// PostPage is one page of posts, newest first, with the effective window.
type PostPage struct {
	Posts  []*models.Post
	Total  int64
	Limit  int
	Offset int
}

type BlogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       *auth.Store
	cache       cache.PostCache
	validate    *validator.Validate
	logger      logging.Logger
	now         func() time.Time
}

type Option func(*BlogService)

// WithCache enables the post read cache.
func WithCache(c cache.PostCache) Option {
	return func(s *BlogService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *BlogService) { s.now = now }
}

func NewBlogService(db *sql.DB, m repomanager.RepositoryManager, store *auth.Store, logger logging.Logger, opts ...Option) *BlogService {
	s := &BlogService{
		db:          db,
		repomanager: m,
		store:       store,
		cache:       cache.Nop{},
		validate:    newValidator(),
		logger:      logger.With("module", "blog_service"),
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ Blog = (*BlogService)(nil)

func (s *BlogService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(err)
	}

	hash, err := s.store.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, dbx.ErrDuplicate) {
			if strings.Contains(err.Error(), "email") {
				return nil, common.Wrap(common.KindConflict, err, "email already registered")
			}
			return nil, common.Wrap(common.KindConflict, err, "username already taken")
		}
		return nil, s.internal(ctx, "create user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *BlogService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, dbx.ErrNotFound) {
			s.store.BurnVerify(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "find user", err)
	}

	if err := s.store.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Warn(ctx, "login failed", "username", username)
			return nil, err
		}
		return nil, s.internal(ctx, "verify password", err)
	}

	tok, err := s.store.Issue(auth.Subject{UserID: user.ID, Username: user.Username})
	if err != nil {
		return nil, s.internal(ctx, "issue token", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &Session{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		UserID:    user.ID,
		Username:  user.Username,
	}, nil
}

func (s *BlogService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	sub, err := s.store.Authenticate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, sub.UserID)
	if err != nil {
		if errors.Is(err, dbx.ErrNotFound) {
			return nil, common.Wrap(common.KindUnauthenticated, err, "user no longer exists")
		}
		return nil, s.internal(ctx, "find user", err)
	}
	return user, nil
}

func (s *BlogService) DeleteAccount(ctx context.Context, token string) error {
	sub, err := s.store.Authenticate(token)
	if err != nil {
		return err
	}

	var ids []int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		ids, err = s.repomanager.Posts(tx).IDsByAuthor(ctx, sub.UserID)
		if err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, sub.UserID)
	})
	if err != nil {
		if errors.Is(err, dbx.ErrNotFound) {
			return common.Wrap(common.KindNotFound, err, "user not found")
		}
		return s.internal(ctx, "delete user", err)
	}

	s.evict(ctx, ids...)
	s.logger.Info(ctx, "account deleted", "user_id", sub.UserID, "posts", len(ids))
	return nil
}

func (s *BlogService) CreatePost(ctx context.Context, token, title, content string) (*models.Post, error) {
	sub, err := s.store.Authenticate(token)
	if err != nil {
		return nil, err
	}

	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if err := s.validatePost(&title, &content); err != nil {
		return nil, err
	}

	now := s.now()
	post, err := s.repomanager.Posts(s.db).Create(ctx, &models.Post{
		Title:     title,
		Content:   content,
		AuthorID:  sub.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, dbx.ErrForeignKey) {
			return nil, common.Wrap(common.KindUnauthenticated, err, "user no longer exists")
		}
		return nil, s.internal(ctx, "create post", err)
	}

	s.logger.Info(ctx, "post created", "post_id", post.ID, "author_id", sub.UserID)
	return post, nil
}

func (s *BlogService) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	cached, stamp, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn(ctx, "post cache read failed", "post_id", id, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	post, err := s.findPost(ctx, id)
	if err != nil {
		return nil, err
	}

	// The stamp was taken before the read; a concurrent update or delete
	// advances it and the fill below is dropped.
	if err := s.cache.Set(ctx, post, stamp); err != nil {
		s.logger.Warn(ctx, "post cache write failed", "post_id", id, "error", err)
	}
	return post, nil
}

func (s *BlogService) ListPosts(ctx context.Context, limit, offset int) (*PostPage, error) {
	if limit < 0 {
		return nil, common.NewError(common.KindValidation, "limit must not be negative")
	}
	if offset < 0 {
		return nil, common.NewError(common.KindValidation, "offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	posts, total, err := s.repomanager.Posts(s.db).List(ctx, limit, offset)
	if err != nil {
		return nil, s.internal(ctx, "list posts", err)
	}

	return &PostPage{Posts: posts, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *BlogService) UpdatePost(ctx context.Context, token string, id int64, title, content *string) (*models.Post, error) {
	sub, err := s.store.Authenticate(token)
	if err != nil {
		return nil, err
	}

	post, err := s.findPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != sub.UserID {
		s.logger.Warn(ctx, "update denied", "post_id", id, "user_id", sub.UserID, "author_id", post.AuthorID)
		return nil, common.NewError(common.KindForbidden, "you are not the author of this post")
	}

	if title == nil && content == nil {
		return nil, common.NewError(common.KindValidation, "nothing to update")
	}
	title, content = trimmed(title), trimmed(content)
	if err := s.validatePost(title, content); err != nil {
		return nil, err
	}

	var updated *models.Post
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Posts(tx)
		if err := repo.Update(ctx, id, sub.UserID, title, content, s.now()); err != nil {
			return err
		}
		var err error
		updated, err = repo.GetByID(ctx, id)
		return err
	})
	s.evict(ctx, id)
	if err != nil {
		if errors.Is(err, dbx.ErrNotFound) {
			return nil, common.Wrap(common.KindNotFound, err, "post not found")
		}
		return nil, s.internal(ctx, "update post", err)
	}

	s.logger.Info(ctx, "post updated", "post_id", id, "author_id", sub.UserID)
	return updated, nil
}

func (s *BlogService) DeletePost(ctx context.Context, token string, id int64) error {
	sub, err := s.store.Authenticate(token)
	if err != nil {
		return err
	}

	post, err := s.findPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != sub.UserID {
		s.logger.Warn(ctx, "delete denied", "post_id", id, "user_id", sub.UserID, "author_id", post.AuthorID)
		return common.NewError(common.KindForbidden, "you are not the author of this post")
	}

	err = s.repomanager.Posts(s.db).Delete(ctx, id, sub.UserID)
	s.evict(ctx, id)
	if err != nil {
		if errors.Is(err, dbx.ErrNotFound) {
			return common.Wrap(common.KindNotFound, err, "post not found")
		}
		return s.internal(ctx, "delete post", err)
	}

	s.logger.Info(ctx, "post deleted", "post_id", id, "author_id", sub.UserID)
	return nil
}

func (s *BlogService) findPost(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.repomanager.Posts(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, dbx.ErrNotFound) {
			return nil, common.Wrap(common.KindNotFound, err, "post not found")
		}
		return nil, s.internal(ctx, "find post", err)
	}
	return post, nil
}

func (s *BlogService) evict(ctx context.Context, ids ...int64) {
	if err := s.cache.Delete(ctx, ids...); err != nil {
		s.logger.Warn(ctx, "post cache eviction failed", "post_ids", ids, "error", err)
	}
}

// internal logs the cause and returns an error that only says "internal error".
func (s *BlogService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.Wrap(common.KindInternal, err, common.ErrInternal.Message)
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
