package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/cryptox"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = cryptox.Argon2Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 8, KeyLen: 16}

// --- helpers ---

type fixture struct {
	svc   *BlogService
	store *auth.Store
	cache *mapCache
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := dbx.Open(ctx, dbx.DialectSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := repomanager.NewRepositoryManager(dbx.DialectSQLite)
	require.NoError(t, err)
	require.NoError(t, m.RunMigrations(ctx, db))

	store, err := auth.NewStore([]byte("test-secret"), time.Hour, fastParams)
	require.NoError(t, err)

	c := newMapCache()
	opts = append([]Option{WithCache(c)}, opts...)
	return &fixture{svc: NewBlogService(db, m, store, logging.Nop(), opts...), store: store, cache: c}
}

// login registers username and returns its token.
func (f *fixture) login(t *testing.T, username string) *Session {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Username: username, Email: username + "@example.com", Password: "password123"})
	require.NoError(t, err)
	s, err := f.svc.Login(ctx, username, "password123")
	require.NoError(t, err)
	return s
}

func requireKind(t *testing.T, err error, kind common.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, common.KindOf(err), "unexpected error: %v", err)
}

func ptr(s string) *string { return &s }

// mapCache follows the PostCache stamp contract in memory.
type mapCache struct {
	mu     sync.Mutex
	posts  map[int64]models.Post
	stamps map[int64]int
	hits   int

	// beforeSet runs at the start of Set, outside the lock.
	beforeSet func()
}

func newMapCache() *mapCache {
	return &mapCache{posts: map[int64]models.Post{}, stamps: map[int64]int{}}
}

func (c *mapCache) Get(_ context.Context, id int64) (*models.Post, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stamp := strconv.Itoa(c.stamps[id])
	p, ok := c.posts[id]
	if !ok {
		return nil, stamp, nil
	}
	c.hits++
	return &p, stamp, nil
}

func (c *mapCache) Set(_ context.Context, p *models.Post, stamp string) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if strconv.Itoa(c.stamps[p.ID]) != stamp {
		return nil
	}
	c.posts[p.ID] = *p
	return nil
}

func (c *mapCache) Delete(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.stamps[id]++
		delete(c.posts, id)
	}
	return nil
}

func (c *mapCache) has(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.posts[id]
	return ok
}

// --- register / login ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), RegisterInput{Username: "ivan_1", Email: "Ivan@Example.COM", Password: "password123"})
	require.NoError(t, err)

	assert.Positive(t, u.ID)
	assert.Equal(t, "ivan_1", u.Username)
	assert.Equal(t, "ivan@example.com", u.Email)
	assert.NotContains(t, u.PasswordHash, "password123")
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))
	assert.False(t, u.CreatedAt.IsZero())
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]RegisterInput{
		"short username":   {Username: "ab", Email: "a@b.com", Password: "password123"},
		"long username":    {Username: strings.Repeat("a", 33), Email: "a@b.com", Password: "password123"},
		"bad username":     {Username: "iv an", Email: "a@b.com", Password: "password123"},
		"bad email":        {Username: "ivan", Email: "not-an-email", Password: "password123"},
		"empty email":      {Username: "ivan", Email: "", Password: "password123"},
		"short password":   {Username: "ivan", Email: "a@b.com", Password: "short"},
		"long password":    {Username: "ivan", Email: "a@b.com", Password: strings.Repeat("p", 129)},
		"everything empty": {},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), in)
			requireKind(t, err, common.KindValidation)
			assert.True(t, errors.Is(err, common.ErrValidation))
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "ivan", Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "ivan", Email: "other@example.com", Password: "password123"})
	requireKind(t, err, common.KindConflict)
	assert.Equal(t, "username already taken", err.Error())

	_, err = f.svc.Register(ctx, RegisterInput{Username: "petr", Email: "IVAN@example.com", Password: "password123"})
	requireKind(t, err, common.KindConflict)
	assert.Equal(t, "email already registered", err.Error())
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), RegisterInput{Username: "racer", Email: "racer@example.com", Password: "password123"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireKind(t, err, common.KindConflict)
	}
	assert.Equal(t, 1, ok)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	s := f.login(t, "ivan")

	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "ivan", s.Username)
	assert.True(t, s.ExpiresAt.After(time.Now()))

	sub, err := f.store.Authenticate(s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, sub.UserID)
}

func TestLogin_InvalidCredentialsIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.login(t, "ivan")

	_, errWrong := f.svc.Login(context.Background(), "ivan", "wrong-password")
	_, errUnknown := f.svc.Login(context.Background(), "nobody", "password123")

	requireKind(t, errWrong, common.KindInvalidCredentials)
	requireKind(t, errUnknown, common.KindInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestCurrentUserAndDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.login(t, "ivan")
	other := f.login(t, "petr")

	me, err := f.svc.CurrentUser(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, me.ID)

	p1, err := f.svc.CreatePost(ctx, s.Token, "mine", "body")
	require.NoError(t, err)
	p2, err := f.svc.CreatePost(ctx, other.Token, "theirs", "body")
	require.NoError(t, err)
	_, err = f.svc.GetPost(ctx, p1.ID)
	require.NoError(t, err)
	require.True(t, f.cache.has(p1.ID))

	require.NoError(t, f.svc.DeleteAccount(ctx, s.Token))

	assert.False(t, f.cache.has(p1.ID))
	_, err = f.svc.GetPost(ctx, p1.ID)
	requireKind(t, err, common.KindNotFound)
	_, err = f.svc.GetPost(ctx, p2.ID)
	require.NoError(t, err)

	// the token is still validly signed but its user is gone
	_, err = f.svc.CurrentUser(ctx, s.Token)
	requireKind(t, err, common.KindUnauthenticated)
	_, err = f.svc.CreatePost(ctx, s.Token, "t", "c")
	requireKind(t, err, common.KindUnauthenticated)
	err = f.svc.DeleteAccount(ctx, s.Token)
	requireKind(t, err, common.KindNotFound)

	_, err = f.svc.Login(ctx, "ivan", "password123")
	requireKind(t, err, common.KindInvalidCredentials)
}

// --- posts ---

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.login(t, "ivan")

	p, err := f.svc.CreatePost(ctx, s.Token, "  Hello  ", "World")
	require.NoError(t, err)
	assert.Positive(t, p.ID)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, s.UserID, p.AuthorID)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestCreatePost_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.login(t, "ivan")

	_, err := f.svc.CreatePost(ctx, "", "t", "c")
	requireKind(t, err, common.KindUnauthenticated)

	_, err = f.svc.CreatePost(ctx, "garbage", "t", "c")
	require.ErrorIs(t, err, common.ErrTokenMalformed)

	// authentication is checked before validation
	_, err = f.svc.CreatePost(ctx, "garbage", "", "")
	requireKind(t, err, common.KindUnauthenticated)

	cases := map[string][2]string{
		"blank title":   {"   ", "c"},
		"blank content": {"t", "\n\t "},
		"long title":    {strings.Repeat("x", 256), "c"},
	}
	for name, tc := range cases {
		_, err := f.svc.CreatePost(ctx, s.Token, tc[0], tc[1])
		requireKind(t, err, common.KindValidation)
		assert.NotEmpty(t, err.Error(), name)
	}

	_, err = f.svc.CreatePost(ctx, s.Token, strings.Repeat("x", 255), "c")
	require.NoError(t, err)
}

func TestExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.login(t, "ivan")
	p, err := f.svc.CreatePost(ctx, s.Token, "t", "c")
	require.NoError(t, err)

	expired, err := auth.NewStore([]byte("test-secret"), -time.Hour, fastParams)
	require.NoError(t, err)
	tok, err := expired.Issue(auth.Subject{UserID: s.UserID, Username: s.Username})
	require.NoError(t, err)

	_, err = f.svc.CreatePost(ctx, tok.Value, "t", "c")
	require.ErrorIs(t, err, common.ErrTokenExpired)
	_, err = f.svc.UpdatePost(ctx, tok.Value, p.ID, ptr("x"), nil)
	require.ErrorIs(t, err, common.ErrTokenExpired)
	err = f.svc.DeletePost(ctx, tok.Value, p.ID)
	require.ErrorIs(t, err, common.ErrTokenExpired)
	_, err = f.svc.CurrentUser(ctx, tok.Value)
	require.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestGetPost_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetPost(context.Background(), 999)
	requireKind(t, err, common.KindNotFound)
	assert.Equal(t, "post not found", err.Error())
}

func TestGetPost_ReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.login(t, "ivan")
	p, err := f.svc.CreatePost(ctx, s.Token, "t", "c")
	require.NoError(t, err)

	_, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.hits)

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, p.Title, got.Title)
}

func TestGetPost_FillRacingDeleteIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.login(t, "ivan")
	p, err := f.svc.CreatePost(ctx, s.Token, "t", "c")
	require.NoError(t, err)

	// The delete lands after GetPost read the row but before it fills the cache.
	f.cache.beforeSet = func() {
		require.NoError(t, f.svc.DeletePost(ctx, s.Token, p.ID))
	}
	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	assert.False(t, f.cache.has(p.ID))
	_, err = f.svc.GetPost(ctx, p.ID)
	requireKind(t, err, common.KindNotFound)
}

func TestGetPost_FillRacingUpdateIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.login(t, "ivan")
	p, err := f.svc.CreatePost(ctx, s.Token, "t", "old")
	require.NoError(t, err)

	f.cache.beforeSet = func() {
		_, err := f.svc.UpdatePost(ctx, s.Token, p.ID, nil, ptr("new"))
		require.NoError(t, err)
	}
	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "old", got.Content)

	assert.False(t, f.cache.has(p.ID))
	got, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Content)

	// With no writer in between, the next read fills the cache again.
	assert.True(t, f.cache.has(p.ID))
	got, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Content)
	assert.Equal(t, 1, f.cache.hits)
}

func TestListPosts(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	f := newFixture(t, WithClock(clock))
	ctx := context.Background()
	s := f.login(t, "ivan")

	var ids []int64
	for i := 0; i < 12; i++ {
		p, err := f.svc.CreatePost(ctx, s.Token, "t", "c")
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	page, err := f.svc.ListPosts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, page.Limit)
	assert.Equal(t, int64(12), page.Total)
	require.Len(t, page.Posts, DefaultPageLimit)
	assert.Equal(t, ids[11], page.Posts[0].ID)
	for i := 1; i < len(page.Posts); i++ {
		assert.True(t, page.Posts[i-1].CreatedAt.After(page.Posts[i].CreatedAt))
	}

	page, err = f.svc.ListPosts(ctx, 5, 10)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)
	assert.Equal(t, 10, page.Offset)
	assert.Equal(t, ids[0], page.Posts[1].ID)

	page, err = f.svc.ListPosts(ctx, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, page.Limit)
	assert.Len(t, page.Posts, 12)

	page, err = f.svc.ListPosts(ctx, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, int64(12), page.Total)

	_, err = f.svc.ListPosts(ctx, -1, 0)
	requireKind(t, err, common.KindValidation)
	_, err = f.svc.ListPosts(ctx, 10, -1)
	requireKind(t, err, common.KindValidation)
}

func TestUpdatePost(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	f := newFixture(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	s := f.login(t, "ivan")

	p, err := f.svc.CreatePost(ctx, s.Token, "title", "content")
	require.NoError(t, err)
	_, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)

	now = base.Add(time.Minute)
	u, err := f.svc.UpdatePost(ctx, s.Token, p.ID, ptr(" new title "), nil)
	require.NoError(t, err)
	assert.Equal(t, "new title", u.Title)
	assert.Equal(t, "content", u.Content)
	assert.Equal(t, base, u.CreatedAt)
	assert.Equal(t, now, u.UpdatedAt)
	assert.False(t, f.cache.has(p.ID))

	now = base.Add(2 * time.Minute)
	u, err = f.svc.UpdatePost(ctx, s.Token, p.ID, nil, ptr("new content"))
	require.NoError(t, err)
	assert.Equal(t, "new title", u.Title)
	assert.Equal(t, "new content", u.Content)
	assert.Equal(t, now, u.UpdatedAt)

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestUpdatePost_ErrorOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.login(t, "ivan")
	other := f.login(t, "petr")

	p, err := f.svc.CreatePost(ctx, owner.Token, "title", "content")
	require.NoError(t, err)

	_, err = f.svc.UpdatePost(ctx, "bad", 999, nil, nil)
	requireKind(t, err, common.KindUnauthenticated)

	_, err = f.svc.UpdatePost(ctx, other.Token, 999, nil, nil)
	requireKind(t, err, common.KindNotFound)

	_, err = f.svc.UpdatePost(ctx, other.Token, p.ID, ptr(""), nil)
	requireKind(t, err, common.KindForbidden)

	_, err = f.svc.UpdatePost(ctx, owner.Token, p.ID, nil, nil)
	requireKind(t, err, common.KindValidation)

	_, err = f.svc.UpdatePost(ctx, owner.Token, p.ID, ptr("  "), nil)
	requireKind(t, err, common.KindValidation)

	_, err = f.svc.UpdatePost(ctx, owner.Token, p.ID, nil, ptr(""))
	requireKind(t, err, common.KindValidation)

	_, err = f.svc.UpdatePost(ctx, owner.Token, p.ID, ptr(strings.Repeat("x", 256)), nil)
	requireKind(t, err, common.KindValidation)

	got, err := f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "title", got.Title)
	assert.Equal(t, "content", got.Content)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.login(t, "ivan")
	other := f.login(t, "petr")

	p, err := f.svc.CreatePost(ctx, owner.Token, "title", "content")
	require.NoError(t, err)
	_, err = f.svc.GetPost(ctx, p.ID)
	require.NoError(t, err)

	requireKind(t, f.svc.DeletePost(ctx, "", p.ID), common.KindUnauthenticated)
	requireKind(t, f.svc.DeletePost(ctx, other.Token, p.ID), common.KindForbidden)
	requireKind(t, f.svc.DeletePost(ctx, other.Token, 999), common.KindNotFound)

	require.NoError(t, f.svc.DeletePost(ctx, owner.Token, p.ID))
	assert.False(t, f.cache.has(p.ID))

	_, err = f.svc.GetPost(ctx, p.ID)
	requireKind(t, err, common.KindNotFound)
	requireKind(t, f.svc.DeletePost(ctx, owner.Token, p.ID), common.KindNotFound)
}

func TestDeletePost_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.login(t, "ivan")

	p, err := f.svc.CreatePost(ctx, owner.Token, "title", "content")
	require.NoError(t, err)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.DeletePost(ctx, owner.Token, p.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireKind(t, err, common.KindNotFound)
	}
	assert.Equal(t, 1, ok)
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.db.Close())

	_, err := f.svc.ListPosts(context.Background(), 10, 0)
	requireKind(t, err, common.KindInternal)
	assert.Equal(t, "internal error", err.Error())
	assert.Equal(t, "internal error", common.SafeMessage(err))
}
