package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/client/models"
	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/tokenx"
)

// Client pairs a Transport, fixed for the client's lifetime, with one
// session slot.
type Client struct {
	transport Transport
	sessions  SessionStore
	now       func() time.Time
}

func New(t Transport, s SessionStore) *Client {
	return &Client{transport: t, sessions: s, now: time.Now}
}

func (c *Client) Close() error {
	return c.transport.Close()
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return c.transport.Register(ctx, username, email, password)
}

// RegisterAndLogin registers and then logs in with the same credentials.
func (c *Client) RegisterAndLogin(ctx context.Context, username, email, password string) (*models.User, *models.Session, error) {
	user, err := c.Register(ctx, username, email, password)
	if err != nil {
		return nil, nil, err
	}
	session, err := c.Login(ctx, username, password)
	if err != nil {
		return user, nil, err
	}
	return user, session, nil
}

// Login authenticates and stores the issued token, replacing any previous one.
func (c *Client) Login(ctx context.Context, username, password string) (*models.Session, error) {
	session, err := c.transport.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := c.sessions.Save(session.Token); err != nil {
		return nil, err
	}
	return session, nil
}

// Logout empties the slot. The token itself stays valid until it expires.
func (c *Client) Logout() error {
	return c.sessions.Clear()
}

// Status inspects the stored token without contacting the server. Claims
// are read unverified and are for display only.
func (c *Client) Status() (*models.SessionStatus, error) {
	token, err := c.sessions.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return &models.SessionStatus{}, nil
	}

	info, err := tokenx.ParseUnverified(token)
	if err != nil {
		return nil, common.Wrap(common.KindUnauthenticated, err, "stored session token is malformed")
	}
	return &models.SessionStatus{
		LoggedIn:  true,
		UserID:    info.UserID,
		Username:  info.Username,
		ExpiresAt: info.ExpiresAt,
		Expired:   !c.now().Before(info.ExpiresAt),
	}, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	return c.transport.CurrentUser(ctx, token)
}

// DeleteAccount removes the logged-in account and its posts, then empties
// the slot.
func (c *Client) DeleteAccount(ctx context.Context) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	if err := c.transport.DeleteAccount(ctx, token); err != nil {
		return err
	}
	return c.sessions.Clear()
}

func (c *Client) CreatePost(ctx context.Context, title, content string) (*models.Post, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	return c.transport.CreatePost(ctx, token, title, content)
}

func (c *Client) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	return c.transport.GetPost(ctx, id)
}

func (c *Client) ListPosts(ctx context.Context, limit, offset int) (*models.PostPage, error) {
	return c.transport.ListPosts(ctx, limit, offset)
}

func (c *Client) UpdatePost(ctx context.Context, id int64, update models.PostUpdate) (*models.Post, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	return c.transport.UpdatePost(ctx, token, id, update)
}

func (c *Client) DeletePost(ctx context.Context, id int64) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	return c.transport.DeletePost(ctx, token, id)
}

// token returns the stored token or ErrNotLoggedIn for an empty slot.
func (c *Client) token() (string, error) {
	token, err := c.sessions.Load()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}
