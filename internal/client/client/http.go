package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/client/models"
	"github.com/dmitrijs2005/gophblog/internal/common"
)

type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport talks to the REST API at baseURL. A missing scheme means
// plain http. hc may be nil.
func NewHTTPTransport(baseURL string, hc *http.Client) (*HTTPTransport, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", baseURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q: missing host", baseURL)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPTransport{baseURL: strings.TrimRight(u.String(), "/"), client: hc}, nil
}

type httpUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type httpPost struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type httpLogin struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
}

type httpPostPage struct {
	Posts  []httpPost `json:"posts"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type httpError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *HTTPTransport) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var out httpUser
	if err := s.do(ctx, http.MethodPost, "/auth/register", "", body, &out); err != nil {
		return nil, err
	}
	return out.model(), nil
}

func (s *HTTPTransport) Login(ctx context.Context, username, password string) (*models.Session, error) {
	body := map[string]string{"username": username, "password": password}
	var out httpLogin
	if err := s.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &models.Session{Token: out.Token, ExpiresAt: out.ExpiresAt, UserID: out.UserID, Username: out.Username}, nil
}

func (s *HTTPTransport) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	var out httpUser
	if err := s.do(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return out.model(), nil
}

func (s *HTTPTransport) DeleteAccount(ctx context.Context, token string) error {
	return s.do(ctx, http.MethodDelete, "/auth/me", token, nil, nil)
}

func (s *HTTPTransport) CreatePost(ctx context.Context, token, title, content string) (*models.Post, error) {
	body := map[string]string{"title": title, "content": content}
	var out httpPost
	if err := s.do(ctx, http.MethodPost, "/posts", token, body, &out); err != nil {
		return nil, err
	}
	return out.model(), nil
}

func (s *HTTPTransport) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var out httpPost
	if err := s.do(ctx, http.MethodGet, postPath(id), "", nil, &out); err != nil {
		return nil, err
	}
	return out.model(), nil
}

func (s *HTTPTransport) ListPosts(ctx context.Context, limit, offset int) (*models.PostPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out httpPostPage
	if err := s.do(ctx, http.MethodGet, "/posts?"+q.Encode(), "", nil, &out); err != nil {
		return nil, err
	}

	page := &models.PostPage{
		Posts:  make([]*models.Post, 0, len(out.Posts)),
		Total:  out.Total,
		Limit:  out.Limit,
		Offset: out.Offset,
	}
	for i := range out.Posts {
		page.Posts = append(page.Posts, out.Posts[i].model())
	}
	return page, nil
}

func (s *HTTPTransport) UpdatePost(ctx context.Context, token string, id int64, update models.PostUpdate) (*models.Post, error) {
	body := struct {
		Title   *string `json:"title,omitempty"`
		Content *string `json:"content,omitempty"`
	}{update.Title, update.Content}

	var out httpPost
	if err := s.do(ctx, http.MethodPut, postPath(id), token, body, &out); err != nil {
		return nil, err
	}
	return out.model(), nil
}

func (s *HTTPTransport) DeletePost(ctx context.Context, token string, id int64) error {
	return s.do(ctx, http.MethodDelete, postPath(id), token, nil, nil)
}

func (s *HTTPTransport) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}

// do sends one request. in is JSON-encoded when non-nil; a 2xx body is
// decoded into out when out is non-nil.
func (s *HTTPTransport) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", common.BearerPrefix+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeHTTPError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return common.Wrap(common.KindInternal, err, "malformed server response")
	}
	return nil
}

// statusKinds classifies error responses that carry no error envelope.
var statusKinds = map[int]common.Kind{
	http.StatusBadRequest:   common.KindValidation,
	http.StatusUnauthorized: common.KindUnauthenticated,
	http.StatusForbidden:    common.KindForbidden,
	http.StatusNotFound:     common.KindNotFound,
	http.StatusConflict:     common.KindConflict,
}

func decodeHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env httpError
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Code != "" {
		return common.NewError(common.ParseKind(env.Error.Code), "%s", env.Error.Message)
	}

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	}
	if kind, ok := statusKinds[resp.StatusCode]; ok {
		return common.NewError(kind, "%s", http.StatusText(resp.StatusCode))
	}
	return common.Wrap(common.KindInternal, errors.New(resp.Status), common.ErrInternal.Message)
}

func (u *httpUser) model() *models.User {
	return &models.User{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (p *httpPost) model() *models.Post {
	return &models.Post{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
