package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type updatePostRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type postResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type postPageResponse struct {
	Posts  []postResponse `json:"posts"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := s.blog.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUser(user))
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := s.blog.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		UserID:    session.UserID,
		Username:  session.Username,
	})
}

func (s *HTTPServer) me(c *gin.Context) {
	user, err := s.blog.CurrentUser(c.Request.Context(), accessToken(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(user))
}

func (s *HTTPServer) deleteAccount(c *gin.Context) {
	if err := s.blog.DeleteAccount(c.Request.Context(), accessToken(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) listPosts(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}

	page, err := s.blog.ListPosts(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	posts := make([]postResponse, 0, len(page.Posts))
	for _, p := range page.Posts {
		posts = append(posts, toPost(p))
	}
	c.JSON(http.StatusOK, postPageResponse{Posts: posts, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

func (s *HTTPServer) getPost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	post, err := s.blog.GetPost(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPost(post))
}

// Mutating routes reject a missing token before touching the body or path,
// matching the core's authentication-first order.
func (s *HTTPServer) createPost(c *gin.Context) {
	token := accessToken(c)
	if token == "" {
		writeError(c, common.ErrUnauthenticated)
		return
	}

	var req postRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := s.blog.CreatePost(c.Request.Context(), token, req.Title, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPost(post))
}

func (s *HTTPServer) updatePost(c *gin.Context) {
	token := accessToken(c)
	if token == "" {
		writeError(c, common.ErrUnauthenticated)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := s.blog.UpdatePost(c.Request.Context(), token, id, req.Title, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPost(post))
}

func (s *HTTPServer) deletePost(c *gin.Context) {
	token := accessToken(c)
	if token == "" {
		writeError(c, common.ErrUnauthenticated)
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.blog.DeletePost(c.Request.Context(), token, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func accessToken(c *gin.Context) string {
	return common.BearerToken(c.GetHeader(common.AuthorizationHeaderName))
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(c, common.NewError(common.KindValidation, "request body is empty"))
			return false
		}
		writeError(c, errInvalidJSON)
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(c, common.NewError(common.KindValidation, "%s must be an integer", name))
		return 0, false
	}
	return v, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, common.NewError(common.KindValidation, "post id must be an integer"))
		return 0, false
	}
	return id, true
}

func toUser(u *models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func toPost(p *models.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
