package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/client/models"
)

// Transport carries core operations to a server. Implementations hold no
// session state; protected operations take the token as an argument.
type Transport interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	DeleteAccount(ctx context.Context, token string) error
	CreatePost(ctx context.Context, token, title, content string) (*models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context, limit, offset int) (*models.PostPage, error)
	UpdatePost(ctx context.Context, token string, id int64, update models.PostUpdate) (*models.Post, error)
	DeletePost(ctx context.Context, token string, id int64) error
	Close() error
}

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// NewTransport builds the transport named kind ("http" or "grpc") for addr.
func NewTransport(kind, addr string) (Transport, error) {
	switch strings.ToLower(kind) {
	case TransportHTTP:
		return NewHTTPTransport(addr, nil)
	case TransportGRPC:
		return NewGRPCTransport(addr)
	}
	return nil, fmt.Errorf("unknown transport %q (want http or grpc)", kind)
}
