package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophblog/internal/client/models"
	"github.com/dmitrijs2005/gophblog/internal/common"
	pb "github.com/dmitrijs2005/gophblog/internal/proto"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCTransport struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.BlogServiceClient
}

// NewGRPCTransport prepares a lazily connecting gRPC client for endpointURL.
// Extra dial options are appended after insecure transport credentials.
func NewGRPCTransport(endpointURL string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCTransport{endpointURL: endpointURL, conn: conn, client: pb.NewBlogServiceClient(conn)}, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCTransport) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	resp, err := s.client.Register(ctx, &pb.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return fromPBUser(resp.GetUser()), nil
}

func (s *GRPCTransport) Login(ctx context.Context, username, password string) (*models.Session, error) {
	resp, err := s.client.Login(ctx, &pb.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &models.Session{
		Token:     resp.GetToken(),
		ExpiresAt: resp.GetExpiresAt().AsTime(),
		UserID:    resp.GetUserId(),
		Username:  resp.GetUsername(),
	}, nil
}

func (s *GRPCTransport) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	resp, err := s.client.GetCurrentUser(withAccessToken(ctx, token), &pb.GetCurrentUserRequest{})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return fromPBUser(resp.GetUser()), nil
}

func (s *GRPCTransport) DeleteAccount(ctx context.Context, token string) error {
	if _, err := s.client.DeleteAccount(withAccessToken(ctx, token), &pb.DeleteAccountRequest{}); err != nil {
		return s.mapError(ctx, err)
	}
	return nil
}

func (s *GRPCTransport) CreatePost(ctx context.Context, token, title, content string) (*models.Post, error) {
	resp, err := s.client.CreatePost(withAccessToken(ctx, token), &pb.CreatePostRequest{Title: title, Content: content})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return fromPBPost(resp.GetPost()), nil
}

func (s *GRPCTransport) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	resp, err := s.client.GetPost(ctx, &pb.GetPostRequest{Id: id})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return fromPBPost(resp.GetPost()), nil
}

func (s *GRPCTransport) ListPosts(ctx context.Context, limit, offset int) (*models.PostPage, error) {
	resp, err := s.client.ListPosts(ctx, &pb.ListPostsRequest{Limit: int64(limit), Offset: int64(offset)})
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	page := &models.PostPage{
		Posts:  make([]*models.Post, 0, len(resp.GetPosts())),
		Total:  resp.GetTotal(),
		Limit:  int(resp.GetLimit()),
		Offset: int(resp.GetOffset()),
	}
	for _, p := range resp.GetPosts() {
		page.Posts = append(page.Posts, fromPBPost(p))
	}
	return page, nil
}

func (s *GRPCTransport) UpdatePost(ctx context.Context, token string, id int64, update models.PostUpdate) (*models.Post, error) {
	req := &pb.UpdatePostRequest{Id: id, Title: update.Title, Content: update.Content}
	resp, err := s.client.UpdatePost(withAccessToken(ctx, token), req)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return fromPBPost(resp.GetPost()), nil
}

func (s *GRPCTransport) DeletePost(ctx context.Context, token string, id int64) error {
	if _, err := s.client.DeletePost(withAccessToken(ctx, token), &pb.DeletePostRequest{Id: id}); err != nil {
		return s.mapError(ctx, err)
	}
	return nil
}

func (s *GRPCTransport) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// fallbackKinds classifies statuses that carry no ErrorInfo detail.
var fallbackKinds = map[codes.Code]common.Kind{
	codes.AlreadyExists:    common.KindConflict,
	codes.Unauthenticated:  common.KindUnauthenticated,
	codes.PermissionDenied: common.KindForbidden,
	codes.NotFound:         common.KindNotFound,
	codes.InvalidArgument:  common.KindValidation,
}

// mapError turns a call failure into a *common.Error with the server's kind
// and message, or into ErrUnavailable when the server was never reached.
func (s *GRPCTransport) mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	}

	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == common.ErrorDomain {
			return common.NewError(common.ParseKind(info.GetReason()), "%s", st.Message())
		}
	}

	if kind, ok := fallbackKinds[st.Code()]; ok {
		return common.NewError(kind, "%s", st.Message())
	}
	return common.Wrap(common.KindInternal, errors.New(st.Message()), common.ErrInternal.Message)
}

func fromPBUser(u *pb.User) *models.User {
	if u == nil {
		return nil
	}
	return &models.User{
		ID:        u.GetId(),
		Username:  u.GetUsername(),
		Email:     u.GetEmail(),
		CreatedAt: u.GetCreatedAt().AsTime(),
	}
}

func fromPBPost(p *pb.Post) *models.Post {
	if p == nil {
		return nil
	}
	return &models.Post{
		ID:        p.GetId(),
		Title:     p.GetTitle(),
		Content:   p.GetContent(),
		AuthorID:  p.GetAuthorId(),
		CreatedAt: p.GetCreatedAt().AsTime(),
		UpdatedAt: p.GetUpdatedAt().AsTime(),
	}
}
