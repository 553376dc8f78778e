package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	pb "github.com/dmitrijs2005/gophblog/internal/proto"
	"github.com/dmitrijs2005/gophblog/internal/server/metrics"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ---- fakes ----

type fakeBlog struct {
	err       error
	gotToken  string
	gotTitle  *string
	gotLimit  int
	panicking bool
	post      *models.Post
}

func (f *fakeBlog) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: 1, Username: in.Username, Email: in.Email, CreatedAt: time.Unix(100, 0).UTC()}, nil
}

func (f *fakeBlog) Login(context.Context, string, string) (*services.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.Session{Token: "tok", ExpiresAt: time.Unix(200, 0).UTC(), UserID: 1, Username: "ivan"}, nil
}

func (f *fakeBlog) CurrentUser(_ context.Context, token string) (*models.User, error) {
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: 1, Username: "ivan"}, nil
}

func (f *fakeBlog) DeleteAccount(_ context.Context, token string) error {
	f.gotToken = token
	return f.err
}

func (f *fakeBlog) CreatePost(_ context.Context, token, title, content string) (*models.Post, error) {
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return &models.Post{ID: 5, Title: title, Content: content, AuthorID: 1}, nil
}

func (f *fakeBlog) GetPost(_ context.Context, id int64) (*models.Post, error) {
	if f.panicking {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.post, nil
}

func (f *fakeBlog) ListPosts(_ context.Context, limit, offset int) (*services.PostPage, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &services.PostPage{Posts: []*models.Post{{ID: 2}, {ID: 1}}, Total: 2, Limit: 10, Offset: offset}, nil
}

func (f *fakeBlog) UpdatePost(_ context.Context, token string, id int64, title, content *string) (*models.Post, error) {
	f.gotToken, f.gotTitle = token, title
	if f.err != nil {
		return nil, f.err
	}
	return &models.Post{ID: id, Title: *title}, nil
}

func (f *fakeBlog) DeletePost(_ context.Context, token string, _ int64) error {
	f.gotToken = token
	return f.err
}

// ---- helpers ----

func startBufconn(t *testing.T, blog services.Blog, m *metrics.Metrics) pb.BlogServiceClient {
	t.Helper()
	return pb.NewBlogServiceClient(dialBufconn(t, blog, m))
}

func dialBufconn(t *testing.T, blog services.Blog, m *metrics.Metrics) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer("bufconn", logging.Nop(), blog, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return conn
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), common.AuthorizationHeaderName, token)
}

// ---- tests ----

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), &fakeBlog{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), &fakeBlog{}, nil)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestServer_AcceptsPlainProtobufCallers(t *testing.T) {
	blog := &fakeBlog{}
	conn := dialBufconn(t, blog, nil)
	ctx := context.Background()

	require.NoError(t, conn.Invoke(ctx, pb.BlogService_ListPosts_FullMethodName, &emptypb.Empty{}, &emptypb.Empty{}))
	assert.Equal(t, 0, blog.gotLimit)

	// Int64Value shares field 1 with ListPostsRequest.limit.
	var page pb.ListPostsResponse
	require.NoError(t, conn.Invoke(ctx, pb.BlogService_ListPosts_FullMethodName, wrapperspb.Int64(25), &page))
	assert.Equal(t, 25, blog.gotLimit)
	assert.Equal(t, int64(2), page.GetTotal())
	assert.Len(t, page.GetPosts(), 2)
}

func TestHandlers_Success(t *testing.T) {
	blog := &fakeBlog{post: &models.Post{ID: 9, Title: "t", CreatedAt: time.Unix(300, 0).UTC()}}
	c := startBufconn(t, blog, nil)
	ctx := context.Background()

	reg, err := c.Register(ctx, &pb.RegisterRequest{Username: "ivan", Email: "i@x.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "ivan", reg.GetUser().GetUsername())
	assert.True(t, reg.User.CreatedAt.AsTime().Equal(time.Unix(100, 0)))

	login, err := c.Login(ctx, &pb.LoginRequest{Username: "ivan", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "tok", login.Token)
	assert.Equal(t, int64(200), login.ExpiresAt.AsTime().Unix())

	got, err := c.GetPost(ctx, &pb.GetPostRequest{Id: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.GetPost().GetId())

	list, err := c.ListPosts(ctx, &pb.ListPostsRequest{Limit: 0})
	require.NoError(t, err)
	assert.Len(t, list.Posts, 2)
	assert.Equal(t, int64(10), list.GetLimit())
	assert.Equal(t, 0, blog.gotLimit)

	_, err = c.CreatePost(withToken("Bearer abc"), &pb.CreatePostRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, "abc", blog.gotToken)

	title := "new"
	upd, err := c.UpdatePost(withToken("raw-token"), &pb.UpdatePostRequest{Id: 3, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "raw-token", blog.gotToken)
	require.NotNil(t, blog.gotTitle)
	assert.Equal(t, "new", upd.GetPost().Title)

	_, err = c.DeletePost(withToken("Bearer d"), &pb.DeletePostRequest{Id: 3})
	require.NoError(t, err)
	assert.Equal(t, "d", blog.gotToken)

	_, err = c.GetCurrentUser(context.Background(), &pb.GetCurrentUserRequest{})
	require.NoError(t, err)
	assert.Empty(t, blog.gotToken)

	_, err = c.DeleteAccount(withToken("Bearer e"), &pb.DeleteAccountRequest{})
	require.NoError(t, err)
	assert.Equal(t, "e", blog.gotToken)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{common.NewError(common.KindConflict, "username already taken"), codes.AlreadyExists, "username already taken"},
		{common.ErrInvalidCredentials, codes.Unauthenticated, common.ErrInvalidCredentials.Message},
		{common.ErrTokenExpired, codes.Unauthenticated, "token expired"},
		{common.NewError(common.KindForbidden, "nope"), codes.PermissionDenied, "nope"},
		{common.NewError(common.KindNotFound, "post not found"), codes.NotFound, "post not found"},
		{common.NewError(common.KindValidation, "title must not be empty"), codes.InvalidArgument, "title must not be empty"},
		{common.Wrap(common.KindInternal, errors.New("pq: secret detail"), "internal error"), codes.Internal, "internal error"},
		{errors.New("unclassified"), codes.Internal, "internal error"},
	}

	blog := &fakeBlog{}
	c := startBufconn(t, blog, nil)

	for _, tc := range cases {
		blog.err = tc.err
		_, err := c.GetPost(context.Background(), &pb.GetPostRequest{Id: 1})

		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, tc.code, st.Code())
		assert.Equal(t, tc.msg, st.Message())

		var reason string
		for _, d := range st.Details() {
			if info, ok := d.(*errdetails.ErrorInfo); ok {
				reason = info.Reason
				assert.Equal(t, common.ErrorDomain, info.Domain)
			}
		}
		assert.Equal(t, common.KindOf(tc.err).String(), reason)
	}
}

func TestRequestInterceptor_RequestIDAndPanic(t *testing.T) {
	m := metrics.New()
	blog := &fakeBlog{panicking: true}
	c := startBufconn(t, blog, m)

	_, err := c.GetPost(context.Background(), &pb.GetPostRequest{Id: 1})
	require.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal error", status.Convert(err).Message())

	var header metadata.MD

	blog.panicking = false
	blog.post = &models.Post{ID: 1}
	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDHeader, "req-1")
	_, err = c.GetPost(ctx, &pb.GetPostRequest{Id: 1}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1"}, header.Get(requestIDHeader))

	count, err := testutil.GatherAndCount(m.Registry(), "blog_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
