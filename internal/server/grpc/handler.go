package grpc

import (
	"context"

	pb "github.com/dmitrijs2005/gophblog/internal/proto"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func (s *GRPCServer) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.RegisterResponse, error) {
	user, err := s.blog.Register(ctx, services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.RegisterResponse{User: toPBUser(user)}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {
	session, err := s.blog.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.LoginResponse{
		Token:     session.Token,
		ExpiresAt: timestamppb.New(session.ExpiresAt),
		UserId:    session.UserID,
		Username:  session.Username,
	}, nil
}

func (s *GRPCServer) GetCurrentUser(ctx context.Context, _ *pb.GetCurrentUserRequest) (*pb.GetCurrentUserResponse, error) {
	user, err := s.blog.CurrentUser(ctx, accessToken(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetCurrentUserResponse{User: toPBUser(user)}, nil
}

func (s *GRPCServer) DeleteAccount(ctx context.Context, _ *pb.DeleteAccountRequest) (*pb.DeleteAccountResponse, error) {
	if err := s.blog.DeleteAccount(ctx, accessToken(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return &pb.DeleteAccountResponse{}, nil
}

func (s *GRPCServer) CreatePost(ctx context.Context, req *pb.CreatePostRequest) (*pb.CreatePostResponse, error) {
	post, err := s.blog.CreatePost(ctx, accessToken(ctx), req.Title, req.Content)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.CreatePostResponse{Post: toPBPost(post)}, nil
}

func (s *GRPCServer) GetPost(ctx context.Context, req *pb.GetPostRequest) (*pb.GetPostResponse, error) {
	post, err := s.blog.GetPost(ctx, req.Id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetPostResponse{Post: toPBPost(post)}, nil
}

func (s *GRPCServer) ListPosts(ctx context.Context, req *pb.ListPostsRequest) (*pb.ListPostsResponse, error) {
	page, err := s.blog.ListPosts(ctx, int(req.GetLimit()), int(req.GetOffset()))
	if err != nil {
		return nil, toStatus(err)
	}

	posts := make([]*pb.Post, 0, len(page.Posts))
	for _, p := range page.Posts {
		posts = append(posts, toPBPost(p))
	}
	return &pb.ListPostsResponse{
		Posts:  posts,
		Total:  page.Total,
		Limit:  int64(page.Limit),
		Offset: int64(page.Offset),
	}, nil
}

func (s *GRPCServer) UpdatePost(ctx context.Context, req *pb.UpdatePostRequest) (*pb.UpdatePostResponse, error) {
	post, err := s.blog.UpdatePost(ctx, accessToken(ctx), req.Id, req.Title, req.Content)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.UpdatePostResponse{Post: toPBPost(post)}, nil
}

func (s *GRPCServer) DeletePost(ctx context.Context, req *pb.DeletePostRequest) (*pb.DeletePostResponse, error) {
	if err := s.blog.DeletePost(ctx, accessToken(ctx), req.Id); err != nil {
		return nil, toStatus(err)
	}
	return &pb.DeletePostResponse{}, nil
}

func toPBUser(u *models.User) *pb.User {
	return &pb.User{
		Id:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: timestamppb.New(u.CreatedAt),
	}
}

func toPBPost(p *models.Post) *pb.Post {
	return &pb.Post{
		Id:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorId:  p.AuthorID,
		CreatedAt: timestamppb.New(p.CreatedAt),
		UpdatedAt: timestamppb.New(p.UpdatedAt),
	}
}
