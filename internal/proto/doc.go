// Package proto holds the blog.v1 wire contract generated from blog.proto:
// request and response messages and the BlogService client and server
// bindings.
package proto

//go:generate protoc --go_out=. --go_opt=paths=source_relative --go-grpc_out=. --go-grpc_opt=paths=source_relative blog.proto
