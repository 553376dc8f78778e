// Package client is the caller side of the blog service.
//
// # Overview
//
// The package provides:
//  1. A transport contract (see Transport) with one method per core
//     operation. The session token is always passed explicitly.
//  2. Two implementations of it: GRPCTransport, which speaks the
//     blog.v1.BlogService gRPC API, and HTTPTransport, which speaks the JSON
//     REST API. Both decode server failures into the same common.Error kinds
//     and messages, so callers cannot tell them apart.
//  3. Client, which owns a single session slot (see SessionStore) and
//     supplies the stored token to protected calls.
//
// # Error Handling
//
// Server failures arrive as *common.Error and can be classified with
// errors.Is against the common sentinels or with common.KindOf. A failure to
// reach the server at all wraps ErrUnavailable. A protected call made with
// an empty slot fails locally with ErrNotLoggedIn, which is of kind
// Unauthenticated.
//
// There are no retries and no silent re-authentication.
package client
