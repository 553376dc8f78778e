package common

// AuthorizationHeaderName is the HTTP header and gRPC metadata key that
// carries the session token as "Bearer <token>".
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the raw token in AuthorizationHeaderName values.
const BearerPrefix = "Bearer "

// ErrorDomain tags structured error details produced by the blog service.
const ErrorDomain = "blog"
