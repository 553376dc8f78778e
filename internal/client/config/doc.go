// Package config loads runtime configuration for the blog CLI.
//
// Sources & precedence
//
//  1. Built-in defaults.
//  2. Optional config file selected with -c or -config (any format viper
//     reads: YAML, JSON, TOML).
//  3. Environment variables BLOG_ADDR, BLOG_TRANSPORT, BLOG_TOKEN_FILE and
//     BLOG_TIMEOUT.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string            server address (default depends on -transport)
//	-transport string    http | grpc (default "http")
//	-token-file string   session slot file (default ~/.blog_token)
//	-timeout duration    per-call timeout (default 10s)
//
// # File schema
//
//	addr: localhost:3000
//	transport: http
//	token_file: /home/me/.blog_token
//	timeout: 10s
package config
