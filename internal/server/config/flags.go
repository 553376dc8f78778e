package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/flagx"
)

// parseFlags overrides cfg with the server flags present in args.
//
//	-a string     HTTP listen address (":3000")
//	-g string     gRPC listen address (":50051")
//	-b string     database driver: postgres | sqlite
//	-d string     database DSN
//	-s string     JWT HMAC secret
//	-t duration   session token TTL ("24h")
//	-o string     comma separated CORS origins
//	-r string     Redis address; enables the post cache
//	-l string     log level
//
// Unknown flags are filtered out with flagx.FilterArgs so -c and friends pass
// through untouched.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-b", "-d", "-s", "-t", "-o", "-r", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTP.Addr, "a", cfg.HTTP.Addr, "HTTP listen address")
	fs.StringVar(&cfg.GRPC.Addr, "g", cfg.GRPC.Addr, "gRPC listen address")
	fs.StringVar(&cfg.Database.Driver, "b", cfg.Database.Driver, "database driver")
	fs.StringVar(&cfg.Database.DSN, "d", cfg.Database.DSN, "database DSN")
	fs.StringVar(&cfg.Auth.JWTSecret, "s", cfg.Auth.JWTSecret, "JWT secret")
	fs.DurationVar(&cfg.Auth.TokenTTL, "t", cfg.Auth.TokenTTL, "session token TTL")
	origins := fs.String("o", strings.Join(cfg.HTTP.CORSAllowedOrigins, ","), "CORS allowed origins")
	fs.StringVar(&cfg.Redis.Addr, "r", cfg.Redis.Addr, "Redis address")
	fs.StringVar(&cfg.Logging.Level, "l", cfg.Logging.Level, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.HTTP.CORSAllowedOrigins = []string{*origins}
	return nil
}
