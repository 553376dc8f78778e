package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophblog/internal/flagx"
)

// parseFlags overlays the client flags found in args onto cfg. Other flags,
// including -c, are filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-a", "--a",
		"-transport", "--transport",
		"-token-file", "--token-file",
		"-timeout", "--timeout",
	})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "server address")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: http or grpc")
	fs.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "session token file")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-call timeout")

	return fs.Parse(args)
}
