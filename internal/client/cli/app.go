package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/client/client"
	"github.com/dmitrijs2005/gophblog/internal/client/config"
	"github.com/dmitrijs2005/gophblog/internal/common"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitCallerError = 1
	ExitServerError = 2
)

// newTransport is a test seam for client.NewTransport.
var newTransport = client.NewTransport

type App struct {
	client  *client.Client
	timeout time.Duration
	reader  *bufio.Reader
	out     io.Writer
	errOut  io.Writer

	commands map[string]command
}

type command struct {
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

// usageError is a local caller mistake; it never reaches the server.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func NewApp(c *client.Client, timeout time.Duration, in io.Reader, out, errOut io.Writer) *App {
	a := &App{
		client:  c,
		timeout: timeout,
		reader:  bufio.NewReader(in),
		out:     out,
		errOut:  errOut,
	}
	a.commands = map[string]command{
		"register":   {"create an account and log in", (*App).register},
		"login":      {"log in and store the session token", (*App).login},
		"logout":     {"forget the stored session token", (*App).logout},
		"status":     {"show the stored session (offline)", (*App).status},
		"whoami":     {"show the logged-in account", (*App).whoami},
		"unregister": {"delete your account and all its posts", (*App).unregister},
		"create":     {"publish a post", (*App).createPost},
		"get":        {"show one post: get <id>", (*App).getPost},
		"list":       {"list posts, newest first", (*App).listPosts},
		"update":     {"edit your post: update <id> [-t title] [-b body]", (*App).updatePost},
		"delete":     {"delete your post: delete <id>", (*App).deletePost},
		"shell":      {"read commands interactively", (*App).shell},
	}
	return a
}

func (a *App) Close() error {
	return a.client.Close()
}

// Main parses global flags, builds the client and runs one command. It
// returns the process exit code.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("blog", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.String("a", "", "server address")
	global.String("transport", "http", "transport: http or grpc")
	global.String("token-file", "", "session token file (default ~/.blog_token)")
	global.Duration("timeout", 10*time.Second, "per-call timeout")
	global.String("c", "", "config file")
	global.String("config", "", "config file")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: blog [global flags] <command> [flags] [args]")
		fmt.Fprintln(stderr, "\nglobal flags:")
		global.PrintDefaults()
		fmt.Fprintln(stderr, "\nrun 'blog help' for the list of commands")
	}

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitCallerError
	}
	rest := global.Args()

	cfg, err := config.Load(args[:len(args)-len(rest)])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitCallerError
	}

	tokenFile := cfg.TokenFile
	if tokenFile == "" {
		if tokenFile, err = client.DefaultTokenPath(); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return ExitCallerError
		}
	}

	tr, err := newTransport(cfg.Transport, cfg.Addr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitCallerError
	}

	app := NewApp(client.New(tr, client.NewFileSessionStore(tokenFile)), cfg.Timeout, stdin, stdout, stderr)
	defer app.Close()

	return app.Execute(ctx, rest)
}

// Execute runs the command in args and reports its outcome.
func (a *App) Execute(ctx context.Context, args []string) int {
	return a.report(a.dispatch(ctx, args))
}

func (a *App) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.help()
		return usagef("no command given")
	}

	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		a.help()
		return nil
	}

	cmd, ok := a.commands[name]
	if !ok {
		return usagef("unknown command %q (run 'blog help')", name)
	}
	return cmd.run(a, ctx, args[1:])
}

func (a *App) help() {
	names := make([]string, 0, len(a.commands))
	for n := range a.commands {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "commands:")
	for _, n := range names {
		fmt.Fprintf(a.out, "  %-11s %s\n", n, a.commands[n].summary)
	}
}

// report prints err and maps it to an exit code.
func (a *App) report(err error) int {
	if err == nil {
		return ExitOK
	}

	var ue *usageError
	switch {
	case errors.As(err, &ue):
		fmt.Fprintf(a.errOut, "error: %s\n", ue.msg)
		return ExitCallerError
	case errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintf(a.errOut, "error: UNAVAILABLE: %s\n", err)
		return ExitServerError
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintln(a.errOut, "error: UNAVAILABLE: request timed out")
		return ExitServerError
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(a.errOut, "error: cancelled")
		return ExitCallerError
	}

	kind := common.KindOf(err)
	fmt.Fprintf(a.errOut, "error: %s: %s\n", kind, err)
	if kind == common.KindInternal {
		return ExitServerError
	}
	return ExitCallerError
}

// call bounds one server round trip by the configured timeout.
func (a *App) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// newFlagSet returns a command flag set that reports parse errors as usage
// errors instead of exiting.
func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parseFlags parses args, letting flags follow positional arguments, and
// returns the positionals.
func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, usagef("%s: %v", fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (a *App) prompt(value *string, label string) error {
	if strings.TrimSpace(*value) != "" {
		return nil
	}
	v, err := GetSimpleText(a.reader, label, a.errOut)
	if err != nil {
		return usagef("%s is required", strings.ToLower(label))
	}
	*value = v
	return nil
}
