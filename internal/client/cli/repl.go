package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// runREPL reads command lines from reader until EOF, "exit" or "quit" and
// hands each one to exec. Failures are reported by exec; the loop keeps going.
func runREPL(ctx context.Context, exec func(ctx context.Context, args []string), statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "blog%s> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return
		}

		args, perr := splitArgs(line)
		if perr != nil {
			fmt.Fprintln(w, "error:", perr)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		case "shell":
			fmt.Fprintln(w, "already in shell")
		default:
			exec(ctx, args)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// shell runs commands interactively over the same session slot.
func (a *App) shell(ctx context.Context, args []string) error {
	if _, err := parseFlags(a.newFlagSet("shell"), args); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "blog shell (type 'help' for commands, 'exit' to leave)")
	runREPL(ctx,
		func(ctx context.Context, args []string) { a.Execute(ctx, args) },
		a.shellStatus,
		a.reader,
		a.out,
	)
	return nil
}

func (a *App) shellStatus() string {
	st, err := a.client.Status()
	if err != nil || !st.LoggedIn {
		return ""
	}
	return " (" + st.Username + ")"
}

var errUnterminatedQuote = errors.New("unterminated quote")

// splitArgs splits a command line on whitespace. Single and double quotes
// group words; a backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
