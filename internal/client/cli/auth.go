package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
)

// getPassword is an indirection used to facilitate testing.
var getPassword = GetPassword

// password returns the -p value, or prompts for one without echo.
func (a *App) password(flagValue string) ([]byte, error) {
	if flagValue != "" {
		return []byte(flagValue), nil
	}
	pw, err := getPassword(a.errOut)
	if err != nil {
		return nil, usagef("password is required")
	}
	return pw, nil
}

// register creates an account and, unless -no-login is given, logs in with it.
func (a *App) register(ctx context.Context, args []string) error {
	fs := a.newFlagSet("register")
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	pwFlag := fs.String("p", "", "password (prompted when omitted)")
	noLogin := fs.Bool("no-login", false, "do not log in after registering")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := a.prompt(username, "Username"); err != nil {
		return err
	}
	if err := a.prompt(email, "Email"); err != nil {
		return err
	}
	password, err := a.password(*pwFlag)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	cctx, cancel := a.call(ctx)
	defer cancel()

	if *noLogin {
		user, err := a.client.Register(cctx, *username, *email, string(password))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "registered %s (id %d)\n", user.Username, user.ID)
		return nil
	}

	user, session, err := a.client.RegisterAndLogin(cctx, *username, *email, string(password))
	if user != nil {
		fmt.Fprintf(a.out, "registered %s (id %d)\n", user.Username, user.ID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s, session expires %s\n", session.Username, formatTime(session.ExpiresAt))
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.newFlagSet("login")
	username := fs.String("u", "", "username")
	pwFlag := fs.String("p", "", "password (prompted when omitted)")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := a.prompt(username, "Username"); err != nil {
		return err
	}
	password, err := a.password(*pwFlag)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	cctx, cancel := a.call(ctx)
	defer cancel()

	session, err := a.client.Login(cctx, *username, string(password))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s, session expires %s\n", session.Username, formatTime(session.ExpiresAt))
	return nil
}

func (a *App) logout(_ context.Context, args []string) error {
	if _, err := parseFlags(a.newFlagSet("logout"), args); err != nil {
		return err
	}
	if err := a.client.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

// status reads the session slot only; it never contacts the server.
func (a *App) status(_ context.Context, args []string) error {
	if _, err := parseFlags(a.newFlagSet("status"), args); err != nil {
		return err
	}

	st, err := a.client.Status()
	if err != nil {
		return err
	}
	if !st.LoggedIn {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	if st.Expired {
		fmt.Fprintf(a.out, "logged in as %s (id %d), session expired %s\n", st.Username, st.UserID, formatTime(st.ExpiresAt))
		return nil
	}
	fmt.Fprintf(a.out, "logged in as %s (id %d), session expires %s\n", st.Username, st.UserID, formatTime(st.ExpiresAt))
	return nil
}

func (a *App) whoami(ctx context.Context, args []string) error {
	if _, err := parseFlags(a.newFlagSet("whoami"), args); err != nil {
		return err
	}

	cctx, cancel := a.call(ctx)
	defer cancel()

	u, err := a.client.CurrentUser(cctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> (id %d, joined %s)\n", u.Username, u.Email, u.ID, formatTime(u.CreatedAt))
	return nil
}

// unregister deletes the account after confirmation (or -y).
func (a *App) unregister(ctx context.Context, args []string) error {
	fs := a.newFlagSet("unregister")
	yes := fs.Bool("y", false, "do not ask for confirmation")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if !*yes {
		answer, err := GetSimpleText(a.reader, "Delete your account and all its posts? Type 'yes' to confirm", a.errOut)
		if err != nil || !strings.EqualFold(answer, "yes") {
			fmt.Fprintln(a.out, "aborted")
			return nil
		}
	}

	cctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.client.DeleteAccount(cctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "account deleted")
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
