// Package authctl implements the authctl command line client, a thin shell
// over authsdk that keeps its session in persistent storage between runs.
package authctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/aussiebroadwan/authkit/pkg/authsdk"
	"github.com/aussiebroadwan/authkit/pkg/jwtx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

// errUsage marks failures caused by bad arguments.
var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, c *authsdk.Client, args []string, out io.Writer) error
}

var commands = map[string]command{
	"login":     {"login -email EMAIL -password PASSWORD", runLogin},
	"logout":    {"logout", runLogout},
	"status":    {"status", runStatus},
	"refresh":   {"refresh", runRefresh},
	"oauth-url": {"oauth-url PROVIDER", runOAuthURL},
	"whoami":    {"whoami", runWhoami},
}

// Main runs authctl against the process environment and returns the exit code.
func Main(args []string) int {
	return Run(context.Background(), args, environ(), os.Stdout, os.Stderr)
}

func environ() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

// Run executes one command. args excludes the program name.
func Run(ctx context.Context, args []string, env map[string]string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "authctl: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := loadConfig(env)
	if err != nil {
		fmt.Fprintf(stderr, "authctl: %v\n", err)
		return 1
	}

	sdkCfg, err := cfg.sdkConfig()
	if err != nil {
		fmt.Fprintf(stderr, "authctl: %v\n", err)
		return 1
	}
	sdkCfg.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slogx.ParseLevel(cfg.LogLevel)}))

	client, err := authsdk.New(ctx, sdkCfg)
	if err != nil {
		fmt.Fprintf(stderr, "authctl: %v\n", err)
		return 1
	}
	defer client.Close()

	if err := cmd.run(ctx, client, args[1:], stdout); err != nil {
		fmt.Fprintf(stderr, "authctl %s: %v\n", args[0], err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: authctl <command> [flags]")
	fmt.Fprintln(w)
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", commands[n].summary)
	}
}

func runLogin(ctx context.Context, c *authsdk.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if !authsdk.IsValidEmail(*email) {
		return fmt.Errorf("%w: -email must be a valid email address", errUsage)
	}

	resp, err := c.Login(ctx, authsdk.LoginCredentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s (expires in %ds)\n", resp.User.Email, resp.ExpiresIn)
	return nil
}

func runLogout(ctx context.Context, c *authsdk.Client, _ []string, out io.Writer) error {
	c.Logout(ctx)
	fmt.Fprintln(out, "logged out")
	return nil
}

func runStatus(ctx context.Context, c *authsdk.Client, _ []string, out io.Writer) error {
	fmt.Fprintf(out, "state:       %s\n", c.State(ctx))
	fmt.Fprintf(out, "environment: %s\n", c.Environment())
	fmt.Fprintf(out, "storage:     %s\n", c.StorageBackend())

	if token := c.AccessToken(ctx); token != "" {
		fmt.Fprintf(out, "expires in:  %ds\n", jwtx.SecondsUntilExpiry(token))
	}
	return nil
}

func runRefresh(ctx context.Context, c *authsdk.Client, _ []string, out io.Writer) error {
	resp, err := c.RefreshToken(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "refreshed (expires in %ds)\n", jwtx.SecondsUntilExpiry(resp.AccessToken))
	return nil
}

func runOAuthURL(ctx context.Context, c *authsdk.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: oauth-url takes exactly one provider", errUsage)
	}

	u, err := c.OAuthURL(ctx, authsdk.Provider(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, u)
	return nil
}

func runWhoami(ctx context.Context, c *authsdk.Client, _ []string, out io.Writer) error {
	if !c.IsAuthenticated(ctx) {
		return errors.New("not logged in")
	}

	u := c.User(ctx)
	claims, err := c.Claims(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "id:     %s\nemail:  %s\nissuer: %s\n", u.ID, u.Email, claims.Issuer)
	return nil
}
