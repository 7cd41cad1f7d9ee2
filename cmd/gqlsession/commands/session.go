package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/gqlsession/internal/authenticator"
	"github.com/florianilch/gqlsession/internal/graphql"
)

func loginCommand(environFunc func() []string) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "start a session with email and password, or from a refresh token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "email",
				Usage: "account email",
			},
			&cli.StringFlag{
				Name:  "password-env",
				Usage: "environment variable holding the password (prompted when unset)",
			},
			&cli.StringFlag{
				Name:  "refresh-token-env",
				Usage: "environment variable holding a refresh token to start from",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(ctx, cmd, environFunc)
			if err != nil {
				return err
			}
			defer s.close()

			auth, err := loginAuthenticator(cmd)
			if err != nil {
				return err
			}

			if err := s.client.Authenticate(ctx, auth); err != nil {
				return fmt.Errorf("login: %w", err)
			}

			fmt.Fprintln(cmd.Root().Writer, "logged in")
			return nil
		},
	}
}

func loginAuthenticator(cmd *cli.Command) (graphql.Authenticator, error) {
	if envKey := cmd.String("refresh-token-env"); envKey != "" {
		return authenticator.NewEnvRefreshToken(envKey)
	}

	email := cmd.String("email")
	if email == "" {
		return nil, errors.New("--email or --refresh-token-env is required")
	}

	if envKey := cmd.String("password-env"); envKey != "" {
		password, ok := os.LookupEnv(envKey)
		if !ok {
			return nil, fmt.Errorf("environment variable %s not set", envKey)
		}
		return authenticator.Password{Email: email, Password: password}, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("password prompt requires a terminal, use --password-env")
	}
	fmt.Fprint(cmd.Root().ErrWriter, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.Root().ErrWriter)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	return authenticator.Password{Email: email, Password: string(password)}, nil
}

func logoutCommand(environFunc func() []string) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget all stored tokens",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(ctx, cmd, environFunc)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.client.Logout(ctx); err != nil {
				return fmt.Errorf("logout: %w", err)
			}

			fmt.Fprintln(cmd.Root().Writer, "logged out")
			return nil
		},
	}
}

func statusCommand(environFunc func() []string) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored session",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := openSession(ctx, cmd, environFunc)
			if err != nil {
				return err
			}
			defer s.close()

			return writeStatus(ctx, cmd.Root().Writer, s)
		},
	}
}

func writeStatus(ctx context.Context, w io.Writer, s *session) error {
	fmt.Fprintf(w, "endpoint:  %s\n", s.client.Endpoint())
	fmt.Fprintf(w, "namespace: %s\n", s.cfg.Namespace)

	if s.cfg.AccessToken != "" {
		fmt.Fprintln(w, "session:   static access token")
		return nil
	}

	store := s.client.TokenStore()

	access, err := tokenState(ctx, store.HasAccessToken, store.AccessTokenExpires)
	if err != nil {
		return fmt.Errorf("reading access token: %w", err)
	}
	refresh, err := tokenState(ctx, store.HasRefreshToken, store.RefreshTokenExpires)
	if err != nil {
		return fmt.Errorf("reading refresh token: %w", err)
	}

	fmt.Fprintf(w, "access:    %s\n", access)
	fmt.Fprintf(w, "refresh:   %s\n", refresh)
	return nil
}

func tokenState(
	ctx context.Context,
	has func(context.Context) (bool, error),
	expires func(context.Context) (time.Time, bool, error),
) (string, error) {
	ok, err := has(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "none", nil
	}

	exp, ok, err := expires(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "present, no expiry", nil
	}
	if !exp.After(time.Now()) {
		return fmt.Sprintf("expired at %s", exp.Format(time.RFC3339)), nil
	}
	return fmt.Sprintf("valid until %s", exp.Format(time.RFC3339)), nil
}

func queryCommand(environFunc func() []string) *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "send a query or mutation and print the response",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "GraphQL document",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "read the GraphQL document from a file",
			},
			&cli.StringFlag{
				Name:  "variables",
				Usage: "variables as a JSON object",
			},
			&cli.StringSliceFlag{
				Name:  "attach",
				Usage: "upload a file as FIELD=PATH (repeatable)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query, err := readQuery(cmd.String("query"), cmd.String("file"))
			if err != nil {
				return err
			}

			variables, err := parseVariables(cmd.String("variables"))
			if err != nil {
				return err
			}

			files, closeFiles, err := openAttachments(cmd.StringSlice("attach"))
			if err != nil {
				return err
			}
			defer closeFiles()

			s, err := openSession(ctx, cmd, environFunc)
			if err != nil {
				return err
			}
			defer s.close()

			var resp *graphql.Response
			if len(files) > 0 {
				resp, err = s.client.Upload(ctx, query, variables, files)
			} else {
				resp, err = s.client.Fetch(ctx, query, variables)
			}
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			return writeResponse(cmd.Root().Writer, resp)
		},
	}
}

func readQuery(query, path string) (string, error) {
	switch {
	case query != "" && path != "":
		return "", errors.New("--query and --file are mutually exclusive")
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading query file: %w", err)
		}
		return string(b), nil
	case query != "":
		return query, nil
	default:
		return "", errors.New("--query or --file is required")
	}
}

func parseVariables(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var variables map[string]any
	if err := json.Unmarshal([]byte(raw), &variables); err != nil {
		return nil, fmt.Errorf("parsing variables: %w", err)
	}
	return variables, nil
}

// openAttachments opens every FIELD=PATH pair. The returned func closes all opened files.
func openAttachments(args []string) (map[string]graphql.File, func(), error) {
	files := make(map[string]graphql.File, len(args))
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, arg := range args {
		field, path, ok := strings.Cut(arg, "=")
		if !ok || field == "" || path == "" {
			closeAll()
			return nil, nil, fmt.Errorf("invalid attachment %q, expected FIELD=PATH", arg)
		}

		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening attachment: %w", err)
		}
		opened = append(opened, f)

		files[field] = graphql.File{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Content:     f,
		}
	}

	return files, closeAll, nil
}

func writeResponse(w io.Writer, resp *graphql.Response) error {
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
