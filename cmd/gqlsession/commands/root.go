package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/gqlsession/internal/app"
	"github.com/florianilch/gqlsession/internal/graphql"
	"github.com/florianilch/gqlsession/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(os.Environ).Run(ctx, args)
}

func newRootCommand(environFunc func() []string) *cli.Command {
	return &cli.Command{
		Name:  "gqlsession",
		Usage: "GraphQL client with a managed token session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel-stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "GraphQL endpoint URL",
			},
			&cli.StringFlag{
				Name:  "namespace",
				Usage: "prefix for stored credential keys",
				Value: app.DefaultConfigNamespace,
			},
			&cli.StringFlag{
				Name:  "access-token",
				Usage: "static access token sent on every request",
			},
			&cli.StringSliceFlag{
				Name:  headerFlag,
				Usage: "extra request header as NAME=VALUE (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout",
				Value: app.DefaultConfigTimeout,
			},
			&cli.BoolFlag{
				Name:  "deduplicate-refresh",
				Usage: "share one refresh between concurrent requests",
			},
			&cli.StringFlag{
				Name:  "storage--type",
				Usage: "credential storage (memory|file|keyring|sqlite|postgres)",
				Value: string(app.DefaultConfigStorageType),
			},
			&cli.StringFlag{
				Name:  "storage--file",
				Usage: "credentials file path for file storage",
			},
			&cli.StringFlag{
				Name:  "storage--keyring-service",
				Usage: "service name for keyring storage",
			},
			&cli.StringFlag{
				Name:  "storage--dsn",
				Usage: "data source name for sqlite or postgres storage",
			},
		},
		Commands: []*cli.Command{
			loginCommand(environFunc),
			logoutCommand(environFunc),
			statusCommand(environFunc),
			queryCommand(environFunc),
			serveCommand(environFunc),
		},
	}
}

// session is the per-command runtime shared by all client commands.
type session struct {
	cfg    *app.Config
	client *graphql.Client
	close  func()
}

// openSession loads configuration, sets up logging and opens the client with
// its storage backend. The caller must invoke close when done.
func openSession(ctx context.Context, cmd *cli.Command, environFunc func() []string) (*session, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, environFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	client, closeStorage, err := app.NewClient(ctx, cfg)
	if err != nil {
		_ = shutdown(context.WithoutCancel(ctx))
		return nil, err
	}

	return &session{
		cfg:    cfg,
		client: client,
		close: func() {
			if err := closeStorage(); err != nil {
				slog.WarnContext(ctx, "closing storage failed", "error", err)
			}
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				fmt.Fprintf(cmd.Root().ErrWriter, "flushing logs: %v\n", err)
			}
		},
	}, nil
}

func serveCommand(environFunc func() []string) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run a local GraphQL gateway that forwards through the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway--host",
				Usage: "gateway host",
				Value: app.DefaultConfigGatewayHost,
			},
			&cli.IntFlag{
				Name:  "gateway--port",
				Usage: "gateway port",
				Value: int(app.DefaultConfigGatewayPort),
			},
			&cli.StringFlag{
				Name:  "gateway--path",
				Usage: "path the gateway answers on",
				Value: app.DefaultConfigGatewayPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"), cmd, environFunc)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// Set up observability before creating app
			shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat))
			if err != nil {
				return fmt.Errorf("failed to set up observability layer: %w", err)
			}
			defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create app: %w", err)
			}

			slog.InfoContext(ctx, "starting")

			if err := application.Start(ctx); err != nil {
				return fmt.Errorf("app failed to start: %w", err)
			}

			slog.InfoContext(ctx, "stopped gracefully")
			return nil
		},
	}
}
