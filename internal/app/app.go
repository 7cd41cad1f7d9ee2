package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/gqlsession/internal/gateway"
)

// App orchestrates the lifecycle of the gateway server and the session it forwards through.
type App struct {
	cfg          *Config
	gateway      *gateway.Gateway
	closeStorage func() error
}

// New creates a new App instance.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, closeStorage, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(client, gateway.WithPath(cfg.Gateway.Path))
	if err != nil {
		_ = closeStorage()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &App{
		cfg:          cfg,
		gateway:      gw,
		closeStorage: closeStorage,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := net.JoinHostPort(a.cfg.Gateway.Host, strconv.FormatUint(uint64(a.cfg.Gateway.Port), 10))
	shutdownFuncs := []func(context.Context) error{
		func(context.Context) error { return a.closeStorage() },
	}

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting gateway", "address", address, "endpoint", a.cfg.Endpoint)
	gatewayErrCh, err := a.gateway.Start(gCtx, address)
	if err != nil {
		_ = a.closeStorage()
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.gateway.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services in reverse start order
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
