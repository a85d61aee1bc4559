package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pawpals/backend/internal/auth"
	"github.com/pawpals/backend/internal/config"
	"github.com/pawpals/backend/internal/db"
	"github.com/pawpals/backend/internal/handlers"
	"github.com/pawpals/backend/internal/httpserver"
	"github.com/pawpals/backend/internal/logging"
	"github.com/pawpals/backend/internal/middleware"
)

// Run bootstraps the PawPals backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or token")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "serve":
		return serve(ctx, cfg)
	case "migrate":
		return runMigrations(ctx, cfg, logging.New(os.Stdout, cfg.LogLevel), args[1:])
	case "token":
		return issueToken(os.Stdout, cfg, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildService(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close(logger)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, svc.handlers)

	handler := middleware.RequestLogger(logger)(middleware.Identity(svc.verifier)(mux))
	srv := httpserver.New(cfg.AppPort, handler, httpserver.WithWriteTimeout(cfg.YouTube.Timeout+5*time.Second))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", "addr", srv.Addr())
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, s := range svc.sweepers {
		g.Go(func() error {
			return s.RunSweeper(gctx, cfg.Cache.SweepInterval)
		})
	}
	g.Go(func() error {
		return runLedger(gctx, svc.ledger, svc.quota, cfg.Quota.SnapshotInterval, logger)
	})

	return g.Wait()
}

// issueToken mints a bearer token for local testing against a running server.
func issueToken(out io.Writer, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	admin := fs.Bool("admin", false, "grant admin access")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: token [-admin] [-ttl 1h] <user-id>")
	}

	verifier, err := auth.NewTokenVerifier(cfg.Auth.TokenSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	token, err := verifier.Issue(fs.Arg(0), *admin, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
