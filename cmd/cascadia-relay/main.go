package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vipr728/Cascadia/internal/dotenv"
	"github.com/Vipr728/Cascadia/pkg/relay/config"
	"github.com/Vipr728/Cascadia/pkg/relay/reply"
	relayserver "github.com/Vipr728/Cascadia/pkg/relay/server"
)

type relayDeps struct {
	loadConfig   func() (config.Config, error)
	newReplies   func(ctx context.Context, cfg config.Config, logger *slog.Logger) (reply.Generator, error)
	newServer    func(config.Config, *slog.Logger, reply.Generator) *relayserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultRelayDeps() relayDeps {
	return relayDeps{
		loadConfig: config.LoadFromEnv,
		newReplies: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (reply.Generator, error) {
			return reply.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		},
		newServer: relayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runRelay(ctx context.Context, logger *slog.Logger, deps relayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.newReplies == nil {
		return errors.New("missing newReplies dependency")
	}
	if deps.newServer == nil {
		return errors.New("missing newServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	replies, err := deps.newReplies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init reply generator: %w", err)
	}

	srv := deps.newServer(cfg, logger, replies)
	httpSrv := buildHTTPServer(cfg, srv.Handler())

	logger.Info("starting relay",
		"addr", cfg.Addr,
		"model", cfg.GeminiModel,
		"default_language", cfg.DefaultLanguage,
		"twilio_enabled", cfg.TwilioConfigured(),
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	srv.SetDraining(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !srv.WaitSessions(waitCtx) {
		logger.Warn("grace period expired, forcing live calls closed", "active", srv.ActiveSessions())
		srv.CancelSessions()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("relay stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps relayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(".env", ".env.local"); err != nil {
		fmt.Fprintf(stderr, "cascadia-relay: %v\n", err)
		return 1
	}

	if err := runRelay(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "cascadia-relay: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultRelayDeps()))
}
