package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recordwire/recordgate"
	"github.com/recordwire/recordgate/internal/gateway/engine"
	"github.com/recordwire/recordgate/internal/gateway/model"
)

func main() {
	baseLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := recordgate.NewSlogServiceLogger(baseLogger)

	if err := run(logger); err != nil {
		logger.Error("gateway exited", err, nil)
		os.Exit(1)
	}
}

func run(logger recordgate.ServiceLogger) error {
	cfg, err := recordgate.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reg, err := recordgate.NewRegistry(recordgate.BuiltinCatalog())
	if err != nil {
		return err
	}

	var tokens *recordgate.TokenService
	if cfg.TokenEnabled {
		tokens, err = recordgate.NewTokenService(cfg.TokenSecret, cfg.TokenTTL, logger)
		if err != nil {
			return err
		}
	}

	bus := recordgate.NewAuditBus(cfg.AuditTopic, logger)
	defer bus.Close()

	metrics := recordgate.NewMetrics(nil)

	srv, err := recordgate.NewServer(cfg, reg, echoEngine(), bus, tokens, metrics, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", recordgate.LogFields{"address": cfg.ListenAddress})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// echoEngine is a stand-in executor for running the gateway without the real
// record engine: WhoAmI answers with the caller identity, everything else
// echoes an empty result.
func echoEngine() recordgate.Executor {
	return engine.Func(func(_ context.Context, msg *model.Message, sec engine.SecurityContext) (*model.Result, error) {
		res := model.NewResult()
		if msg.Name == "WhoAmI" {
			res.Params.Set("UserId", model.GUID(sec.UserID))
		}
		return res, nil
	})
}
