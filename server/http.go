package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"audionote-backend/config"
	"audionote-backend/constant"
	"audionote-backend/scheduler"
	"audionote-backend/service"
)

const shutdownTimeout = 30 * time.Second

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().
		Str("env", cfg.App.Environment).
		Str("processing_mode", string(cfg.Processing.Mode)).
		Str("ai_backend", string(cfg.AI.Backend)).
		Bool("isProduction", cfg.App.IsProduction()).
		Send()
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	b, err := newBackends(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to initialise backends")
		return err
	}
	pipeline, err := newPipeline(cfg, b)
	if err != nil {
		return err
	}
	dispatcher, err := newDispatcher(ctx, cfg, pipeline)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to initialise dispatcher")
		return err
	}

	sweeps, err := scheduler.New(service.NewSweeper(b.repo, b.ledger, cfg.Processing.StuckAfter, nil), cfg.Dedup.SweepInterval)
	if err != nil {
		return err
	}
	if err := sweeps.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sweeps.Stop(); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to stop scheduler")
		}
	}()

	deps := newServiceDependencies(cfg, b, pipeline, dispatcher)
	r := NewRouter(deps, cfg.Auth, cfg.Server.RequestTimeout, *zerolog.Ctx(ctx))

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", handler.Addr).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to shut down http server")
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return nil
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}
