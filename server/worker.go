package server

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"audionote-backend/config"
	"audionote-backend/handler"
	"audionote-backend/pkg/rabbitmq"
)

// RunWorker consumes the processing queue until SIGINT or SIGTERM.
func RunWorker(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := newBackends(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to initialise backends")
		return err
	}
	pipeline, err := newPipeline(cfg, b)
	if err != nil {
		return err
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
		return err
	}

	deps := handler.ServiceDependencies{Pipeline: pipeline}
	consumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.ProcessTopology(), cfg.Server.Workers, handler.ProcessHandler)
	zerolog.Ctx(ctx).Info().Int("workers", cfg.Server.Workers).Msg("start processing worker")

	err = consumer.Consume(ctx, deps)
	if err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("processing consumer error")
		return err
	}

	zerolog.Ctx(ctx).Info().Msg("worker shutdown")
	return nil
}
