package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"audionote-backend/dto"
	"audionote-backend/service"
)

type ServiceDependencies struct {
	Ingestor       service.Ingestor
	ChunkAssembler service.ChunkAssembler
	Directory      service.Directory
	Pipeline       service.Pipeline
	MaxFileBytes   int64
	MaxChunkBytes  int64
}

// ProcessHandler consumes one queued processing request. Malformed messages
// and recordings that are no longer awaiting processing are permanent
// failures and must not be retried.
func ProcessHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var message dto.ProcessMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal process message")
		return backoff.Permanent(fmt.Errorf("decode process message: %w", err))
	}

	zerolog.Ctx(ctx).Info().
		Str("recording_id", message.RecordingID).
		Str("message_id", msg.MessageId).
		Msg("received process message")

	_, err := deps.Pipeline.Process(ctx, message)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidOrAlreadyProcessed):
		zerolog.Ctx(ctx).Info().Str("recording_id", message.RecordingID).Msg("skipping already processed recording")
		return nil
	case errors.Is(err, service.ErrValidation):
		return backoff.Permanent(err)
	case errors.Is(err, service.ErrProcessingFailed):
		// already recorded as failed; redelivery would only hit the guard
		return backoff.Permanent(err)
	}
	return err
}
