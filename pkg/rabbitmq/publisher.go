package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"audionote-backend/config"
	"audionote-backend/dto"
)

const publishAttempts = 3

// Publisher enqueues processing requests. It satisfies service.Dispatcher
// for the queued processing mode.
type Publisher struct {
	conn     *amqp.Connection
	cfg      *config.RabbitMQ
	topology Topology

	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(ctx context.Context, conn *amqp.Connection, cfg *config.RabbitMQ, topology Topology) (*Publisher, error) {
	p := &Publisher{conn: conn, cfg: cfg, topology: topology}

	ch, err := p.channel(ctx)
	if err != nil {
		return nil, err
	}
	if err := topology.declare(ctx, ch, cfg.Kind); err != nil {
		return nil, err
	}
	return p, nil
}

// channel returns the shared channel, reopening it after a channel error.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) Dispatch(ctx context.Context, message dto.ProcessMessage) (*dto.ProcessResult, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	}

	err = retry.Do(
		func() error {
			ch, err := p.channel(ctx)
			if err != nil {
				return err
			}
			return ch.PublishWithContext(ctx, p.topology.Exchange, p.topology.RoutingKey, false, false, publishing)
		},
		retry.Context(ctx),
		retry.Attempts(publishAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			zerolog.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Str("recording_id", message.RecordingID).Msg("retrying publish")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publish process message for %s: %w", message.RecordingID, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("recording_id", message.RecordingID).
		Str("message_id", publishing.MessageId).
		Msg("process message published")
	return nil, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return nil
	}
	return p.ch.Close()
}
