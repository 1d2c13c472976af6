package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	ProcessExchange   = "audio_processing_exchange"
	ProcessQueue      = "audio_processing_queue"
	ProcessRoutingKey = "audio.process.request"
	ProcessDLX        = "audio_processing_exchange_dlx"
	ProcessDLQ        = "audio_processing_queue_dlq"
	processDLQRouting = "dlq.audio.process.request"
)

type Topology struct {
	Exchange      string
	Queue         string
	RoutingKey    string
	DLX           string
	DLQ           string
	DLQRoutingKey string
}

// ProcessTopology is the exchange and queue layout carrying recordings to
// the processing workers.
func ProcessTopology() Topology {
	return Topology{
		Exchange:      ProcessExchange,
		Queue:         ProcessQueue,
		RoutingKey:    ProcessRoutingKey,
		DLX:           ProcessDLX,
		DLQ:           ProcessDLQ,
		DLQRoutingKey: processDLQRouting,
	}
}

// declare creates the exchange, dead letter exchange, dead letter queue and
// work queue, all durable, and binds them.
func (t Topology) declare(ctx context.Context, ch *amqp.Channel, kind string) error {
	err := ch.ExchangeDeclare(t.Exchange, kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", t.Exchange).Msg("failed to declare exchange")
		return err
	}

	err = ch.ExchangeDeclare(t.DLX, kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", t.DLX).Msg("failed to declare dlx")
		return err
	}

	dlq, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", t.DLQ).Msg("failed to declare dlq")
		return err
	}

	err = ch.QueueBind(dlq.Name, t.DLQRoutingKey, t.DLX, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", t.DLQ).Msg("failed to bind dlq")
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    t.DLX,
		"x-dead-letter-routing-key": t.DLQRoutingKey,
	}
	q, err := ch.QueueDeclare(t.Queue, true, false, false, false, args)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", t.Queue).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", t.Queue).Msg("failed to bind queue")
		return err
	}
	return nil
}
