// setup.go
package rabbit

import (
	"context"
	"errors"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	PayloadExchange = "return_payloads"
	PayloadQueue    = "returns_raw_payloads"
)

// SetupConsumers declares the payload queue, binds it to the fanout exchange and starts
// consuming in the background until ctx is done or the channel closes.
func SetupConsumers(ctx context.Context, ch *amqp091.Channel, consumer *RawPayloadConsumer, log *zap.Logger) error {
	if err := ch.ExchangeDeclare(PayloadExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(PayloadQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	// fanout ignores the routing key
	if err := ch.QueueBind(q.Name, "", PayloadExchange, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					log.Warn("payload queue closed")
					return
				}
				settle(ctx, consumer, m.Body, m.Acknowledger, m.DeliveryTag, log)
			}
		}
	}()

	log.Info("subscribed to payload exchange", zap.String("exchange", PayloadExchange), zap.String("queue", q.Name))
	return nil
}

// settle processes one delivery. Rejected messages are dropped; everything else is acked since
// failed records are recovered by re-running the batch.
func settle(ctx context.Context, consumer *RawPayloadConsumer, body []byte, ack amqp091.Acknowledger, tag uint64, log *zap.Logger) {
	err := consumer.Handle(ctx, body)
	if errors.Is(err, ErrRejected) {
		if nerr := ack.Nack(tag, false, false); nerr != nil {
			log.Error("nack delivery", zap.Error(nerr))
		}
		return
	}
	if aerr := ack.Ack(tag, false); aerr != nil {
		log.Error("ack delivery", zap.Error(aerr))
	}
}
