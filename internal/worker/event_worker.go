package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/crestrock/storefront/internal/model"
)

const idempotencyTTL = 24 * time.Hour

// NotificationRecorder turns an event into an admin notification.
type NotificationRecorder interface {
	Record(ctx context.Context, event model.Event) error
}

type EventWorker struct {
	channel     *amqp.Channel
	recorder    NotificationRecorder
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewEventWorker(
	ch *amqp.Channel,
	recorder NotificationRecorder,
	redisClient *redis.Client,
	log *slog.Logger,
) *EventWorker {
	return &EventWorker{
		channel:     ch,
		recorder:    recorder,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *EventWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(eventQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("event worker started")
	return nil
}

func (w *EventWorker) Stop() { close(w.done) }

func (w *EventWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.log.Error("unmarshal event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("event_id", event.ID, "kind", event.Kind, "order_id", event.OrderID)

	idempotencyKey := "event_processed:" + event.ID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("event already processed, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.recorder.Record(ctx, event); err != nil {
		log.Error("record notification failed", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("event processed")
}
