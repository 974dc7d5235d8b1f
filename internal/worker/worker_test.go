package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestrock/storefront/internal/model"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acks++; return nil }

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (r *fakeRecorder) Record(_ context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func newTestWorker(t *testing.T, recorder NotificationRecorder) (*EventWorker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewEventWorker(nil, recorder, rdb, log), mr
}

func delivery(t *testing.T, ack amqp.Acknowledger, event model.Event) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

func TestEventWorker_RecordsOnce(t *testing.T) {
	recorder := &fakeRecorder{}
	w, mr := newTestWorker(t, recorder)
	ctx := context.Background()

	event := model.NewEvent(model.EventOrderCreated, "New order #abc123 from Jane", model.NotificationInfo)
	first := &fakeAcknowledger{}
	w.processMessage(ctx, delivery(t, first, event))
	second := &fakeAcknowledger{}
	w.processMessage(ctx, delivery(t, second, event))

	assert.Len(t, recorder.events, 1)
	assert.Equal(t, 1, first.acks)
	assert.Equal(t, 1, second.acks)
	assert.True(t, mr.Exists("event_processed:"+event.ID.String()))
}

func TestEventWorker_MalformedGoesToDLQ(t *testing.T) {
	w, _ := newTestWorker(t, &fakeRecorder{})
	ack := &fakeAcknowledger{}

	w.processMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})

	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestEventWorker_RecordFailureGoesToDLQ(t *testing.T) {
	w, mr := newTestWorker(t, &fakeRecorder{err: errors.New("db down")})
	ack := &fakeAcknowledger{}
	event := model.NewEvent(model.EventOrderCreated, "x", model.NotificationInfo)

	w.processMessage(context.Background(), delivery(t, ack, event))

	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
	assert.False(t, mr.Exists("event_processed:"+event.ID.String()))
}

func TestEventWorker_RedisDownRequeues(t *testing.T) {
	recorder := &fakeRecorder{}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()
	w := NewEventWorker(nil, recorder, rdb, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	ack := &fakeAcknowledger{}

	w.processMessage(context.Background(), delivery(t, ack, model.NewEvent(model.EventOrderCreated, "x", model.NotificationInfo)))

	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue)
	assert.Empty(t, recorder.events)
}

type fakeChannel struct {
	key string
	msg amqp.Publishing
	err error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key = key
	c.msg = msg
	return c.err
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	event := model.NewEvent(model.EventOrderStatusChanged, "Order #abc123 payment confirmed ✅", model.NotificationSuccess)
	event.OrderID = "o-1"

	require.NoError(t, NewAMQPPublisher(ch).Publish(context.Background(), event))

	assert.Equal(t, eventQueueName, ch.key)
	assert.Equal(t, event.ID.String(), ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded model.Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, event.Message, decoded.Message)
	assert.Equal(t, "o-1", decoded.OrderID)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaPublisher(w)

	order := model.NewEvent(model.EventOrderCreated, "x", model.NotificationInfo)
	order.OrderID = "o-1"
	product := model.NewEvent(model.EventProductDeleted, "y", model.NotificationWarning)
	product.ProductID = "p-1"

	require.NoError(t, pub.Publish(context.Background(), order))
	require.NoError(t, pub.Publish(context.Background(), product))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))
	assert.Equal(t, "p-1", string(w.msgs[1].Key))
	assert.Equal(t, "product.deleted", string(w.msgs[1].Headers[0].Value))
}

func TestFanout_JoinsErrors(t *testing.T) {
	ok := &fakeWriter{}
	failing := &fakeChannel{err: errors.New("channel closed")}
	fan := Fanout{NewAMQPPublisher(failing), NewKafkaPublisher(ok)}

	err := fan.Publish(context.Background(), model.NewEvent(model.EventOrderCreated, "x", model.NotificationInfo))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	assert.Len(t, ok.msgs, 1)
}
