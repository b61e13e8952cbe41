package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/helpdesk/internal/logger"
	"github.com/example/helpdesk/internal/notify"
)

type ackRecorder struct {
	acks  int
	nacks int
}

func (a *ackRecorder) Ack(uint64, bool) error        { a.acks++; return nil }
func (a *ackRecorder) Nack(uint64, bool, bool) error { a.nacks++; return nil }
func (a *ackRecorder) Reject(uint64, bool) error     { a.nacks++; return nil }

type stubDispatcher struct {
	mu   sync.Mutex
	got  []notify.Message
	fail bool
}

func (s *stubDispatcher) Dispatch(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, msg)
	if s.fail {
		return errors.New("webhook down")
	}
	return nil
}

type chanConsumer struct {
	deliveries chan amqp091.Delivery
	closed     chan struct{}
}

func (c *chanConsumer) Consume(handler func(amqp091.Delivery)) error {
	go func() {
		for d := range c.deliveries {
			handler(d)
		}
	}()
	return nil
}

func (c *chanConsumer) Close() error {
	close(c.closed)
	return nil
}

func delivery(t *testing.T, ack amqp091.Acknowledger, msg notify.Message) amqp091.Delivery {
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return amqp091.Delivery{Acknowledger: ack, Body: body, RoutingKey: msg.Event}
}

func TestNotificationRelay_Handle(t *testing.T) {
	msg := notify.Message{Event: notify.EventTicketsCreated, Text: "Ada created 1 ticket", TicketIDs: []string{"TKT-1"}}

	t.Run("forwards and acks", func(t *testing.T) {
		d := &stubDispatcher{}
		ack := &ackRecorder{}
		r := NewNotificationRelay(nil, d, logger.Discard())

		r.handle(context.Background(), delivery(t, ack, msg))

		require.Len(t, d.got, 1)
		assert.Equal(t, msg.Text, d.got[0].Text)
		assert.Equal(t, 1, ack.acks)
		assert.Equal(t, 0, ack.nacks)
	})

	t.Run("dispatch failure drops without requeue", func(t *testing.T) {
		d := &stubDispatcher{fail: true}
		ack := &ackRecorder{}
		r := NewNotificationRelay(nil, d, logger.Discard())

		r.handle(context.Background(), delivery(t, ack, msg))

		assert.Equal(t, 0, ack.acks)
		assert.Equal(t, 1, ack.nacks)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		d := &stubDispatcher{}
		ack := &ackRecorder{}
		r := NewNotificationRelay(nil, d, logger.Discard())

		r.handle(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{")})

		assert.Empty(t, d.got)
		assert.Equal(t, 1, ack.nacks)
	})
}

func TestNotificationRelay_Run(t *testing.T) {
	consumer := &chanConsumer{deliveries: make(chan amqp091.Delivery, 1), closed: make(chan struct{})}
	d := &stubDispatcher{}
	r := NewNotificationRelay(consumer, d, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	ack := &ackRecorder{}
	consumer.deliveries <- delivery(t, ack, notify.Message{Event: notify.EventTicketsCreated, TicketIDs: []string{"TKT-9"}})
	assert.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.got) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	close(consumer.deliveries)
	<-consumer.closed
}
