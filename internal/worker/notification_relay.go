package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/example/helpdesk/internal/mq"
	"github.com/example/helpdesk/internal/notify"
)

// NotificationRelay drains ticket events from the queue and forwards them to
// the notification channel. Each delivery gets exactly one attempt: failures
// are logged and the message is dropped rather than requeued.
type NotificationRelay struct {
	consumer   mq.Consumer
	dispatcher notify.Dispatcher
	log        *slog.Logger
}

// NewNotificationRelay wires a consumer to a dispatcher.
func NewNotificationRelay(consumer mq.Consumer, dispatcher notify.Dispatcher, log *slog.Logger) *NotificationRelay {
	return &NotificationRelay{consumer: consumer, dispatcher: dispatcher, log: log}
}

// Run starts consuming and blocks until ctx is cancelled.
func (r *NotificationRelay) Run(ctx context.Context) error {
	if err := r.consumer.Consume(func(d amqp091.Delivery) { r.handle(ctx, d) }); err != nil {
		return err
	}
	r.log.Info("notification relay started")
	<-ctx.Done()
	r.log.Info("notification relay shutting down")
	return r.consumer.Close()
}

func (r *NotificationRelay) handle(ctx context.Context, d amqp091.Delivery) {
	var msg notify.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		r.log.Error("discarding malformed ticket event", "routing_key", d.RoutingKey, "error", err)
		r.reject(d)
		return
	}
	if err := r.dispatcher.Dispatch(ctx, msg); err != nil {
		r.log.Error("relay ticket notification failed", "tickets", msg.TicketIDs, "error", err)
		r.reject(d)
		return
	}
	if err := d.Ack(false); err != nil {
		r.log.Warn("ack ticket event", "error", err)
	}
}

func (r *NotificationRelay) reject(d amqp091.Delivery) {
	if err := d.Nack(false, false); err != nil {
		r.log.Warn("nack ticket event", "error", err)
	}
}
