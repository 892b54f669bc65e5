package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const routingPrefix = "notification."

// Topology names the exchange and mail queue the notifier publishes through.
type Topology struct {
	Exchange   string
	Queue      string
	BindingKey string
}

func (t Topology) withDefaults() Topology {
	if t.Exchange == "" {
		t.Exchange = "bookstore.notifications"
	}
	if t.Queue == "" {
		t.Queue = "bookstore.notifications.mail.q"
	}
	if t.BindingKey == "" {
		t.BindingKey = routingPrefix + "order.#"
	}
	return t
}

// RabbitNotifier implements usecase.Notifier
type RabbitNotifier struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	queue    string
}

// NewRabbitNotifier sets up the exchange, queue, and binding once at startup.
func NewRabbitNotifier(ch *amqp.Channel, topo Topology) (*RabbitNotifier, error) {
	topo = topo.withDefaults()

	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		topo.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// 2. declare queue
	q, err := ch.QueueDeclare(
		topo.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	// 3. bind queue → exchange
	if err := ch.QueueBind(
		q.Name,
		topo.BindingKey,
		topo.Exchange,
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	// 4. publisher confirms; Notify waits for the broker ack
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitNotifier{ch: ch, exchange: topo.Exchange, queue: topo.Queue}, nil
}

// Queue is the declared mail queue the consumer side reads from.
func (p *RabbitNotifier) Queue() string { return p.queue }

// RoutingKey is "notification.<kind>", e.g. notification.order.confirmed.
func RoutingKey(kind usecase.NotificationKind) string {
	return routingPrefix + string(kind)
}

func (p *RabbitNotifier) Notify(ctx context.Context, msg usecase.NotificationMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Type:         string(msg.Kind),
		MessageId:    msg.OrderID + ":" + string(msg.Kind) + ":" + msg.At.Format("20060102T150405.000000000"),
		Timestamp:    msg.At,
		Body:         body,
	}

	p.mu.Lock()
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		p.exchange,           // exchange
		RoutingKey(msg.Kind), // routing key
		false,                // mandatory
		false,                // immediate
		pub,
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return errors.New("publish nacked by broker")
	}
	return nil
}

var _ usecase.Notifier = (*RabbitNotifier)(nil)
