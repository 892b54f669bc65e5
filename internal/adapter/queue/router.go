package queue

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Router manages multiple consumers (one per registered queue) on a single AMQP channel.
type Router struct {
	ch            *amqp.Channel
	log           *zap.Logger
	prefetch      int
	callTimeout   time.Duration
	requeueOnErr  bool
	registrations []registration
	done          chan struct{}
}

type registration struct {
	queueName   string
	handler     Handler
	consumerTag string
}

// --- Options ---

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeueOnErr = b } }
func WithLogger(l *zap.Logger) RouterOption    { return func(r *Router) { r.log = l } }

// NewRouter constructs a Router. Defaults: prefetch=50, timeout=10s, requeueOnErr=true.
func NewRouter(ch *amqp.Channel, opts ...RouterOption) *Router {
	r := &Router{
		ch:           ch,
		log:          zap.NewNop(),
		prefetch:     50,
		callTimeout:  10 * time.Second,
		requeueOnErr: true,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register associates a queue with a handler. Call multiple times for multiple queues.
func (r *Router) Register(queueName string, h Handler) {
	r.registrations = append(r.registrations, registration{
		queueName:   queueName,
		handler:     h,
		consumerTag: "c_" + queueName,
	})
}

// Start begins consuming; non-blocking (spawns one goroutine per queue).
// QoS (prefetch) is set per-channel and applies to all consumers on this channel.
func (r *Router) Start() error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}

	pending := len(r.registrations)
	stopped := make(chan struct{}, pending)
	for _, reg := range r.registrations {
		deliveries, err := r.ch.Consume(
			reg.queueName,
			reg.consumerTag,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}

		go func(queueName, tag string, h Handler, msgs <-chan amqp.Delivery) {
			defer func() { stopped <- struct{}{} }()
			for d := range msgs {
				r.dispatch(queueName, tag, h, d)
			}
			r.log.Info("consumer stopped", zap.String("queue", queueName), zap.String("tag", tag))
		}(reg.queueName, reg.consumerTag, reg.handler, deliveries)
	}

	go func() {
		for i := 0; i < pending; i++ {
			<-stopped
		}
		close(r.done)
	}()
	return nil
}

func (r *Router) dispatch(queueName, tag string, h Handler, d amqp.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
	err := h.Handle(ctx, d)
	cancel()

	if err != nil {
		// redelivered messages are not requeued a second time
		requeue := r.requeueOnErr && !d.Redelivered
		r.log.Error("handler error",
			zap.String("queue", queueName),
			zap.String("tag", tag),
			zap.String("rk", d.RoutingKey),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

// Stop cancels every consumer and waits for in-flight deliveries to finish.
func (r *Router) Stop(ctx context.Context) error {
	for _, reg := range r.registrations {
		_ = r.ch.Cancel(reg.consumerTag, false)
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
