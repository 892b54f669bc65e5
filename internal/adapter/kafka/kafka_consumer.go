package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"go.uber.org/zap"
)

// HandlerFunc processes a decoded event. A returned error leaves the offset unmarked.
type HandlerFunc func(ctx context.Context, ev usecase.CourierStatusMsg) error

// Consumer consumes a topic with a single handler.
type Consumer struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc
	Logger *zap.Logger
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		Group:  group,
		Topics: topics,
		Handle: h,
		Logger: logger,
	}
}

// Start blocks until ctx is cancelled or the group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.Group.Errors() {
			c.Logger.Warn("consumer group error", zap.Error(err))
		}
	}()

	handler := &cgHandler{handle: c.Handle, logger: c.Logger}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// When Consume returns, it’s because ctx was cancelled or a rebalance happened.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler struct {
	handle HandlerFunc
	logger *zap.Logger
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.process(sess, msg)
	}
	return nil
}

func (h *cgHandler) process(sess sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	var ev usecase.CourierStatusMsg
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.Warn("kafka decode error",
			zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
		// mark to avoid reprocessing poison
		sess.MarkMessage(msg, "decode-error")
		return
	}
	if err := h.handle(sess.Context(), ev); err != nil {
		h.logger.Error("handler error",
			zap.String("key", string(msg.Key)), zap.Int64("offset", msg.Offset), zap.Error(err))
		// Do not mark message; let it retry on next poll or route with your DLQ pattern.
		return
	}
	sess.MarkMessage(msg, "")
}
