package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/infra/config"
)

// BillingCommandHandler applies refund and chargeback commands to licenses.
type BillingCommandHandler interface {
	ApplyBillingCommand(ctx context.Context, cmd domain.BillingCommand) error
}

var errPoisonMessage = errors.New("billing command cannot be applied")

// BillingConsumer suspends licenses when the payment collaborator reports refunds or chargebacks.
type BillingConsumer struct {
	handler BillingCommandHandler
	logger  *zap.Logger
}

// NewBillingConsumer constructs the consumer.
func NewBillingConsumer(handler BillingCommandHandler, logger *zap.Logger) *BillingConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingConsumer{handler: handler, logger: logger}
}

// HandleMessage decodes a Kafka message and applies the command.
// Malformed or unresolvable commands are reported as poison and should be skipped.
func (c *BillingConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var cmd domain.BillingCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("%w: decode: %v", errPoisonMessage, err)
	}

	return c.HandleCommand(ctx, cmd)
}

// HandleCommand applies a decoded billing command.
func (c *BillingConsumer) HandleCommand(ctx context.Context, cmd domain.BillingCommand) error {
	err := c.handler.ApplyBillingCommand(ctx, cmd)
	switch {
	case err == nil:
		c.logger.Info("billing command applied",
			zap.String("event_id", cmd.EventID),
			zap.String("type", cmd.Type),
		)
		return nil
	case errors.Is(err, domain.ErrLicenseNotFound), errors.Is(err, domain.ErrInvalidFormat), errors.Is(err, domain.ErrInvalidStatusTransition):
		return fmt.Errorf("%w: %v", errPoisonMessage, err)
	default:
		if cmd.Type != domain.BillingCommandRefunded && cmd.Type != domain.BillingCommandChargeback {
			return fmt.Errorf("%w: %v", errPoisonMessage, err)
		}
		return fmt.Errorf("apply billing command: %w", err)
	}
}

// Setup is part of sarama.ConsumerGroupHandler.
func (c *BillingConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup is part of sarama.ConsumerGroupHandler.
func (c *BillingConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim applies each message in order. A transient failure stops the claim without
// marking the offset so the command is redelivered after the rebalance.
func (c *BillingConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(session.Context(), msg); err != nil {
				if !errors.Is(err, errPoisonMessage) {
					c.logger.Error("billing command failed, will retry",
						zap.String("topic", msg.Topic),
						zap.Int64("offset", msg.Offset),
						zap.Error(err),
					)
					return err
				}
				c.logger.Warn("skipping billing command",
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// RunBillingConsumer joins the consumer group and blocks until ctx is cancelled.
func RunBillingConsumer(ctx context.Context, cfg config.KafkaSettings, consumer *BillingConsumer, logger *zap.Logger) error {
	saramaConfig := newSaramaConfig("liceinc-billing")
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			logger.Warn("billing consumer group error", zap.Error(err))
		}
	}()

	logger.Info("billing consumer started",
		zap.String("topic", cfg.BillingTopic),
		zap.String("group", cfg.ConsumerGroup),
	)

	for {
		if err := group.Consume(ctx, []string{cfg.BillingTopic}, consumer); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Warn("billing consumer session ended", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
