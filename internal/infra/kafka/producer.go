package kafka

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/infra/config"
)

// newSaramaConfig holds the client settings shared by the event producer and the billing consumer.
func newSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_5_0_0
	cfg.ClientID = clientID
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond
	return cfg
}

// Producer publishes license events asynchronously. Delivery failures are logged and counted;
// nothing is retried beyond sarama's own retries.
type Producer struct {
	async    sarama.AsyncProducer
	logger   *zap.Logger
	prefix   string
	failures atomic.Uint64
	drained  chan struct{}
}

// NewProducer connects to the brokers. Events are keyed by license id, so the hash
// partitioner keeps one license's events ordered.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	saramaConfig := newSaramaConfig("liceinc-events")
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	async, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return newProducer(async, cfg.TopicPrefix, logger), nil
}

func newProducer(async sarama.AsyncProducer, topicPrefix string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		async:   async,
		logger:  logger,
		prefix:  strings.Trim(strings.TrimSpace(topicPrefix), "."),
		drained: make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

// drainErrors runs until sarama closes the error channel on shutdown.
func (p *Producer) drainErrors() {
	defer close(p.drained)
	for perr := range p.async.Errors() {
		if perr == nil {
			continue
		}
		p.failures.Add(1)

		fields := []zap.Field{zap.Error(perr.Err)}
		if perr.Msg != nil {
			fields = append(fields, zap.String("topic", perr.Msg.Topic))
		}
		p.logger.Error("kafka delivery failed", fields...)
	}
}

// Input is the channel events are enqueued on.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.async.Input()
}

// DeliveryFailures counts messages the brokers never acknowledged.
func (p *Producer) DeliveryFailures() uint64 {
	return p.failures.Load()
}

// Close flushes pending messages and waits for the error drain to finish.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	err := p.async.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName prefixes the event type with the configured topic prefix.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" || strings.HasPrefix(eventType, p.prefix+".") {
		return eventType
	}
	return p.prefix + "." + eventType
}
