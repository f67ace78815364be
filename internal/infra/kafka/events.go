package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	EventLicenseMaterialized  = "license.materialized"
	EventDomainActivated      = "license.domain.activated"
	EventDomainDeactivated    = "license.domain.deactivated"
	EventLicenseStatusChanged = "license.status.changed"
	EventVerificationFailed   = "license.verification.failed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

var _ port.EventPublisher = (*EventPublisher)(nil)

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Key       string           `json:"key,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Key:       key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func licenseKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// PublishLicenseMaterialized publishes license.materialized events.
func (p *EventPublisher) PublishLicenseMaterialized(ctx context.Context, event domain.LicenseMaterializedEvent) error {
	payload := struct {
		LicenseID   int64          `json:"license_id"`
		LicenseKey  string         `json:"license_key"`
		ProductID   int64          `json:"product_id"`
		UserID      *int64         `json:"user_id,omitempty"`
		LicenseType string         `json:"license_type"`
		CreatedAt   time.Time      `json:"created_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		LicenseID:   event.LicenseID,
		LicenseKey:  event.LicenseKey,
		ProductID:   event.ProductID,
		UserID:      event.UserID,
		LicenseType: string(event.LicenseType),
		CreatedAt:   event.CreatedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventLicenseMaterialized, licenseKey(event.LicenseID), event.CreatedAt, payload)
}

// PublishDomainActivated publishes license.domain.activated events.
func (p *EventPublisher) PublishDomainActivated(ctx context.Context, event domain.DomainActivatedEvent) error {
	payload := struct {
		LicenseID       int64     `json:"license_id"`
		Domain          string    `json:"domain"`
		Reactivated     bool      `json:"reactivated"`
		ActivationCount int64     `json:"activation_count"`
		ActivatedAt     time.Time `json:"activated_at"`
	}{
		LicenseID:       event.LicenseID,
		Domain:          event.Domain,
		Reactivated:     event.Reactivated,
		ActivationCount: event.ActivationCount,
		ActivatedAt:     event.ActivatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventDomainActivated, licenseKey(event.LicenseID), event.ActivatedAt, payload)
}

// PublishDomainDeactivated publishes license.domain.deactivated events.
func (p *EventPublisher) PublishDomainDeactivated(ctx context.Context, event domain.DomainDeactivatedEvent) error {
	payload := struct {
		LicenseID     int64     `json:"license_id"`
		Domain        string    `json:"domain"`
		Reason        string    `json:"reason,omitempty"`
		DeactivatedAt time.Time `json:"deactivated_at"`
	}{
		LicenseID:     event.LicenseID,
		Domain:        event.Domain,
		Reason:        event.Reason,
		DeactivatedAt: event.DeactivatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventDomainDeactivated, licenseKey(event.LicenseID), event.DeactivatedAt, payload)
}

// PublishLicenseStatusChanged publishes license.status.changed events.
func (p *EventPublisher) PublishLicenseStatusChanged(ctx context.Context, event domain.LicenseStatusChangedEvent) error {
	payload := struct {
		LicenseID int64     `json:"license_id"`
		From      string    `json:"from"`
		To        string    `json:"to"`
		Actor     string    `json:"actor"`
		Reason    string    `json:"reason,omitempty"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		LicenseID: event.LicenseID,
		From:      string(event.From),
		To:        string(event.To),
		Actor:     event.Actor,
		Reason:    event.Reason,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventLicenseStatusChanged, licenseKey(event.LicenseID), event.ChangedAt, payload)
}

// PublishVerificationFailed publishes license.verification.failed events keyed by code hash.
func (p *EventPublisher) PublishVerificationFailed(ctx context.Context, event domain.VerificationFailedEvent) error {
	payload := struct {
		CodeHash  string    `json:"code_hash"`
		Domain    string    `json:"domain"`
		IPAddress string    `json:"ip_address,omitempty"`
		Status    string    `json:"status"`
		Message   string    `json:"message"`
		At        time.Time `json:"at"`
	}{
		CodeHash:  event.CodeHash,
		Domain:    event.Domain,
		IPAddress: event.IPAddress,
		Status:    string(event.Status),
		Message:   event.Message,
		At:        event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, EventVerificationFailed, event.CodeHash, event.At, payload)
}
