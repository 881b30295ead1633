package events

import (
	"context"
	"encoding/json"
	"time"

	"staffing/common/telemetry"
	"staffing/internal/config"
	"staffing/internal/errors"
	"staffing/internal/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("staffing/events")

const (
	ApplicationTransitionedSubject = "applications.transitioned"
	PaymentRecordedSubject         = "payments.recorded"
	ProvisionRequestedSubject      = "employees.provision"
)

type TransitionEvent struct {
	ApplicationID  string           `json:"applicationId"`
	CandidateEmail string           `json:"candidateEmail"`
	JobID          string           `json:"jobId"`
	From           models.Status    `json:"from"`
	To             models.Status    `json:"to"`
	JobStatus      models.JobStatus `json:"jobStatus,omitempty"`
	ActorRole      string           `json:"actorRole"`
	At             time.Time        `json:"at"`
}

type ProvisionRequest struct {
	ApplicationID string    `json:"applicationId"`
	Reason        string    `json:"reason,omitempty"`
	RequestedAt   time.Time `json:"requestedAt"`
}

type Publisher interface {
	PublishTransition(ctx context.Context, event TransitionEvent) error
	PublishPaymentRecorded(ctx context.Context, payment *models.Payment) error
	RequestProvisioning(ctx context.Context, req ProvisionRequest) error
	Close()
}

type natsPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewConnection dials NATS with reconnects enabled; the connection is shared
// by the publisher and the subscription handler.
func NewConnection(cfg *config.Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.NATSConnTimeout),
		nats.Name("staffing-service"),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}
	return conn, nil
}

func NewPublisher(logger *zap.Logger, conn *nats.Conn) Publisher {
	return &natsPublisher{
		conn:   conn,
		logger: logger,
	}
}

func (p *natsPublisher) publish(ctx context.Context, subject string, v any) error {
	_, span := tracer.Start(ctx, "Publish")
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling event", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", subject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(subject, data); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to publish event",
			zap.String("subject", subject),
			zap.Error(err))
		return errors.Unavailable("publishing to NATS", err)
	}

	p.logger.Debug("published event", zap.String("subject", subject))
	return nil
}

func (p *natsPublisher) PublishTransition(ctx context.Context, event TransitionEvent) error {
	return p.publish(ctx, ApplicationTransitionedSubject, event)
}

func (p *natsPublisher) PublishPaymentRecorded(ctx context.Context, payment *models.Payment) error {
	return p.publish(ctx, PaymentRecordedSubject, payment)
}

func (p *natsPublisher) RequestProvisioning(ctx context.Context, req ProvisionRequest) error {
	return p.publish(ctx, ProvisionRequestedSubject, req)
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
