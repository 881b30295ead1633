package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const provisioningQueue = "staffing-provisioning"

// Provisioner re-runs employee provisioning from a stored application.
type Provisioner interface {
	ProvisionByID(ctx context.Context, applicationID string) (bool, error)
}

type Handler struct {
	logger      *zap.Logger
	nc          *nats.Conn
	provisioner Provisioner
	timeout     time.Duration
	sub         *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, provisioner Provisioner) *Handler {
	return &Handler{
		logger:      logger,
		nc:          nc,
		provisioner: provisioner,
		timeout:     30 * time.Second,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.QueueSubscribe(ProvisionRequestedSubject, provisioningQueue, h.handleProvisionRequest)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", ProvisionRequestedSubject, err)
	}

	h.sub = sub
	h.logger.Info("Registered NATS subscriptions", zap.String("subject", ProvisionRequestedSubject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.sub.Unsubscribe()
		},
	})

	return nil
}

func (h *Handler) handleProvisionRequest(msg *nats.Msg) {
	ctx, span := tracer.Start(context.Background(), "handleProvisionRequest")
	defer span.End()

	var req ProvisionRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.ApplicationID == "" {
		h.logger.Warn("Dropping malformed provisioning request",
			zap.String("subject", msg.Subject),
			zap.ByteString("data", msg.Data),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	written, err := h.provisioner.ProvisionByID(ctx, req.ApplicationID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to provision employee",
			zap.String("application_id", req.ApplicationID),
			zap.Error(err))
		return
	}

	h.logger.Info("Handled queued provisioning request",
		zap.String("application_id", req.ApplicationID),
		zap.Bool("written", written),
	)
}
