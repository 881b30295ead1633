package events

import (
	"context"
	"sync"

	"staffing/internal/models"
)

// Recorder is an in-process Publisher that keeps every event. It backs
// local runs without NATS and the package tests of publishers' callers.
type Recorder struct {
	mu          sync.Mutex
	Transitions []TransitionEvent
	Payments    []models.Payment
	Provisions  []ProvisionRequest
	Err         error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) PublishTransition(ctx context.Context, event TransitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Transitions = append(r.Transitions, event)
	return nil
}

func (r *Recorder) PublishPaymentRecorded(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Payments = append(r.Payments, *payment)
	return nil
}

func (r *Recorder) RequestProvisioning(ctx context.Context, req ProvisionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Provisions = append(r.Provisions, req)
	return nil
}

func (r *Recorder) Close() {}

// ProvisionRequests returns a snapshot of the recorded provisioning requests.
func (r *Recorder) ProvisionRequests() []ProvisionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProvisionRequest(nil), r.Provisions...)
}

func (r *Recorder) TransitionEvents() []TransitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransitionEvent(nil), r.Transitions...)
}

func (r *Recorder) PaymentEvents() []models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Payment(nil), r.Payments...)
}
