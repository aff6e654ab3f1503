package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for dev mode and tests.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]adapter.ChargeState
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		charges: make(map[string]adapter.ChargeState),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) Enabled() bool { return true }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) OpenCharge(ctx context.Context, p *model.Payment, c *model.Conversion) (*adapter.ProviderHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := g.next()
	g.charges[ref] = adapter.ChargeStatePending
	return &adapter.ProviderHandle{
		Provider:     g.Name(),
		ExternalRef:  ref,
		ClientSecret: ref + "_secret",
		CheckoutURL:  "https://example.test/pay/" + ref,
	}, nil
}

func (g *NoopPaymentGateway) ChargeState(ctx context.Context, externalRef string) (adapter.ChargeState, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.charges[externalRef]
	if !ok {
		return "", nil, fmt.Errorf("noop: charge %s not found", externalRef)
	}
	return st, nil, nil
}

// Settle flips a charge to succeeded so poll-driven flows can observe a
// completed payment without a webhook.
func (g *NoopPaymentGateway) Settle(externalRef string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[externalRef] = adapter.ChargeStateSucceeded
}

func (g *NoopPaymentGateway) VerifyWebhook(payload []byte, signature string) (*adapter.WebhookEvent, error) {
	var body struct {
		Type        string `json:"type"`
		PaymentID   string `json:"payment_id"`
		ExternalRef string `json:"external_ref"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookProcessing, err)
	}
	evt := &adapter.WebhookEvent{
		Provider:    g.Name(),
		Type:        body.Type,
		State:       adapter.ChargeStatePending,
		PaymentID:   body.PaymentID,
		ExternalRef: body.ExternalRef,
		Raw:         payload,
	}
	switch body.Type {
	case "charge.succeeded":
		evt.State = adapter.ChargeStateSucceeded
	case "charge.failed":
		evt.State = adapter.ChargeStateFailed
	}
	return evt, nil
}
