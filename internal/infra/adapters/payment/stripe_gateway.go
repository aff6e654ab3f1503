package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway runs the card rail on Stripe PaymentIntents. The payment id
// doubles as the idempotency key, so a retried intent creation never opens a
// second charge.
type StripeGateway struct {
	secretKey      string
	publishableKey string
	webhookSecret  string
	client         *client.API
}

func NewStripeGateway(secretKey, publishableKey, webhookSecret string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{
		secretKey:      secretKey,
		publishableKey: publishableKey,
		webhookSecret:  webhookSecret,
		client:         sc,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) Enabled() bool { return g.secretKey != "" }

func (g *StripeGateway) OpenCharge(ctx context.Context, p *model.Payment, c *model.Conversion) (*adapter.ProviderHandle, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(p.AmountCents),
		Currency:    stripe.String(strings.ToLower(p.Currency)),
		Description: stripe.String(fmt.Sprintf("Payment for %s (%d pages)", c.Filename, c.PageCount)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(p.ID)
	params.AddMetadata("payment_id", p.ID)
	params.AddMetadata("conversion_id", p.ConversionID)
	params.AddMetadata("user_id", userIDOrAnonymous(p.UserID))

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return &adapter.ProviderHandle{
		Provider:       g.Name(),
		ExternalRef:    pi.ID,
		ClientSecret:   pi.ClientSecret,
		PublishableKey: g.publishableKey,
		Raw:            pi.LastResponse.RawJSON,
	}, nil
}

func (g *StripeGateway) ChargeState(ctx context.Context, externalRef string) (adapter.ChargeState, []byte, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.client.PaymentIntents.Get(externalRef, params)
	if err != nil {
		return "", nil, err
	}
	return mapIntentStatus(pi.Status), pi.LastResponse.RawJSON, nil
}

func mapIntentStatus(s stripe.PaymentIntentStatus) adapter.ChargeState {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return adapter.ChargeStateSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return adapter.ChargeStateFailed
	default:
		// requires_payment_method, requires_confirmation, requires_action,
		// processing, requires_capture: the buyer can still finish.
		return adapter.ChargeStatePending
	}
}

func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*adapter.WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret not configured", domain.ErrWebhookAuth)
	}
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookAuth, err)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookProcessing, err)
	}

	evt := &adapter.WebhookEvent{
		Provider:    g.Name(),
		EventID:     event.ID,
		Type:        string(event.Type),
		State:       adapter.ChargeStatePending,
		PaymentID:   pi.Metadata["payment_id"],
		ExternalRef: pi.ID,
		Raw:         event.Data.Raw,
	}
	switch event.Type {
	case "payment_intent.succeeded":
		evt.State = adapter.ChargeStateSucceeded
		// Webhook payloads carry the charge as a bare id unless expansion is
		// configured; take the card details only when they are inlined.
		if ch := pi.LatestCharge; ch != nil && ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
			evt.CardLast4 = ch.PaymentMethodDetails.Card.Last4
			evt.CardBrand = string(ch.PaymentMethodDetails.Card.Brand)
		}
	case "payment_intent.payment_failed":
		evt.State = adapter.ChargeStateFailed
	}
	return evt, nil
}

func userIDOrAnonymous(userID *string) string {
	if userID != nil && *userID != "" {
		return *userID
	}
	return "anonymous"
}
