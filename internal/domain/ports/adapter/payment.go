package adapter

import (
	"context"
	"time"

	"pdf-conversion-billing/internal/domain/model"
)

// ChargeState is the provider-agnostic view of a charge/intent lifecycle.
type ChargeState string

const (
	ChargeStatePending   ChargeState = "pending"
	ChargeStateSucceeded ChargeState = "succeeded"
	ChargeStateFailed    ChargeState = "failed"
	ChargeStateExpired   ChargeState = "expired"
)

// ProviderHandle carries what the buyer-facing client needs to complete a
// payment: a confirmation token for in-page card capture, or a hosted
// checkout URL plus receiving address for crypto transfers.
type ProviderHandle struct {
	Provider       string
	ExternalRef    string // provider intent/charge id
	ClientSecret   string
	PublishableKey string
	CheckoutURL    string
	CryptoAddress  string
	CryptoAmount   string
	CryptoCurrency string
	ExpiresAt      *time.Time
	Raw            []byte // provider response snapshot for audit
}

// WebhookEvent is a signature-verified provider notification, normalized so
// the reconciler never touches provider-native shapes.
type WebhookEvent struct {
	Provider    string
	EventID     string
	Type        string // provider-native event type
	State       ChargeState
	PaymentID   string // internal payment id recovered from provider metadata
	ExternalRef string

	// Settlement details, populated when the provider includes them
	CardLast4      string
	CardBrand      string
	ReceivedAmount string
	TxHash         string
	Confirmations  int

	Raw []byte
}

// PaymentGateway is the hex port for one payment rail. New payment methods
// are added by registering new implementations, never by branching on
// provider inside the use cases.
type PaymentGateway interface {
	Name() string

	// Enabled reports whether the provider credential is configured. The
	// intent factory checks this before persisting anything.
	Enabled() bool

	// OpenCharge creates the provider-side intent/charge for a pending
	// payment. Implementations embed the payment id in provider metadata so
	// later webhook events are self-describing.
	OpenCharge(ctx context.Context, p *model.Payment, c *model.Conversion) (*ProviderHandle, error)

	// ChargeState retrieves the provider's current view of a charge. The
	// raw response is returned alongside for audit snapshots.
	ChargeState(ctx context.Context, externalRef string) (ChargeState, []byte, error)

	// VerifyWebhook authenticates a raw notification against the given
	// signature header and normalizes it. Unverifiable or malformed input
	// must come back as domain.ErrWebhookAuth / domain.ErrWebhookProcessing.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
