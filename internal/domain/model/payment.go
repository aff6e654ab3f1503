package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // awaiting provider confirmation
	PaymentStatusCompleted PaymentStatus = "completed" // provider confirmed settlement
	PaymentStatusFailed    PaymentStatus = "failed"    // provider rejected the charge or the open call errored
	PaymentStatusRefunded  PaymentStatus = "refunded"  // completed payment returned to the buyer
	PaymentStatusExpired   PaymentStatus = "expired"   // passed its expiry horizon while still pending
)

// Terminal reports whether no further transition may leave the status.
// Refunds branch off completed and never re-open a payment.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusExpired:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCreditCard  PaymentMethod = "credit_card"
	PaymentMethodUSDT        PaymentMethod = "usdt"
	PaymentMethodBitcoin     PaymentMethod = "bitcoin"
	PaymentMethodEthereum    PaymentMethod = "ethereum"
	PaymentMethodOtherCrypto PaymentMethod = "other_crypto"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodUSDT, PaymentMethodBitcoin,
		PaymentMethodEthereum, PaymentMethodOtherCrypto:
		return true
	}
	return false
}

func (m PaymentMethod) Crypto() bool {
	return m.Valid() && m != PaymentMethodCreditCard
}

// Payment records one attempt to pay for a conversion. A conversion may
// accumulate payments across retries; at most one ever completes.
type Payment struct {
	ID           string  // UUID
	ConversionID string  // -> Conversion
	UserID       *string // UUID; nil for anonymous buyers
	Method       PaymentMethod
	Provider     string // gateway name, e.g. "stripe", "coinbase"
	Status       PaymentStatus

	AmountCents    int64  // minor units of Currency
	Currency       string // ISO code, e.g. "USD"
	AmountUSDCents int64  // normalized reference amount

	ExternalRef string // provider intent/charge id
	CheckoutURL string // hosted checkout page for redirect rails

	// Crypto settlement details
	CryptoAddress  string
	CryptoAmount   string // decimal string as quoted by the provider
	CryptoCurrency string
	ReceivedAmount string
	TxHash         string
	Confirmations  int

	// Card details reported by the provider after settlement
	CardLast4 string
	CardBrand string

	ProviderData []byte // raw provider payload snapshot (JSONB)

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
	ExpiresAt time.Time
}

// NewPayment builds a pending payment for the quoted amount. The normalized
// amount mirrors the charge amount while pricing runs in a single currency.
func NewPayment(conversionID string, userID *string, method PaymentMethod, amount decimal.Decimal, currency string, ttl time.Duration) *Payment {
	now := time.Now()
	cents := amount.Shift(2).IntPart()
	return &Payment{
		ID:             uuid.NewString(),
		ConversionID:   conversionID,
		UserID:         userID,
		Method:         method,
		Status:         PaymentStatusPending,
		AmountCents:    cents,
		Currency:       currency,
		AmountUSDCents: cents,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

// Amount returns the charge amount in major units.
func (p *Payment) Amount() decimal.Decimal { return decimal.New(p.AmountCents, -2) }

// AmountUSD returns the normalized reference amount in major units.
func (p *Payment) AmountUSD() decimal.Decimal { return decimal.New(p.AmountUSDCents, -2) }

// Settlement carries provider-reported completion details applied during
// reconciliation together with the status transition.
type Settlement struct {
	PaidAt         *time.Time
	ProviderData   []byte
	CardLast4      string
	CardBrand      string
	ReceivedAmount string
	TxHash         string
	Confirmations  int
}
