package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*CoinbaseGateway)(nil)

// CoinbaseGateway runs the crypto rails on Coinbase Commerce hosted charges.
// One gateway instance serves every crypto method; the buyer picks the coin
// on the hosted page, so the charge itself is method-agnostic.
type CoinbaseGateway struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	redirectURL   string
	cancelURL     string
	client        *http.Client
}

func NewCoinbaseGateway(apiKey, webhookSecret, appBaseURL string) *CoinbaseGateway {
	return &CoinbaseGateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       "https://api.commerce.coinbase.com",
		redirectURL:   appBaseURL + "/payment/complete",
		cancelURL:     appBaseURL + "/payment/cancel",
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *CoinbaseGateway) Name() string { return "coinbase" }

func (g *CoinbaseGateway) Enabled() bool { return g.apiKey != "" }

// chargeData is the subset of a Commerce charge resource the service reads.
type chargeData struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	HostedURL string            `json:"hosted_url"`
	ExpiresAt time.Time         `json:"expires_at"`
	Addresses map[string]string `json:"addresses"`
	Metadata  map[string]string `json:"metadata"`
	Pricing   map[string]struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"pricing"`
	Timeline []struct {
		Status string    `json:"status"`
		Time   time.Time `json:"time"`
	} `json:"timeline"`
	Payments []struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
		Value         struct {
			Crypto struct {
				Amount   string `json:"amount"`
				Currency string `json:"currency"`
			} `json:"crypto"`
		} `json:"value"`
		Block struct {
			Confirmations int `json:"confirmations"`
		} `json:"block"`
	} `json:"payments"`
}

func (g *CoinbaseGateway) OpenCharge(ctx context.Context, p *model.Payment, c *model.Conversion) (*adapter.ProviderHandle, error) {
	payload := map[string]any{
		"name":         fmt.Sprintf("PDF Conversion: %s", c.Filename),
		"description":  fmt.Sprintf("Payment for %d page document conversion", c.PageCount),
		"pricing_type": "fixed_price",
		"local_price": map[string]string{
			"amount":   p.Amount().StringFixed(2),
			"currency": p.Currency,
		},
		"metadata": map[string]string{
			"payment_id":    p.ID,
			"conversion_id": p.ConversionID,
			"user_id":       userIDOrAnonymous(p.UserID),
		},
		"redirect_url": g.redirectURL,
		"cancel_url":   g.cancelURL,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	raw, data, err := g.do(req)
	if err != nil {
		return nil, err
	}

	handle := &adapter.ProviderHandle{
		Provider:    g.Name(),
		ExternalRef: data.ID,
		CheckoutURL: data.HostedURL,
		Raw:         raw,
	}
	if !data.ExpiresAt.IsZero() {
		exp := data.ExpiresAt
		handle.ExpiresAt = &exp
	}
	if key := coinKey(p.Method); key != "" {
		handle.CryptoAddress = data.Addresses[key]
		if price, ok := data.Pricing[key]; ok {
			handle.CryptoAmount = price.Amount
			handle.CryptoCurrency = price.Currency
		}
	}
	return handle, nil
}

func (g *CoinbaseGateway) ChargeState(ctx context.Context, externalRef string) (adapter.ChargeState, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/charges/"+externalRef, nil)
	if err != nil {
		return "", nil, err
	}
	raw, data, err := g.do(req)
	if err != nil {
		return "", nil, err
	}
	return timelineState(data), raw, nil
}

// do runs one Commerce API call and unwraps the {"data": ...} envelope.
func (g *CoinbaseGateway) do(req *http.Request) ([]byte, *chargeData, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CC-Api-Key", g.apiKey)
	req.Header.Set("X-CC-Version", "2018-03-22")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var fail struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &fail); jsonErr == nil && fail.Error.Message != "" {
			return nil, nil, fmt.Errorf("coinbase: %s: %s", fail.Error.Type, fail.Error.Message)
		}
		return nil, nil, fmt.Errorf("coinbase: http %d", resp.StatusCode)
	}

	var out struct {
		Data chargeData `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, nil, err
	}
	return body, &out.Data, nil
}

func timelineState(data *chargeData) adapter.ChargeState {
	if len(data.Timeline) == 0 {
		return adapter.ChargeStatePending
	}
	switch data.Timeline[len(data.Timeline)-1].Status {
	case "COMPLETED", "CONFIRMED", "RESOLVED":
		return adapter.ChargeStateSucceeded
	case "EXPIRED":
		return adapter.ChargeStateExpired
	case "CANCELED":
		return adapter.ChargeStateFailed
	default:
		// NEW, SIGNED, PENDING, UNRESOLVED: still in flight. An unresolved
		// charge may be resolved by the merchant later.
		return adapter.ChargeStatePending
	}
}

// coinKey maps a payment method to the pricing/address key Commerce uses.
// The catch-all method has no fixed coin; the hosted page covers it.
func coinKey(m model.PaymentMethod) string {
	switch m {
	case model.PaymentMethodBitcoin:
		return "bitcoin"
	case model.PaymentMethodEthereum:
		return "ethereum"
	case model.PaymentMethodUSDT:
		return "tether"
	default:
		return ""
	}
}

func (g *CoinbaseGateway) VerifyWebhook(payload []byte, signature string) (*adapter.WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: coinbase webhook secret not configured", domain.ErrWebhookAuth)
	}
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("%w: coinbase signature mismatch", domain.ErrWebhookAuth)
	}

	var env struct {
		Event struct {
			ID   string          `json:"id"`
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookProcessing, err)
	}
	var data chargeData
	if err := json.Unmarshal(env.Event.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookProcessing, err)
	}

	evt := &adapter.WebhookEvent{
		Provider:    g.Name(),
		EventID:     env.Event.ID,
		Type:        env.Event.Type,
		State:       adapter.ChargeStatePending,
		PaymentID:   data.Metadata["payment_id"],
		ExternalRef: data.ID,
		Raw:         env.Event.Data,
	}
	switch env.Event.Type {
	case "charge:confirmed", "charge:resolved":
		evt.State = adapter.ChargeStateSucceeded
	case "charge:failed":
		evt.State = adapter.ChargeStateFailed
	}
	if n := len(data.Payments); n > 0 {
		last := data.Payments[n-1]
		evt.ReceivedAmount = last.Value.Crypto.Amount
		evt.TxHash = last.TransactionID
		evt.Confirmations = last.Block.Confirmations
	}
	return evt, nil
}
