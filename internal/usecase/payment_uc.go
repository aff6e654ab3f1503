package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
	"pdf-conversion-billing/internal/domain/ports/repository"
	"pdf-conversion-billing/internal/infra/logging"
)

// IntentResult is what intent creation hands back to the caller. Free
// conversions short-circuit: NoPaymentNeeded is set and no payment exists.
type IntentResult struct {
	NoPaymentNeeded bool
	Payment         *model.Payment
	Handle          *adapter.ProviderHandle
}

// WebhookOutcome reports what a verified provider event did. Applied is
// false for duplicate deliveries and non-actionable event types.
type WebhookOutcome struct {
	Provider  string
	EventType string
	Applied   bool
	Payment   *model.Payment
}

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// CreateIntent quotes the conversion, persists a pending payment and
	// opens a charge on the gateway registered for the method.
	CreateIntent(ctx context.Context, conversionID string, userID *string, method model.PaymentMethod) (*IntentResult, error)
	// HandleWebhook authenticates one inbound provider event and applies it
	// at most once.
	HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) (*WebhookOutcome, error)
	// ResolveStatus returns the payment, polling the provider first when the
	// local row is still pending. Poll failures fall back to local state.
	ResolveStatus(ctx context.Context, paymentID string) (*model.Payment, error)
	// ReconcilePending runs ResolveStatus over stale pending payments and
	// returns how many reached a terminal state. Webhook-miss recovery.
	ReconcilePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
	// ExpireOverdue transitions pending payments past their expiry horizon.
	ExpireOverdue(ctx context.Context) (int64, error)
}

// PaymentOptions fixes currency and timing at construction. Zero values fall
// back to defaults (USD, 24h intent expiry, 15s provider polls).
type PaymentOptions struct {
	Currency    string
	IntentTTL   time.Duration
	PollTimeout time.Duration
}

type paymentUC struct {
	payments    repository.PaymentRepository
	conversions repository.ConversionRepository
	pricing     PricingUseCase
	gateways    map[model.PaymentMethod]adapter.PaymentGateway
	byProvider  map[string]adapter.PaymentGateway
	tm          repository.TransactionManager
	sink        adapter.MetricSink
	opts        PaymentOptions
	log         *zerolog.Logger
}

// NewPaymentUseCase wires the intent factory, webhook reconciler and status
// resolver over one gateway registry. `gateways` maps each accepted payment
// method to its rail; webhook routing is derived from gateway names.
func NewPaymentUseCase(
	payments repository.PaymentRepository,
	conversions repository.ConversionRepository,
	pricing PricingUseCase,
	gateways map[model.PaymentMethod]adapter.PaymentGateway,
	tm repository.TransactionManager,
	sink adapter.MetricSink,
	opts PaymentOptions,
	logger *zerolog.Logger,
) PaymentUseCase {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.IntentTTL <= 0 {
		opts.IntentTTL = 24 * time.Hour
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 15 * time.Second
	}
	byProvider := make(map[string]adapter.PaymentGateway, len(gateways))
	for _, gw := range gateways {
		byProvider[gw.Name()] = gw
	}
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{
		payments:    payments,
		conversions: conversions,
		pricing:     pricing,
		gateways:    gateways,
		byProvider:  byProvider,
		tm:          tm,
		sink:        sink,
		opts:        opts,
		log:         &l,
	}
}

func (u *paymentUC) CreateIntent(ctx context.Context, conversionID string, userID *string, method model.PaymentMethod) (*IntentResult, error) {
	if conversionID == "" {
		return nil, fmt.Errorf("%w: conversion id is required", domain.ErrInvalidArgument)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidArgument, method)
	}

	conv, err := u.conversions.FindByID(ctx, repository.NoTX, conversionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrConversionNotFound
		}
		return nil, err
	}
	if conv.IsPaid {
		return nil, domain.ErrAlreadyPaid
	}

	amount := u.pricing.Quote(conv.PageCount)
	if amount.IsZero() {
		if err := u.conversions.MarkPaid(ctx, repository.NoTX, conv.ID); err != nil {
			return nil, err
		}
		u.log.Info().Str("conversion_id", conv.ID).Int("pages", conv.PageCount).Msg("conversion within free allowance, no payment needed")
		return &IntentResult{NoPaymentNeeded: true}, nil
	}

	gw, ok := u.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: no gateway accepts method %q", domain.ErrInvalidArgument, method)
	}
	if !gw.Enabled() {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotConfigured, gw.Name())
	}

	p := model.NewPayment(conv.ID, userID, method, amount, u.opts.Currency, u.opts.IntentTTL)
	p.Provider = gw.Name()
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}

	handle, err := gw.OpenCharge(ctx, p, conv)
	if err != nil {
		u.failOpen(ctx, p, err)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProvider, gw.Name(), err)
	}

	p.ExternalRef = handle.ExternalRef
	p.CheckoutURL = handle.CheckoutURL
	p.CryptoAddress = handle.CryptoAddress
	p.CryptoAmount = handle.CryptoAmount
	p.CryptoCurrency = handle.CryptoCurrency
	p.ProviderData = handle.Raw
	if handle.ExpiresAt != nil {
		p.ExpiresAt = *handle.ExpiresAt
	}
	p.UpdatedAt = time.Now()
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}

	u.emit("payment_intent_created", p.AmountUSD().InexactFloat64(), map[string]string{
		"provider": p.Provider,
		"method":   string(p.Method),
	})
	u.log.Info().Str("payment_id", p.ID).Str("conversion_id", conv.ID).
		Str("provider", p.Provider).Str("amount", p.Amount().StringFixed(2)).
		Msg("payment intent created")
	return &IntentResult{Payment: p, Handle: handle}, nil
}

// failOpen parks a payment whose provider call errored. Best effort: the
// caller already carries the provider error.
func (u *paymentUC) failOpen(ctx context.Context, p *model.Payment, cause error) {
	payload, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if _, err := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, &model.Settlement{ProviderData: payload}); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("could not mark payment failed after provider error")
	}
	p.Status = model.PaymentStatusFailed
}

func (u *paymentUC) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) (out *WebhookOutcome, err error) {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleWebhook")()

	gw, ok := u.byProvider[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, provider)
	}

	// Webhook bodies are attacker-controlled; a panic in parsing must
	// surface as a client error, never tear down the handler.
	defer func() {
		if r := recover(); r != nil {
			u.log.Error().Interface("panic", r).Str("provider", provider).Msg("webhook handling panicked")
			out = nil
			err = fmt.Errorf("%w: panic while processing event", domain.ErrWebhookProcessing)
		}
	}()

	evt, err := gw.VerifyWebhook(payload, signature)
	if err != nil {
		return nil, err
	}

	outcome := &WebhookOutcome{Provider: provider, EventType: evt.Type}
	switch evt.State {
	case adapter.ChargeStateSucceeded:
		p, applied, err := u.complete(ctx, evt)
		if err != nil {
			return nil, err
		}
		outcome.Payment, outcome.Applied = p, applied
	case adapter.ChargeStateFailed:
		p, applied, err := u.markFailed(ctx, evt)
		if err != nil {
			return nil, err
		}
		outcome.Payment, outcome.Applied = p, applied
	default:
		u.log.Debug().Str("provider", provider).Str("type", evt.Type).Msg("webhook event acknowledged without action")
	}
	return outcome, nil
}

// complete applies a provider-confirmed success exactly once. The status
// compare-and-swap and the conversion paid flip share one transaction;
// whichever completion source loses the swap sees terminal state and walks
// away without side effects.
func (u *paymentUC) complete(ctx context.Context, evt *adapter.WebhookEvent) (*model.Payment, bool, error) {
	p, err := u.lookup(ctx, evt)
	if err != nil {
		return nil, false, err
	}
	if p.Status.Terminal() {
		return p, false, nil
	}

	now := time.Now()
	st := &model.Settlement{
		PaidAt:         &now,
		ProviderData:   evt.Raw,
		CardLast4:      evt.CardLast4,
		CardBrand:      evt.CardBrand,
		ReceivedAmount: evt.ReceivedAmount,
		TxHash:         evt.TxHash,
		Confirmations:  evt.Confirmations,
	}
	var won bool
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var txErr error
		won, txErr = u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusCompleted, st)
		if txErr != nil {
			return txErr
		}
		if !won {
			return nil
		}
		return u.conversions.MarkPaid(ctx, tx, p.ConversionID)
	})
	if err != nil {
		return nil, false, err
	}
	if !won {
		if cur, ferr := u.payments.FindByID(ctx, repository.NoTX, p.ID); ferr == nil {
			p = cur
		}
		u.log.Info().Str("payment_id", p.ID).Str("status", string(p.Status)).Msg("payment already finalized, skipping")
		return p, false, nil
	}

	p.Status = model.PaymentStatusCompleted
	p.PaidAt = &now
	p.UpdatedAt = now
	p.ProviderData = evt.Raw
	p.CardLast4 = evt.CardLast4
	p.CardBrand = evt.CardBrand
	p.ReceivedAmount = evt.ReceivedAmount
	p.TxHash = evt.TxHash
	p.Confirmations = evt.Confirmations

	u.emit("payment_completed", p.AmountUSD().InexactFloat64(), map[string]string{
		"provider":     p.Provider,
		"method":       string(p.Method),
		"currency":     p.Currency,
		"amount_cents": strconv.FormatInt(p.AmountCents, 10),
	})
	u.log.Info().Str("payment_id", p.ID).Str("conversion_id", p.ConversionID).
		Str("provider", p.Provider).Msg("payment completed")
	return p, true, nil
}

// markFailed parks a payment the provider reported as failed. Guarded the
// same way as completion; terminal rows are left untouched.
func (u *paymentUC) markFailed(ctx context.Context, evt *adapter.WebhookEvent) (*model.Payment, bool, error) {
	p, err := u.lookup(ctx, evt)
	if err != nil {
		return nil, false, err
	}
	if p.Status.Terminal() {
		return p, false, nil
	}
	won, err := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, &model.Settlement{ProviderData: evt.Raw})
	if err != nil {
		return nil, false, err
	}
	if won {
		p.Status = model.PaymentStatusFailed
		p.ProviderData = evt.Raw
		u.emit("payment_failed", p.AmountUSD().InexactFloat64(), map[string]string{"provider": p.Provider})
		u.log.Info().Str("payment_id", p.ID).Str("provider", p.Provider).Msg("payment failed at provider")
	}
	return p, won, nil
}

// lookup resolves the payment an event refers to: embedded metadata first,
// provider reference second.
func (u *paymentUC) lookup(ctx context.Context, evt *adapter.WebhookEvent) (*model.Payment, error) {
	if evt.PaymentID != "" {
		p, err := u.payments.FindByID(ctx, repository.NoTX, evt.PaymentID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if evt.ExternalRef != "" {
		p, err := u.payments.FindByExternalRef(ctx, repository.NoTX, evt.Provider, evt.ExternalRef)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (u *paymentUC) ResolveStatus(ctx context.Context, paymentID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ResolveStatus")()

	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Status != model.PaymentStatusPending || p.ExternalRef == "" {
		return p, nil
	}

	gw, ok := u.byProvider[p.Provider]
	if !ok {
		u.log.Warn().Str("payment_id", p.ID).Str("provider", p.Provider).Msg("pending payment has no registered gateway")
		return p, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, u.opts.PollTimeout)
	defer cancel()
	state, raw, err := gw.ChargeState(pollCtx, p.ExternalRef)
	if err != nil {
		// Polling is advisory; the caller gets last known local state.
		u.log.Debug().Err(err).Str("payment_id", p.ID).Str("provider", p.Provider).Msg("provider poll failed")
		return p, nil
	}
	if state != adapter.ChargeStateSucceeded {
		return p, nil
	}

	evt := &adapter.WebhookEvent{
		Provider:    p.Provider,
		Type:        "poll",
		State:       adapter.ChargeStateSucceeded,
		PaymentID:   p.ID,
		ExternalRef: p.ExternalRef,
		Raw:         raw,
	}
	cur, _, err := u.complete(ctx, evt)
	if err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("poll reconciliation failed")
		return p, nil
	}
	return cur, nil
}

func (u *paymentUC) ReconcilePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	rows, err := u.payments.ListPendingOlderThan(ctx, repository.NoTX, time.Now().Add(-staleAfter), limit)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, stale := range rows {
		cur, err := u.ResolveStatus(ctx, stale.ID)
		if err != nil {
			u.log.Error().Err(err).Str("payment_id", stale.ID).Msg("reconcile: resolve failed")
			continue
		}
		if cur.Status != model.PaymentStatusPending {
			resolved++
		}
	}
	return resolved, nil
}

func (u *paymentUC) ExpireOverdue(ctx context.Context) (int64, error) {
	return u.payments.ExpirePending(ctx, repository.NoTX, time.Now())
}

func (u *paymentUC) emit(event string, value float64, meta map[string]string) {
	if u.sink != nil {
		u.sink.Emit(event, value, meta)
	}
}
