package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/infra/metrics"
	"pdf-conversion-billing/internal/usecase"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrConversionNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnsupportedProvider):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrWebhookAuth),
		errors.Is(err, domain.ErrWebhookProcessing):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyPaid), errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPaymentRequired):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrProviderNotConfigured),
		errors.Is(err, domain.ErrConverterBusy):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrProvider):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type conversionResponse struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	FileSize        int64     `json:"file_size"`
	PageCount       int       `json:"page_count"`
	Price           string    `json:"price"`
	PriceCents      int64     `json:"price_cents"`
	IsPaid          bool      `json:"is_paid"`
	RequiresPayment bool      `json:"requires_payment"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func toConversionResponse(c *model.Conversion) conversionResponse {
	return conversionResponse{
		ID:              c.ID,
		Filename:        c.Filename,
		FileSize:        c.FileSize,
		PageCount:       c.PageCount,
		Price:           c.Price().StringFixed(2),
		PriceCents:      c.PriceCents,
		IsPaid:          c.IsPaid,
		RequiresPayment: !c.IsPaid && c.PriceCents > 0,
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt,
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	conv, err := s.conversions.Convert(r.Context(), s.optionalUser(r), header.Filename, file)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConversionResponse(conv))
}

func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversionResponse(conv))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.conversions.Download(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentRequired) {
			s.writePaymentRequired(w, r, id)
			return
		}
		s.writeDomainError(w, err)
		return
	}

	name := strings.TrimSuffix(conv.Filename, filepath.Ext(conv.Filename)) + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, conv.PDFPath)
}

// writePaymentRequired answers 402 with enough detail for the client to
// start a payment without another round trip.
func (s *Server) writePaymentRequired(w http.ResponseWriter, r *http.Request, id string) {
	detail := struct {
		Message         string `json:"message"`
		ConversionID    string `json:"conversion_id"`
		PageCount       int    `json:"page_count"`
		Price           string `json:"price"`
		RequiresPayment bool   `json:"requires_payment"`
	}{
		Message:         "payment required to download this conversion",
		ConversionID:    id,
		RequiresPayment: true,
	}
	if conv, err := s.conversions.Get(r.Context(), id); err == nil {
		detail.PageCount = conv.PageCount
		detail.Price = conv.Price().StringFixed(2)
	}
	writeJSON(w, http.StatusPaymentRequired, detail)
}

type intentRequest struct {
	ConversionID string `json:"conversion_id"`
	Method       string `json:"method"`
}

type intentResponse struct {
	NoPaymentNeeded bool       `json:"no_payment_needed,omitempty"`
	PaymentID       string     `json:"payment_id,omitempty"`
	Provider        string     `json:"provider,omitempty"`
	Status          string     `json:"status,omitempty"`
	Amount          string     `json:"amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	ClientSecret    string     `json:"client_secret,omitempty"`
	PublishableKey  string     `json:"publishable_key,omitempty"`
	CheckoutURL     string     `json:"checkout_url,omitempty"`
	CryptoAddress   string     `json:"crypto_address,omitempty"`
	CryptoAmount    string     `json:"crypto_amount,omitempty"`
	CryptoCurrency  string     `json:"crypto_currency,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.payments.CreateIntent(r.Context(), req.ConversionID, s.optionalUser(r), model.PaymentMethod(req.Method))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if res.NoPaymentNeeded {
		writeJSON(w, http.StatusOK, intentResponse{NoPaymentNeeded: true})
		return
	}

	p, h := res.Payment, res.Handle
	resp := intentResponse{
		PaymentID:      p.ID,
		Provider:       p.Provider,
		Status:         string(p.Status),
		Amount:         p.Amount().StringFixed(2),
		Currency:       p.Currency,
		ClientSecret:   h.ClientSecret,
		PublishableKey: h.PublishableKey,
		CheckoutURL:    h.CheckoutURL,
		CryptoAddress:  h.CryptoAddress,
		CryptoAmount:   h.CryptoAmount,
		CryptoCurrency: h.CryptoCurrency,
	}
	if !p.ExpiresAt.IsZero() {
		exp := p.ExpiresAt
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusCreated, resp)
}

type paymentResponse struct {
	ID             string     `json:"id"`
	ConversionID   string     `json:"conversion_id"`
	Method         string     `json:"method"`
	Provider       string     `json:"provider"`
	Status         string     `json:"status"`
	Amount         string     `json:"amount"`
	Currency       string     `json:"currency"`
	CheckoutURL    string     `json:"checkout_url,omitempty"`
	CryptoAddress  string     `json:"crypto_address,omitempty"`
	CryptoAmount   string     `json:"crypto_amount,omitempty"`
	CryptoCurrency string     `json:"crypto_currency,omitempty"`
	ReceivedAmount string     `json:"received_amount,omitempty"`
	TxHash         string     `json:"tx_hash,omitempty"`
	Confirmations  int        `json:"confirmations,omitempty"`
	CardLast4      string     `json:"card_last4,omitempty"`
	CardBrand      string     `json:"card_brand,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		ConversionID:   p.ConversionID,
		Method:         string(p.Method),
		Provider:       p.Provider,
		Status:         string(p.Status),
		Amount:         p.Amount().StringFixed(2),
		Currency:       p.Currency,
		CheckoutURL:    p.CheckoutURL,
		CryptoAddress:  p.CryptoAddress,
		CryptoAmount:   p.CryptoAmount,
		CryptoCurrency: p.CryptoCurrency,
		ReceivedAmount: p.ReceivedAmount,
		TxHash:         p.TxHash,
		Confirmations:  p.Confirmations,
		CardLast4:      p.CardLast4,
		CardBrand:      p.CardBrand,
		CreatedAt:      p.CreatedAt,
		PaidAt:         p.PaidAt,
		ExpiresAt:      p.ExpiresAt,
	}
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.ResolveStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	start := time.Now()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	sig := r.Header.Get(signatureHeaders[provider])

	outcome, err := s.payments.HandleWebhook(r.Context(), provider, payload, sig)
	metrics.ObserveWebhookDuration(provider, time.Since(start).Seconds())
	if err != nil {
		metrics.IncWebhookEvent(provider, webhookErrResult(err))
		s.writeDomainError(w, err)
		return
	}
	metrics.IncWebhookEvent(provider, webhookResult(outcome))
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "applied": outcome.Applied})
}

func webhookErrResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrWebhookAuth):
		return "auth_failed"
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return "ignored"
	default:
		return "error"
	}
}

func webhookResult(out *usecase.WebhookOutcome) string {
	switch {
	case out.Applied:
		return "applied"
	case out.Payment != nil:
		return "duplicate"
	default:
		return "ignored"
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{ID: u.ID, Username: u.Username, Email: u.Email, IsAdmin: u.IsAdmin})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		// Unknown account and wrong password answer identically.
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	token, err := s.auth.Mint(w, u)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.stats.Totals(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	week, month, err := s.stats.Revenue(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	response := struct {
		TotalUsers       int            `json:"total_users"`
		TotalConversions int            `json:"total_conversions"`
		PaidConversions  int            `json:"paid_conversions"`
		Payments         map[string]int `json:"payments_by_status"`
		Revenue          struct {
			WeekCents  int64 `json:"week_cents"`
			MonthCents int64 `json:"month_cents"`
		} `json:"revenue_usd"`
	}{
		TotalUsers:       totals.Users,
		TotalConversions: totals.Conversions,
		PaidConversions:  totals.PaidConversions,
		Payments:         make(map[string]int, len(totals.Payments)),
	}
	for st, n := range totals.Payments {
		response.Payments[string(st)] = n
	}
	response.Revenue.WeekCents = week
	response.Revenue.MonthCents = month
	writeJSON(w, http.StatusOK, response)
}
