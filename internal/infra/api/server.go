package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/infra/redis"
	"pdf-conversion-billing/internal/usecase"
)

// signatureHeaders names the header each provider signs its webhook
// deliveries with.
var signatureHeaders = map[string]string{
	"stripe":   "Stripe-Signature",
	"coinbase": "X-Cc-Webhook-Signature",
	"noop":     "X-Webhook-Signature",
}

// Options bounds the public upload surface.
type Options struct {
	UploadPerMinute int
	MaxUploadBytes  int64
}

type Server struct {
	conversions usecase.ConversionUseCase
	payments    usecase.PaymentUseCase
	users       usecase.UserUseCase
	stats       usecase.StatsUseCase
	auth        *AuthManager
	limiter     Limiter
	opts        Options
	log         *zerolog.Logger
}

func NewServer(
	conversions usecase.ConversionUseCase,
	payments usecase.PaymentUseCase,
	users usecase.UserUseCase,
	stats usecase.StatsUseCase,
	auth *AuthManager,
	limiter Limiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.UploadPerMinute <= 0 {
		opts.UploadPerMinute = 10
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	l := logger.With().Str("component", "APIServer").Logger()
	return &Server{
		conversions: conversions,
		payments:    payments,
		users:       users,
		stats:       stats,
		auth:        auth,
		limiter:     limiter,
		opts:        opts,
		log:         &l,
	}
}

// RegisterAPIV1 attaches the v1 routes. Paths are absolute, so mount at root.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/api/v1/auth/register", s.handleRegister)
	r.Post("/api/v1/auth/login", s.handleLogin)

	r.With(MaxBytes(s.opts.MaxUploadBytes), s.uploadLimit()).
		Post("/api/v1/conversions", s.handleUpload)
	r.Get("/api/v1/conversions/{id}", s.handleGetConversion)
	r.Get("/api/v1/conversions/{id}/download", s.handleDownload)

	r.Post("/api/v1/payments", s.handleCreateIntent)
	r.Get("/api/v1/payments/{id}", s.handleGetPayment)

	r.Post("/api/v1/webhooks/{provider}", s.handleWebhook)

	r.With(s.requireAdmin()).Get("/api/v1/stats", s.handleStats)
}

func (s *Server) uploadLimit() Middleware {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimit(s.limiter, redis.UploadKey, s.opts.UploadPerMinute, time.Minute, s.log)
}

func (s *Server) requireAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.auth.ParseFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !claims.IsAdmin {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// optionalUser recovers the account id when a valid token rides along.
// Anonymous requests are first-class; a bad token is just no token.
func (s *Server) optionalUser(r *http.Request) *string {
	if s.auth == nil {
		return nil
	}
	claims, err := s.auth.ParseFromRequest(r)
	if err != nil || claims.UserID == "" {
		return nil
	}
	id := claims.UserID
	return &id
}
