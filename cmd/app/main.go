package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pdf-conversion-billing/internal/config"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
	"pdf-conversion-billing/internal/infra/adapters/convert"
	payAdapters "pdf-conversion-billing/internal/infra/adapters/payment"
	"pdf-conversion-billing/internal/infra/api"
	pg "pdf-conversion-billing/internal/infra/db/postgres"
	"pdf-conversion-billing/internal/infra/logging"
	"pdf-conversion-billing/internal/infra/metrics"
	red "pdf-conversion-billing/internal/infra/redis"
	"pdf-conversion-billing/internal/infra/sched"
	"pdf-conversion-billing/internal/infra/security"
	"pdf-conversion-billing/internal/infra/worker"
	"pdf-conversion-billing/internal/usecase"
)

// Populated by -ldflags at release builds.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop providers when credentials are missing)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	convRepo := pg.NewConversionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	metricRepo := pg.NewMetricRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Metric sink ----
	workerPool := worker.NewPool(cfg.Worker.MetricWorkers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()
	sink := worker.NewMetricSink(workerPool, metricRepo, logger)

	// ---- Use cases ----
	unitPrice, err := decimal.NewFromString(cfg.Pricing.PricePerPage)
	if err != nil {
		logger.Fatal().Err(err).Str("price_per_page", cfg.Pricing.PricePerPage).Msg("invalid pricing config")
	}
	pricing := usecase.NewPricingUseCase(unitPrice, cfg.Pricing.FreePageLimit, logger)
	conversionUC := usecase.NewConversionUseCase(
		convRepo, buildConverter(cfg, locker), pricing, sink,
		cfg.Storage.UploadDir, cfg.Storage.OutputDir, logger,
	)
	paymentUC := usecase.NewPaymentUseCase(
		payRepo, convRepo, pricing, buildGateways(cfg, logger), tm, sink,
		usecase.PaymentOptions{
			Currency:    cfg.Pricing.Currency,
			IntentTTL:   cfg.Payments.IntentTTL,
			PollTimeout: cfg.Payments.PollTimeout,
		},
		logger,
	)
	userUC := usecase.NewUserUseCase(userRepo, security.NewBcryptHasher(), logger)
	statsUC := usecase.NewStatsUseCase(userRepo, convRepo, payRepo, logger)

	// ---- HTTP ----
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		logger.Warn().Msg("auth.jwt_secret not set; falling back to dev key (INSECURE)")
		jwtSecret = "0123456789abcdef0123456789abcdef"
	}
	authMgr := api.NewAuthManager(jwtSecret, !cfg.Runtime.Dev, cfg.Auth.TokenTTL)
	srv := api.NewServer(conversionUC, paymentUC, userUC, statsUC, authMgr, rateLimiter, api.Options{
		UploadPerMinute: cfg.RateLimit.UploadPerMinute,
		MaxUploadBytes:  cfg.Storage.MaxUploadBytes,
	}, logger)

	r := chi.NewRouter()
	// Requests carrying an upload block on the renderer, so the HTTP budget
	// must outlast the converter budget.
	r.Use(api.TraceID(), api.RequestLog(logger), api.Recover(logger), api.Timeout(cfg.Converter.Timeout+30*time.Second))
	api.RegisterAPIV1(r, srv)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background workers ----
	reconciler := sched.NewPaymentReconciler(
		paymentUC,
		cfg.Payments.Reconcile.Interval,
		cfg.Payments.Reconcile.StaleAfter,
		cfg.Payments.Reconcile.Batch,
		logger,
	)
	go reconciler.Start(ctx)

	expiry := sched.NewPaymentExpiryWorker(time.Minute, paymentUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := server.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}

// buildGateways registers a rail per configured provider credential. Dev mode
// without credentials gets the in-memory noop gateway on every method so the
// payment flow stays exercisable end to end.
func buildGateways(cfg *config.Config, logger *zerolog.Logger) map[model.PaymentMethod]adapter.PaymentGateway {
	cryptoMethods := []model.PaymentMethod{
		model.PaymentMethodBitcoin,
		model.PaymentMethodEthereum,
		model.PaymentMethodUSDT,
		model.PaymentMethodOtherCrypto,
	}

	gs := map[model.PaymentMethod]adapter.PaymentGateway{}
	if cfg.Payments.Stripe.SecretKey != "" {
		gs[model.PaymentMethodCreditCard] = payAdapters.NewStripeGateway(
			cfg.Payments.Stripe.SecretKey,
			cfg.Payments.Stripe.PublishableKey,
			cfg.Payments.Stripe.WebhookSecret,
		)
		logger.Info().Msg("card payments: stripe")
	}
	if cfg.Payments.Coinbase.APIKey != "" {
		cb := payAdapters.NewCoinbaseGateway(
			cfg.Payments.Coinbase.APIKey,
			cfg.Payments.Coinbase.WebhookSecret,
			cfg.Server.BaseURL,
		)
		for _, m := range cryptoMethods {
			gs[m] = cb
		}
		logger.Info().Msg("crypto payments: coinbase commerce")
	}
	if len(gs) == 0 && cfg.Runtime.Dev {
		noop := payAdapters.NewNoopPaymentGateway()
		gs[model.PaymentMethodCreditCard] = noop
		for _, m := range cryptoMethods {
			gs[m] = noop
		}
		logger.Warn().Msg("no payment provider configured; noop gateway active")
	}
	if len(gs) == 0 {
		logger.Warn().Msg("no payment provider configured; paid conversions cannot be settled")
	}
	return gs
}

func buildConverter(cfg *config.Config, locker red.Locker) adapter.DocumentConverter {
	if cfg.Converter.Binary == "" {
		if cfg.Runtime.Dev {
			return convert.NewNoopConverter(1)
		}
		cfg.Converter.Binary = "unoconv"
	}
	return convert.NewUnoconvConverter(cfg.Converter, locker)
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
