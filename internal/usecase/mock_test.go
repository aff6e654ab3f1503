//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Repositories
// =============================

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu    sync.Mutex
	data  map[string]*model.Payment
	byRef map[string]string // provider|ref -> id

	SaveFunc                  func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc              func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	FindByExternalRefFunc     func(ctx context.Context, tx repository.Tx, provider, ref string) (*model.Payment, error)
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, st *model.Settlement) (bool, error)
	ListPendingOlderThanFunc  func(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	ExpirePendingFunc         func(ctx context.Context, tx repository.Tx, now time.Time) (int64, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}, byRef: map[string]string{}}
}

func refKey(provider, ref string) string { return provider + "|" + ref }

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	if p.ExternalRef != "" {
		r.byRef[refKey(p.Provider, p.ExternalRef)] = p.ID
	}
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, provider, ref string) (*model.Payment, error) {
	if r.FindByExternalRefFunc != nil {
		return r.FindByExternalRefFunc(ctx, tx, provider, ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byRef[refKey(provider, ref)]; ok {
		cp := *r.data[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, st *model.Settlement) (bool, error) {
	if r.UpdateStatusIfPendingFunc != nil {
		return r.UpdateStatusIfPendingFunc(ctx, tx, id, status, st)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	if st != nil {
		p.PaidAt = st.PaidAt
		if st.ProviderData != nil {
			p.ProviderData = st.ProviderData
		}
		p.CardLast4 = st.CardLast4
		p.CardBrand = st.CardBrand
		p.ReceivedAmount = st.ReceivedAmount
		p.TxHash = st.TxHash
		p.Confirmations = st.Confirmations
	}
	return true, nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if r.ListPendingOlderThanFunc != nil {
		return r.ListPendingOlderThanFunc(ctx, tx, olderThan, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) ExpirePending(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	if r.ExpirePendingFunc != nil {
		return r.ExpirePendingFunc(ctx, tx, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.ExpiresAt.Before(now) {
			p.Status = model.PaymentStatusExpired
			p.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *MockPaymentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.PaymentStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.PaymentStatus]int{}
	for _, p := range r.data {
		out[p.Status]++
	}
	return out, nil
}

func (r *MockPaymentRepo) SumCompletedUSDCentsSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.data {
		if p.Status == model.PaymentStatusCompleted && p.PaidAt != nil && p.PaidAt.After(since) {
			sum += p.AmountUSDCents
		}
	}
	return sum, nil
}

// Stored returns a copy of the payment as persisted, for assertions.
func (r *MockPaymentRepo) Stored(id string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (r *MockPaymentRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Any returns a copy of an arbitrary stored payment, for single-row tests.
func (r *MockPaymentRepo) Any() *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		cp := *p
		return &cp
	}
	return nil
}

// ---- Mock ConversionRepository ----

type MockConversionRepo struct {
	mu            sync.Mutex
	data          map[string]*model.Conversion
	MarkPaidCalls int

	SaveFunc     func(ctx context.Context, tx repository.Tx, c *model.Conversion) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Conversion, error)
	MarkPaidFunc func(ctx context.Context, tx repository.Tx, id string) error
}

var _ repository.ConversionRepository = (*MockConversionRepo)(nil)

func NewMockConversionRepo() *MockConversionRepo {
	return &MockConversionRepo{data: map[string]*model.Conversion{}}
}

func (r *MockConversionRepo) Save(ctx context.Context, tx repository.Tx, c *model.Conversion) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.data[c.ID] = &cp
	return nil
}

func (r *MockConversionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversion, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.data[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockConversionRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string) error {
	if r.MarkPaidFunc != nil {
		return r.MarkPaidFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsPaid = true
	r.MarkPaidCalls++
	return nil
}

func (r *MockConversionRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data), nil
}

func (r *MockConversionRepo) CountPaid(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.data {
		if c.IsPaid {
			n++
		}
	}
	return n, nil
}

func (r *MockConversionRepo) Stored(id string) *model.Conversion {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.data[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// Any returns a copy of an arbitrary stored conversion, for single-row tests.
func (r *MockConversionRepo) Any() *model.Conversion {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.data {
		cp := *c
		return &cp
	}
	return nil
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User

	SaveFunc           func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByUsernameFunc func(ctx context.Context, tx repository.Tx, username string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.data[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	if r.FindByUsernameFunc != nil {
		return r.FindByUsernameFunc(ctx, tx, username)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.data {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data), nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs fn immediately with NoTX unless a test overrides it; the mocks
// behind it are themselves atomic, which is what the race tests rely on.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	NameVal  string
	Disabled bool
	Opened   []string // payment ids passed to OpenCharge
	Polled   []string // external refs passed to ChargeState

	OpenChargeFunc    func(ctx context.Context, p *model.Payment, c *model.Conversion) (*adapter.ProviderHandle, error)
	ChargeStateFunc   func(ctx context.Context, externalRef string) (adapter.ChargeState, []byte, error)
	VerifyWebhookFunc func(payload []byte, signature string) (*adapter.WebhookEvent, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string {
	if g.NameVal == "" {
		return "mockpay"
	}
	return g.NameVal
}

func (g *MockPaymentGateway) Enabled() bool { return !g.Disabled }

func (g *MockPaymentGateway) OpenCharge(ctx context.Context, p *model.Payment, c *model.Conversion) (*adapter.ProviderHandle, error) {
	g.mu.Lock()
	g.Opened = append(g.Opened, p.ID)
	g.mu.Unlock()
	if g.OpenChargeFunc != nil {
		return g.OpenChargeFunc(ctx, p, c)
	}
	return &adapter.ProviderHandle{
		Provider:     g.Name(),
		ExternalRef:  "ref-" + p.ID,
		ClientSecret: "secret-" + p.ID,
		CheckoutURL:  "https://pay.example/" + p.ID,
	}, nil
}

func (g *MockPaymentGateway) ChargeState(ctx context.Context, externalRef string) (adapter.ChargeState, []byte, error) {
	g.mu.Lock()
	g.Polled = append(g.Polled, externalRef)
	g.mu.Unlock()
	if g.ChargeStateFunc != nil {
		return g.ChargeStateFunc(ctx, externalRef)
	}
	return adapter.ChargeStatePending, nil, nil
}

func (g *MockPaymentGateway) VerifyWebhook(payload []byte, signature string) (*adapter.WebhookEvent, error) {
	if g.VerifyWebhookFunc != nil {
		return g.VerifyWebhookFunc(payload, signature)
	}
	return nil, domain.ErrWebhookAuth
}

func (g *MockPaymentGateway) PollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Polled)
}

// ---- Mock DocumentConverter ----

type MockConverter struct {
	Pages int
	Err   error

	ConvertFunc func(ctx context.Context, sourcePath, outputDir string) (*adapter.ConversionResult, error)
}

var _ adapter.DocumentConverter = (*MockConverter)(nil)

func (c *MockConverter) Convert(ctx context.Context, sourcePath, outputDir string) (*adapter.ConversionResult, error) {
	if c.ConvertFunc != nil {
		return c.ConvertFunc(ctx, sourcePath, outputDir)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return &adapter.ConversionResult{
		PDFPath:   filepath.Join(outputDir, base+".pdf"),
		PageCount: c.Pages,
	}, nil
}

// ---- Mock MetricSink ----

type SinkEvent struct {
	Name  string
	Value float64
	Meta  map[string]string
}

type MockSink struct {
	mu     sync.Mutex
	Events []SinkEvent
}

var _ adapter.MetricSink = (*MockSink)(nil)

func (s *MockSink) Emit(event string, value float64, meta map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, SinkEvent{Name: event, Value: value, Meta: meta})
}

func (s *MockSink) CountOf(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.Events {
		if e.Name == event {
			n++
		}
	}
	return n
}

// ---- Mock PasswordHasher ----

type MockHasher struct{}

var _ adapter.PasswordHasher = (*MockHasher)(nil)

func (MockHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (MockHasher) Compare(hash, plain string) error {
	if hash != "hashed:"+plain {
		return domain.ErrInvalidArgument
	}
	return nil
}
