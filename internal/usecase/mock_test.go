//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"laundry-billing/internal/domain"
	"laundry-billing/internal/domain/model"
	"laundry-billing/internal/domain/ports/adapter"
	"laundry-billing/internal/domain/ports/repository"
	"laundry-billing/internal/infra/i18n"
	"laundry-billing/internal/usecase"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tptr(t time.Time) *time.Time { return &t }

func sptr(s string) *string { return &s }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestComposer(t *testing.T, portalURL string) (*usecase.MessageComposer, error) {
	t.Helper()
	catalog, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return nil, err
	}
	return usecase.NewMessageComposer(portalURL, catalog)
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// txParticipant is implemented by mocks that can roll back their state.
type txParticipant interface {
	snapshot() (restore func())
}

// =============================
// Repositories
// =============================

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription

	ListByStatusFunc    func(ctx context.Context, status model.SubscriptionStatus, afterID string, limit int) ([]*model.Subscription, error)
	ApplyTransitionFunc func(ctx context.Context, id string, t model.Transition) (bool, error)
	ReactivateFunc      func(ctx context.Context, id string, periodEnd, now time.Time) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo(subs ...*model.Subscription) *MockSubscriptionRepo {
	r := &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
	for _, s := range subs {
		cp := *s
		r.data[s.ID] = &cp
	}
	return r
}

func (r *MockSubscriptionRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]model.Subscription, len(r.data))
	for k, v := range r.data {
		saved[k] = *v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.data = map[string]*model.Subscription{}
		for k, v := range saved {
			v := v
			r.data[k] = &v
		}
	}
}

// Get returns a copy of the stored row, or nil.
func (r *MockSubscriptionRepo) Get(id string) *model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.data[sub.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if s := r.Get(id); s != nil {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindByBranch(ctx context.Context, tx repository.Tx, branchID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.BranchID == branchID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus, afterID string, limit int) ([]*model.Subscription, error) {
	if r.ListByStatusFunc != nil {
		return r.ListByStatusFunc(ctx, status, afterID, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.Status == status && s.ID > afterID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockSubscriptionRepo) ApplyTransition(ctx context.Context, tx repository.Tx, id string, t model.Transition) (bool, error) {
	if r.ApplyTransitionFunc != nil {
		return r.ApplyTransitionFunc(ctx, id, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok || s.Status != t.From {
		return false, nil
	}
	s.Apply(t)
	return true, nil
}

func (r *MockSubscriptionRepo) Reactivate(ctx context.Context, tx repository.Tx, id string, periodEnd, now time.Time) error {
	if r.ReactivateFunc != nil {
		return r.ReactivateFunc(ctx, id, periodEnd, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = model.SubscriptionStatusActive
	s.CurrentPeriodEnd = &periodEnd
	s.PastDueSince = nil
	s.UpdatedAt = now
	return nil
}

func (r *MockSubscriptionRepo) Cancel(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if s.Status == model.SubscriptionStatusCancelled {
		return false, nil
	}
	s.Status = model.SubscriptionStatusCancelled
	s.UpdatedAt = now
	return true, nil
}

func (r *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	for _, s := range r.data {
		out[s.Status]++
	}
	return out, nil
}

// ---- Mock PlanRepository ----

type MockPlanRepo struct {
	mu    sync.Mutex
	data  map[string]*model.Plan
	calls int

	FindByIDFunc func(ctx context.Context, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo(plans ...*model.Plan) *MockPlanRepo {
	r := &MockPlanRepo{data: map[string]*model.Plan{}}
	for _, p := range plans {
		cp := *p
		r.data[p.ID] = &cp
	}
	return r
}

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Plan, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment

	UpdateReviewFunc func(ctx context.Context, p *model.Payment) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo(payments ...*model.Payment) *MockPaymentRepo {
	r := &MockPaymentRepo{data: map[string]*model.Payment{}}
	for _, p := range payments {
		cp := *p
		r.data[p.ID] = &cp
	}
	return r
}

func (r *MockPaymentRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]model.Payment, len(r.data))
	for k, v := range r.data {
		saved[k] = *v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.data = map[string]*model.Payment{}
		for k, v := range saved {
			v := v
			r.data[k] = &v
		}
	}
}

func (r *MockPaymentRepo) Get(id string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if p := r.Get(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) ListPendingReview(ctx context.Context, tx repository.Tx, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.ReceiptRef != nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPaymentRepo) UpdateReviewIfPending(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	if r.UpdateReviewFunc != nil {
		return r.UpdateReviewFunc(ctx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[p.ID]
	if !ok || cur.Status != model.PaymentStatusPending {
		return false, nil
	}
	cp := *p
	r.data[p.ID] = &cp
	return true, nil
}

// ---- Mock NotificationLogRepository ----

type MockNotificationLogRepo struct {
	mu      sync.Mutex
	records []*model.Notification

	ExistsFunc func(ctx context.Context, subscriptionID string, kind model.NotificationType, since time.Time) (bool, error)
	CreateErr  error
}

var _ repository.NotificationLogRepository = (*MockNotificationLogRepo)(nil)

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{}
}

func (r *MockNotificationLogRepo) Create(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.records = append(r.records, &cp)
	return nil
}

func (r *MockNotificationLogRepo) MarkSent(ctx context.Context, tx repository.Tx, id string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.records {
		if n.ID == id {
			n.Status = model.NotificationStatusSent
			n.SentAt = &sentAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockNotificationLogRepo) ExistsSince(ctx context.Context, tx repository.Tx, subscriptionID string, kind model.NotificationType, since time.Time) (bool, error) {
	if r.ExistsFunc != nil {
		return r.ExistsFunc(ctx, subscriptionID, kind, since)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.records {
		if n.SubscriptionID == subscriptionID && n.Type == kind && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// Records returns copies of the stored records filtered by subscription ("" for all).
func (r *MockNotificationLogRepo) Records(subscriptionID string) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.records {
		if subscriptionID == "" || n.SubscriptionID == subscriptionID {
			out = append(out, *n)
		}
	}
	return out
}

// ---- Mock DirectoryRepository ----

type MockDirectoryRepo struct {
	mu       sync.Mutex
	contacts map[string]*model.BranchContact
	Err      error
}

var _ repository.DirectoryRepository = (*MockDirectoryRepo)(nil)

func NewMockDirectoryRepo() *MockDirectoryRepo {
	return &MockDirectoryRepo{contacts: map[string]*model.BranchContact{}}
}

func (r *MockDirectoryRepo) Add(c *model.BranchContact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.Branch.ID] = c
}

func (r *MockDirectoryRepo) BranchContact(ctx context.Context, tx repository.Tx, branchID string) (*model.BranchContact, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[branchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	participants []txParticipant
	commits      int
	rollbacks    int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// NewMockTxManager rolls back the given participants when fn fails.
func NewMockTxManager(participants ...txParticipant) *MockTxManager {
	return &MockTxManager{participants: participants}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	restores := make([]func(), 0, len(m.participants))
	for _, p := range m.participants {
		restores = append(restores, p.snapshot())
	}
	if err := fn(ctx, repository.NoTX); err != nil {
		for _, restore := range restores {
			restore()
		}
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock Mailer ----

type MockMailer struct {
	mu   sync.Mutex
	sent []adapter.Email

	SendFunc func(ctx context.Context, msg adapter.Email) (string, error)
}

var _ adapter.Mailer = (*MockMailer)(nil)

func (m *MockMailer) Name() string { return "mock" }

func (m *MockMailer) Send(ctx context.Context, msg adapter.Email) (string, error) {
	if m.SendFunc != nil {
		if id, err := m.SendFunc(ctx, msg); err != nil {
			return id, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return uuid.NewString(), nil
}

func (m *MockMailer) Sent() []adapter.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapter.Email(nil), m.sent...)
}

// SentTo counts messages addressed to addr.
func (m *MockMailer) SentTo(addr string) int {
	n := 0
	for _, e := range m.Sent() {
		if strings.Contains(strings.Join(e.To, ","), addr) {
			n++
		}
	}
	return n
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrRunInProgress
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return domain.ErrInvalidArgument
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
