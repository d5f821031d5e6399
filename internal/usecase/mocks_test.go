//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memTxManager runs the function inline. The in-memory repos are guarded by
// their own mutexes, so there is nothing transactional to emulate beyond
// passing a non-nil handle through.
type memTxManager struct{}

type memTx struct{}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, memTx{})
}

// memRestaurantRepo is a small in-memory implementation used by unit tests.
type memRestaurantRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Restaurant
}

func newMemRestaurantRepo() *memRestaurantRepo {
	return &memRestaurantRepo{store: make(map[string]*model.Restaurant)}
}

func (m *memRestaurantRepo) Save(ctx context.Context, _ repository.Tx, r *model.Restaurant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *memRestaurantRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Restaurant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRestaurantRepo) SetCurrentSubscription(ctx context.Context, _ repository.Tx, restaurantID, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[restaurantID]
	if !ok {
		return domain.ErrNotFound
	}
	sid := subscriptionID
	r.CurrentSubscriptionID = &sid
	return nil
}

func (m *memRestaurantRepo) SetActive(ctx context.Context, _ repository.Tx, restaurantID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[restaurantID]
	if !ok {
		return domain.ErrNotFound
	}
	r.Active = active
	return nil
}

// memUserRepo holds POS accounts keyed by id.
type memUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, _ repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindAdminByRestaurant(ctx context.Context, _ repository.Tx, restaurantID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var match *model.User
	for _, u := range m.store {
		if u.RestaurantID != restaurantID || u.Role != model.UserRoleAdmin {
			continue
		}
		if match == nil || u.CreatedAt.Before(match.CreatedAt) {
			match = u
		}
	}
	if match == nil {
		return nil, domain.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (m *memUserRepo) SetActive(ctx context.Context, _ repository.Tx, userID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Active = active
	return nil
}

// memSubscriptionRepo mirrors the conditional-update semantics of the real
// repo, in particular that Confirm only fires once.
type memSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, _ repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) FindCurrentByRestaurant(ctx context.Context, _ repository.Tx, restaurantID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rows []*model.Subscription
	for _, s := range m.store {
		if s.RestaurantID == restaurantID {
			rows = append(rows, s)
		}
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
	})
	cp := *rows[0]
	return &cp, nil
}

func (m *memSubscriptionRepo) SetPaymentMethod(ctx context.Context, _ repository.Tx, id string, method model.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.PaymentMethod = method
	s.PaymentState = model.PaymentStatePending
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memSubscriptionRepo) SetOTP(ctx context.Context, _ repository.Tx, id string, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.OTPCode = &code
	s.OTPExpiresAt = &expiresAt
	return nil
}

func (m *memSubscriptionRepo) ClearOTP(ctx context.Context, _ repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.OTPCode, s.OTPExpiresAt = nil, nil
	return nil
}

func (m *memSubscriptionRepo) Confirm(ctx context.Context, _ repository.Tx, id, transactionRef string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if s.PaymentState == model.PaymentStateConfirmed {
		return false, nil
	}
	s.PaymentState = model.PaymentStateConfirmed
	s.Status = model.SubscriptionStatusActive
	s.Active = true
	ref := transactionRef
	s.TransactionRef = &ref
	p := paidAt
	s.PaidAt = &p
	if s.StartAt == nil {
		s.StartAt = &p
	}
	if s.EndAt == nil {
		end := p.AddDate(0, 1, 0)
		s.EndAt = &end
	}
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *memSubscriptionRepo) Reject(ctx context.Context, _ repository.Tx, id, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.PaymentState != model.PaymentStatePending {
		return domain.ErrPaymentNotPending
	}
	s.PaymentState = model.PaymentStateRejected
	s.Status = model.SubscriptionStatusRejected
	s.Active = false
	n := notes
	s.Notes = &n
	return nil
}

func (m *memSubscriptionRepo) SetStatus(ctx context.Context, _ repository.Tx, id string, status model.SubscriptionStatus, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	s.Active = active
	return nil
}

// memTransactionRepo enforces (provider, external_ref) uniqueness and the
// single pending -> completed transition like the SQL repo does.
type memTransactionRepo struct {
	mu   sync.Mutex
	rows []*model.PaymentTransaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{}
}

func (m *memTransactionRepo) Create(ctx context.Context, _ repository.Tx, t *model.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Provider == t.Provider && r.ExternalRef == t.ExternalRef {
			return domain.ErrDuplicateTransaction
		}
	}
	cp := *t
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memTransactionRepo) FindByProviderRef(ctx context.Context, _ repository.Tx, provider model.Provider, externalRef string) (*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Provider == provider && r.ExternalRef == externalRef {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTransactionRepo) FindLatestPendingBySubscription(ctx context.Context, _ repository.Tx, subscriptionID string, provider model.Provider) (*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var match *model.PaymentTransaction
	for _, r := range m.rows {
		if r.SubscriptionID != subscriptionID || r.Provider != provider || r.Status != model.TransactionStatusPending {
			continue
		}
		if match == nil || r.CreatedAt.After(match.CreatedAt) {
			match = r
		}
	}
	if match == nil {
		return nil, domain.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (m *memTransactionRepo) MarkCompleted(ctx context.Context, _ repository.Tx, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Provider != provider || r.ExternalRef != externalRef {
			continue
		}
		if r.Status == model.TransactionStatusCompleted {
			return false, nil
		}
		r.Status = model.TransactionStatusCompleted
		now := time.Now()
		r.ProcessedAt = &now
		if payload != nil {
			if r.Meta == nil {
				r.Meta = map[string]any{}
			}
			r.Meta["webhook_payload"] = payload
		}
		return true, nil
	}
	return false, domain.ErrNotFound
}

func (m *memTransactionRepo) MarkFailed(ctx context.Context, _ repository.Tx, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Provider != provider || r.ExternalRef != externalRef {
			continue
		}
		if r.Status != model.TransactionStatusPending {
			return false, nil
		}
		r.Status = model.TransactionStatusFailed
		return true, nil
	}
	return false, domain.ErrNotFound
}

func (m *memTransactionRepo) ListPendingOlderThan(ctx context.Context, _ repository.Tx, cutoff time.Time, limit int) ([]*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentTransaction
	for _, r := range m.rows {
		if r.Status != model.TransactionStatusPending || !r.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *r
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeCardGateway scripts Stripe responses.
type fakeCardGateway struct {
	session    *adapter.CheckoutSession
	sessionErr error
	paid       bool
	verifyErr  error
	conf       *adapter.CardConfirmation
	confErr    error
}

func (f *fakeCardGateway) Name() model.Provider { return model.ProviderStripe }

func (f *fakeCardGateway) CreateCheckoutSession(ctx context.Context, sub *model.Subscription, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeCardGateway) VerifySession(ctx context.Context, sessionID string) (bool, error) {
	return f.paid, f.verifyErr
}

func (f *fakeCardGateway) ConfirmPaymentMethod(ctx context.Context, sub *model.Subscription, paymentMethodID string) (*adapter.CardConfirmation, error) {
	if f.confErr != nil {
		return nil, f.confErr
	}
	return f.conf, nil
}

func (f *fakeCardGateway) ParseWebhook(payload []byte, signatureHeader string) (*adapter.CardEvent, error) {
	return nil, domain.ErrInvalidSignature
}

// fakeMobileGateway scripts a mobile-money provider.
type fakeMobileGateway struct {
	name       model.Provider
	initiate   *adapter.InitiateResult
	initErr    error
	outcome    adapter.VerifyOutcome
	verifyErr  error
	confirmErr error

	confirmed []string // external refs confirmed with an OTP
}

func (f *fakeMobileGateway) Name() model.Provider { return f.name }

func (f *fakeMobileGateway) RequestPayment(ctx context.Context, sub *model.Subscription, phoneNumber string) (*adapter.InitiateResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.initiate, nil
}

func (f *fakeMobileGateway) VerifyPayment(ctx context.Context, externalRef string) (adapter.VerifyOutcome, error) {
	return f.outcome, f.verifyErr
}

func (f *fakeMobileGateway) ConfirmPayment(ctx context.Context, externalRef, otpCode string) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, externalRef)
	return nil
}
