//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
	"restaurant-pos-billing/internal/domain/ports/repository"
	"restaurant-pos-billing/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// stubSubscriptionUC scripts the subscription use case per test.
type stubSubscriptionUC struct {
	sub *model.Subscription
	err error

	suspended   []string
	reactivated []string
}

var _ usecase.SubscriptionUseCase = (*stubSubscriptionUC)(nil)

func (s *stubSubscriptionUC) Create(ctx context.Context, restaurantID string, plan model.Plan, method model.PaymentMethod) (*model.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionUC) Current(ctx context.Context, restaurantID string) (*model.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionUC) ChangePaymentMethod(ctx context.Context, subscriptionID string, method model.PaymentMethod) (*model.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionUC) ResendOTP(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionUC) Suspend(ctx context.Context, subscriptionID string) error {
	s.suspended = append(s.suspended, subscriptionID)
	return s.err
}

func (s *stubSubscriptionUC) Reactivate(ctx context.Context, subscriptionID string) error {
	s.reactivated = append(s.reactivated, subscriptionID)
	return s.err
}

// stubPaymentUC records settle calls so webhook tests can assert routing.
type stubPaymentUC struct {
	initiation *usecase.MobileMoneyInitiation
	session    *adapter.CheckoutSession
	conf       *adapter.CardConfirmation
	paid       bool
	replayed   bool // settle calls report no state change
	err        error

	completed []string // "provider/ref"
	failed    []string
	events    []*adapter.CardEvent
}

var _ usecase.PaymentUseCase = (*stubPaymentUC)(nil)

func (s *stubPaymentUC) CreateCardCheckout(ctx context.Context, subscriptionID, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	return s.session, s.err
}

func (s *stubPaymentUC) ConfirmCardPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) (*adapter.CardConfirmation, error) {
	return s.conf, s.err
}

func (s *stubPaymentUC) VerifyCardSession(ctx context.Context, sessionID string) (bool, error) {
	return s.paid, s.err
}

func (s *stubPaymentUC) HandleCardEvent(ctx context.Context, ev *adapter.CardEvent) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.events = append(s.events, ev)
	return ev != nil && ev.Paid, nil
}

func (s *stubPaymentUC) InitiateMobileMoney(ctx context.Context, subscriptionID, phoneNumber string, provider model.Provider) (*usecase.MobileMoneyInitiation, error) {
	return s.initiation, s.err
}

func (s *stubPaymentUC) VerifyMobileMoney(ctx context.Context, provider model.Provider, externalRef string) (adapter.VerifyOutcome, error) {
	return adapter.VerifyPending, s.err
}

func (s *stubPaymentUC) ConfirmMobileMoneyOTP(ctx context.Context, subscriptionID, otpCode string) error {
	return s.err
}

func (s *stubPaymentUC) CompleteTransaction(ctx context.Context, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.completed = append(s.completed, string(provider)+"/"+externalRef)
	return !s.replayed, nil
}

func (s *stubPaymentUC) FailTransaction(ctx context.Context, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.failed = append(s.failed, string(provider)+"/"+externalRef)
	return !s.replayed, nil
}

// stubActivationUC tracks manual cash decisions.
type stubActivationUC struct {
	err       error
	validated []string
	rejected  []string
	actors    []*model.User
}

var _ usecase.ActivationUseCase = (*stubActivationUC)(nil)

func (s *stubActivationUC) ConfirmPayment(ctx context.Context, tx repository.Tx, subscriptionID, transactionRef string) error {
	return s.err
}

func (s *stubActivationUC) ValidateCash(ctx context.Context, subscriptionID string, actor *model.User) error {
	if actor == nil || !actor.IsSuperAdmin() {
		return domain.ErrUnauthorized
	}
	s.validated = append(s.validated, subscriptionID)
	s.actors = append(s.actors, actor)
	return s.err
}

func (s *stubActivationUC) RejectCash(ctx context.Context, subscriptionID string, actor *model.User, notes string) error {
	if actor == nil || !actor.IsSuperAdmin() {
		return domain.ErrUnauthorized
	}
	s.rejected = append(s.rejected, subscriptionID)
	return s.err
}

// stubCardGateway lets webhook tests script signature verification.
type stubCardGateway struct {
	event *adapter.CardEvent
	err   error
}

var _ adapter.CardGateway = (*stubCardGateway)(nil)

func (s *stubCardGateway) Name() model.Provider { return model.ProviderStripe }

func (s *stubCardGateway) CreateCheckoutSession(ctx context.Context, sub *model.Subscription, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	return nil, domain.ErrMissingCredentials
}

func (s *stubCardGateway) VerifySession(ctx context.Context, sessionID string) (bool, error) {
	return false, nil
}

func (s *stubCardGateway) ConfirmPaymentMethod(ctx context.Context, sub *model.Subscription, paymentMethodID string) (*adapter.CardConfirmation, error) {
	return nil, domain.ErrMissingCredentials
}

func (s *stubCardGateway) ParseWebhook(payload []byte, signatureHeader string) (*adapter.CardEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.event != nil {
		return s.event, nil
	}
	var ev adapter.CardEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// noopLocker always grants the lock.
type noopLocker struct{ denied bool }

func (l *noopLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.denied {
		return "", domain.ErrLockNotAcquired
	}
	return "token", nil
}

func (l *noopLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// stubLimiter scripts the rate limiter.
type stubLimiter struct {
	allow bool
	err   error
	calls int
}

func (l *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.calls++
	return l.allow, l.err
}

type serverFixture struct {
	subs       *stubSubscriptionUC
	payments   *stubPaymentUC
	activation *stubActivationUC
	card       *stubCardGateway
	locker     *noopLocker
	limiter    *stubLimiter
	srv        *Server
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		subs:       &stubSubscriptionUC{},
		payments:   &stubPaymentUC{},
		activation: &stubActivationUC{},
		card:       &stubCardGateway{},
		locker:     &noopLocker{},
		limiter:    &stubLimiter{allow: true},
	}
	auth := NewAuthManager("test-secret", false, "", 30*time.Minute)
	f.srv = NewServer(
		f.subs, f.payments, f.activation, f.card,
		auth,
		"test-api-key", "hook-token",
		"https://pos.example/ok", "https://pos.example/ko",
		f.locker, f.limiter, testLogger(),
	)
	return f
}
