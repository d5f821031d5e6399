package usecase

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
	"restaurant-pos-billing/internal/domain/ports/repository"
	"restaurant-pos-billing/internal/infra/logging"
)

// phonePattern accepts DRC numbers: +243/243 prefix or a local leading zero,
// followed by nine digits.
var phonePattern = regexp.MustCompile(`^(\+?243|0)[0-9]{9}$`)

var _ PaymentUseCase = (*paymentUC)(nil)

// MobileMoneyInitiation is what the UI needs after starting a mobile-money
// payment: whether to show the OTP prompt or redirect to the provider.
type MobileMoneyInitiation struct {
	TransactionRef string
	RequiresOTP    bool
	PaymentURL     string
	Provider       model.Provider
}

type PaymentUseCase interface {
	// Card rail.
	CreateCardCheckout(ctx context.Context, subscriptionID, successURL, cancelURL string) (*adapter.CheckoutSession, error)
	ConfirmCardPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) (*adapter.CardConfirmation, error)
	VerifyCardSession(ctx context.Context, sessionID string) (paid bool, err error)
	HandleCardEvent(ctx context.Context, ev *adapter.CardEvent) (bool, error)

	// Mobile-money rail.
	InitiateMobileMoney(ctx context.Context, subscriptionID, phoneNumber string, provider model.Provider) (*MobileMoneyInitiation, error)
	VerifyMobileMoney(ctx context.Context, provider model.Provider, externalRef string) (adapter.VerifyOutcome, error)
	ConfirmMobileMoneyOTP(ctx context.Context, subscriptionID, otpCode string) error

	// Webhook settle paths. Both are idempotent under re-delivery and report
	// whether this call was the one that changed state, so replays can be
	// told apart from first deliveries.
	CompleteTransaction(ctx context.Context, provider model.Provider, externalRef string, payload map[string]any) (bool, error)
	FailTransaction(ctx context.Context, provider model.Provider, externalRef string, payload map[string]any) (bool, error)
}

type paymentUC struct {
	subs            repository.SubscriptionRepository
	transactions    repository.TransactionRepository
	card            adapter.CardGateway
	mobile          map[model.Provider]adapter.MobileMoneyGateway
	defaultProvider model.Provider
	otp             *OTPManager
	activation      ActivationUseCase
	tm              repository.TransactionManager
	now             func() time.Time
	log             *zerolog.Logger
}

func NewPaymentUseCase(
	subs repository.SubscriptionRepository,
	transactions repository.TransactionRepository,
	card adapter.CardGateway,
	mobile []adapter.MobileMoneyGateway,
	defaultProvider model.Provider,
	otp *OTPManager,
	activation ActivationUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *paymentUC {
	reg := make(map[model.Provider]adapter.MobileMoneyGateway, len(mobile))
	for _, g := range mobile {
		reg[g.Name()] = g
	}
	return &paymentUC{
		subs:            subs,
		transactions:    transactions,
		card:            card,
		mobile:          reg,
		defaultProvider: defaultProvider,
		otp:             otp,
		activation:      activation,
		tm:              tm,
		now:             time.Now,
		log:             logger,
	}
}

// ---- Card rail ----

func (uc *paymentUC) CreateCardCheckout(ctx context.Context, subscriptionID, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	sub, err := uc.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}
	session, err := uc.card.CreateCheckoutSession(ctx, sub, successURL, cancelURL)
	if err != nil {
		// Includes the missing-credentials case: surfaced to the caller as a
		// configuration problem, never a crash. No ledger row is written.
		return nil, err
	}

	t := uc.newLedgerRow(sub, model.ProviderStripe, session.SessionID)
	t.Meta["checkout_url"] = session.URL
	if err := uc.transactions.Create(ctx, nil, t); err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", sub.ID).Str("session_id", session.SessionID).Msg("card checkout session created")
	return session, nil
}

func (uc *paymentUC) ConfirmCardPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) (*adapter.CardConfirmation, error) {
	sub, err := uc.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}
	conf, err := uc.card.ConfirmPaymentMethod(ctx, sub, paymentMethodID)
	if err != nil {
		return nil, err
	}
	if conf.RequiresAction {
		// 3-D Secure continuation happens client-side; the webhook settles it.
		t := uc.newLedgerRow(sub, model.ProviderStripe, conf.IntentID)
		if err := uc.transactions.Create(ctx, nil, t); err != nil {
			return nil, err
		}
		return conf, nil
	}
	if conf.Paid {
		t := uc.newLedgerRow(sub, model.ProviderStripe, conf.IntentID)
		if err := uc.transactions.Create(ctx, nil, t); err != nil && err != domain.ErrDuplicateTransaction {
			return nil, err
		}
		if _, err := uc.CompleteTransaction(ctx, model.ProviderStripe, conf.IntentID, nil); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

func (uc *paymentUC) VerifyCardSession(ctx context.Context, sessionID string) (bool, error) {
	paid, err := uc.card.VerifySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !paid {
		return false, nil
	}
	if _, err := uc.CompleteTransaction(ctx, model.ProviderStripe, sessionID, nil); err != nil {
		return true, err
	}
	return true, nil
}

// HandleCardEvent applies an authenticated gateway event. Signature checking
// already happened at the webhook boundary; by the time we are here the
// payload is trusted.
func (uc *paymentUC) HandleCardEvent(ctx context.Context, ev *adapter.CardEvent) (bool, error) {
	if ev == nil || !ev.Paid {
		return false, nil
	}
	return uc.CompleteTransaction(ctx, model.ProviderStripe, ev.SessionID, ev.Raw)
}

// ---- Mobile-money rail ----

func (uc *paymentUC) InitiateMobileMoney(ctx context.Context, subscriptionID, phoneNumber string, provider model.Provider) (*MobileMoneyInitiation, error) {
	if !phonePattern.MatchString(phoneNumber) {
		return nil, domain.ErrInvalidPhoneNumber
	}
	if provider == "" {
		provider = uc.defaultProvider
	}
	gw, ok := uc.mobile[provider]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}

	sub, err := uc.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}

	res, err := gw.RequestPayment(ctx, sub, phoneNumber)
	if err != nil {
		return nil, err
	}

	t := uc.newLedgerRow(sub, provider, res.ExternalRef)
	t.Meta["phone_number"] = phoneNumber
	if res.PaymentURL != "" {
		t.Meta["payment_url"] = res.PaymentURL
	}
	if err := uc.transactions.Create(ctx, nil, t); err != nil {
		return nil, err
	}

	if res.RequiresOTP {
		if _, err := uc.otp.Generate(ctx, nil, sub); err != nil {
			return nil, err
		}
	}
	uc.log.Info().Str("subscription_id", sub.ID).Str("provider", string(provider)).
		Str("phone", logging.Redact(phoneNumber)).
		Str("external_ref", res.ExternalRef).Bool("requires_otp", res.RequiresOTP).
		Msg("mobile money payment initiated")
	return &MobileMoneyInitiation{
		TransactionRef: res.ExternalRef,
		RequiresOTP:    res.RequiresOTP,
		PaymentURL:     res.PaymentURL,
		Provider:       provider,
	}, nil
}

func (uc *paymentUC) VerifyMobileMoney(ctx context.Context, provider model.Provider, externalRef string) (adapter.VerifyOutcome, error) {
	gw, ok := uc.mobile[provider]
	if !ok {
		return adapter.VerifyPending, domain.ErrUnknownProvider
	}
	outcome, err := gw.VerifyPayment(ctx, externalRef)
	if err != nil {
		return adapter.VerifyPending, err
	}
	switch outcome {
	case adapter.VerifyCompleted:
		if _, err := uc.CompleteTransaction(ctx, provider, externalRef, nil); err != nil {
			return outcome, err
		}
	case adapter.VerifyFailed:
		if _, err := uc.FailTransaction(ctx, provider, externalRef, nil); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// ConfirmMobileMoneyOTP is the user-facing fallback when the provider webhook
// has not landed yet: check the local code, push it to the provider's confirm
// endpoint, then settle.
func (uc *paymentUC) ConfirmMobileMoneyOTP(ctx context.Context, subscriptionID, otpCode string) error {
	sub, err := uc.subs.FindByID(ctx, nil, subscriptionID)
	if err != nil {
		return err
	}
	if len(otpCode) != otpLength {
		return domain.ErrInvalidOTP
	}
	if !uc.otp.Verify(sub, otpCode) {
		if sub.OTPCode != nil && sub.OTPExpiresAt != nil && uc.now().After(*sub.OTPExpiresAt) {
			return domain.ErrOTPExpired
		}
		return domain.ErrInvalidOTP
	}

	// The newest pending attempt wins: provider switching mid-flight can
	// leave pending rows on both providers, and only the latest one matches
	// the code the user just received.
	var (
		picked         *model.PaymentTransaction
		pickedProvider model.Provider
	)
	for provider := range uc.mobile {
		t, err := uc.transactions.FindLatestPendingBySubscription(ctx, nil, sub.ID, provider)
		if err == domain.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if picked == nil || t.CreatedAt.After(picked.CreatedAt) {
			picked, pickedProvider = t, provider
		}
	}
	if picked == nil {
		return domain.ErrNotFound
	}
	if err := uc.mobile[pickedProvider].ConfirmPayment(ctx, picked.ExternalRef, otpCode); err != nil {
		return err
	}
	_, err = uc.CompleteTransaction(ctx, pickedProvider, picked.ExternalRef, nil)
	return err
}

// ---- Settlement ----

// CompleteTransaction performs the exactly-once transition of a ledger row to
// completed, and in the same storage transaction applies the activation side
// effects. The conditional update on the ledger row is the arbiter when a
// synchronous verify races the asynchronous webhook; the loser sees zero
// affected rows, reports changed=false and walks away.
func (uc *paymentUC) CompleteTransaction(ctx context.Context, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	defer logging.TraceDuration(uc.log, "PaymentUC.CompleteTransaction")()

	var changed bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := uc.transactions.FindByProviderRef(ctx, tx, provider, externalRef)
		if err != nil {
			return err
		}
		changed, err = uc.transactions.MarkCompleted(ctx, tx, provider, externalRef, payload)
		if err != nil {
			return err
		}
		if !changed {
			uc.log.Debug().Str("provider", string(provider)).Str("external_ref", externalRef).
				Msg("transaction already completed, skipping")
			return nil
		}
		return uc.activation.ConfirmPayment(ctx, tx, t.SubscriptionID, externalRef)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (uc *paymentUC) FailTransaction(ctx context.Context, provider model.Provider, externalRef string, payload map[string]any) (bool, error) {
	var changed bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := uc.transactions.FindByProviderRef(ctx, tx, provider, externalRef); err != nil {
			return err
		}
		var err error
		changed, err = uc.transactions.MarkFailed(ctx, tx, provider, externalRef, payload)
		return err
	})
	if err != nil {
		return false, err
	}
	if changed {
		uc.log.Warn().Str("provider", string(provider)).Str("external_ref", externalRef).Msg("transaction marked failed")
	}
	return changed, nil
}

func (uc *paymentUC) newLedgerRow(sub *model.Subscription, provider model.Provider, externalRef string) *model.PaymentTransaction {
	now := uc.now()
	return &model.PaymentTransaction{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		Provider:       provider,
		ExternalRef:    externalRef,
		Status:         model.TransactionStatusPending,
		Amount:         sub.MonthlyAmount,
		Currency:       sub.Currency,
		Meta:           map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
