package usecase

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase applies the side effects of a settled (or refused)
// payment: the subscription flips state, the restaurant and its admin account
// come alive. Every entry point runs as one storage transaction; a
// half-applied confirmation (subscription active, admin still locked) is an
// invariant violation.
type ActivationUseCase interface {
	// ConfirmPayment is idempotent: confirming an already-confirmed
	// subscription changes nothing and is not an error, so racing verify and
	// webhook paths can both call it safely.
	ConfirmPayment(ctx context.Context, tx repository.Tx, subscriptionID, transactionRef string) error
	// ValidateCash is the manual-approval analogue of ConfirmPayment,
	// restricted to superadmins. It records a completed cash ledger row with
	// an internally generated reference.
	ValidateCash(ctx context.Context, subscriptionID string, actor *model.User) error
	// RejectCash refuses a pending cash payment with reviewer notes. It blocks
	// activation but does not deactivate the restaurant.
	RejectCash(ctx context.Context, subscriptionID string, actor *model.User, notes string) error
}

type activationUC struct {
	subs         repository.SubscriptionRepository
	transactions repository.TransactionRepository
	restaurants  repository.RestaurantRepository
	users        repository.UserRepository
	tm           repository.TransactionManager
	now          func() time.Time
	log          *zerolog.Logger
}

func NewActivationUseCase(
	subs repository.SubscriptionRepository,
	transactions repository.TransactionRepository,
	restaurants repository.RestaurantRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *activationUC {
	return &activationUC{
		subs:         subs,
		transactions: transactions,
		restaurants:  restaurants,
		users:        users,
		tm:           tm,
		now:          time.Now,
		log:          logger,
	}
}

// ConfirmPayment must be called with a live transaction handle when the caller
// has other writes to apply atomically (the webhook path marks the ledger row
// completed in the same tx); with tx == nil it opens its own.
func (uc *activationUC) ConfirmPayment(ctx context.Context, tx repository.Tx, subscriptionID, transactionRef string) error {
	if tx != nil {
		return uc.confirmInTx(ctx, tx, subscriptionID, transactionRef)
	}
	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return uc.confirmInTx(ctx, tx, subscriptionID, transactionRef)
	})
}

func (uc *activationUC) confirmInTx(ctx context.Context, tx repository.Tx, subscriptionID, transactionRef string) error {
	sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
	if err != nil {
		return err
	}
	changed, err := uc.subs.Confirm(ctx, tx, sub.ID, transactionRef, uc.now())
	if err != nil {
		return err
	}
	if !changed {
		// Already confirmed by the other racing path. Nothing left to do.
		uc.log.Debug().Str("subscription_id", subscriptionID).Msg("confirm payment: already confirmed, no-op")
		return nil
	}

	if err := uc.restaurants.SetActive(ctx, tx, sub.RestaurantID, true); err != nil {
		return err
	}
	admin, err := uc.users.FindAdminByRestaurant(ctx, tx, sub.RestaurantID)
	if err != nil {
		if err == domain.ErrNotFound {
			// A restaurant without an admin account is provisioned but not yet
			// onboarded; activation of the subscription still stands.
			uc.log.Warn().Str("restaurant_id", sub.RestaurantID).Msg("confirm payment: no admin user to activate")
			return nil
		}
		return err
	}
	if err := uc.users.SetActive(ctx, tx, admin.ID, true); err != nil {
		return err
	}

	uc.log.Info().Str("subscription_id", subscriptionID).Str("restaurant_id", sub.RestaurantID).
		Str("transaction_ref", transactionRef).Msg("payment confirmed, subscription activated")
	return nil
}

func (uc *activationUC) ValidateCash(ctx context.Context, subscriptionID string, actor *model.User) error {
	if actor == nil || !actor.IsSuperAdmin() {
		return domain.ErrUnauthorized
	}

	ref := ulid.MustNew(ulid.Timestamp(uc.now()), rand.Reader).String()
	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		ledger := &model.PaymentTransaction{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			Provider:       model.ProviderCash,
			ExternalRef:    ref,
			Status:         model.TransactionStatusPending,
			Amount:         sub.MonthlyAmount,
			Currency:       sub.Currency,
			Meta:           map[string]any{"validated_by": actor.ID},
			CreatedAt:      uc.now(),
			UpdatedAt:      uc.now(),
		}
		if err := uc.transactions.Create(ctx, tx, ledger); err != nil {
			return err
		}
		if _, err := uc.transactions.MarkCompleted(ctx, tx, model.ProviderCash, ref, nil); err != nil {
			return err
		}
		return uc.confirmInTx(ctx, tx, sub.ID, ref)
	})
}

func (uc *activationUC) RejectCash(ctx context.Context, subscriptionID string, actor *model.User, notes string) error {
	if actor == nil || !actor.IsSuperAdmin() {
		return domain.ErrUnauthorized
	}

	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		// Rejection blocks activation only; the restaurant keeps whatever
		// access it already has.
		return uc.subs.Reject(ctx, tx, sub.ID, notes)
	})
	if err != nil {
		return err
	}
	uc.log.Info().Str("subscription_id", subscriptionID).Str("actor", actor.ID).Msg("cash payment rejected")
	return nil
}
