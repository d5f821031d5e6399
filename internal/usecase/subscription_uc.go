package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// Create provisions a pending subscription for a restaurant and repoints
	// the restaurant's current-subscription pointer at it.
	Create(ctx context.Context, restaurantID string, plan model.Plan, method model.PaymentMethod) (*model.Subscription, error)
	// Current returns the subscription governing the restaurant right now.
	Current(ctx context.Context, restaurantID string) (*model.Subscription, error)
	// ChangePaymentMethod switches rails and resets the payment state to
	// pending. Allowed even while a previous payment attempt is in flight:
	// locking here would strand users behind silently failed transactions, so
	// the ledger's idempotency guard is the only arbiter.
	ChangePaymentMethod(ctx context.Context, subscriptionID string, method model.PaymentMethod) (*model.Subscription, error)
	// ResendOTP issues a fresh payment code for a pending mobile-money
	// subscription, invalidating the previous one.
	ResendOTP(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	// Suspend and Reactivate are administrative lifecycle toggles, independent
	// of payment confirmation.
	Suspend(ctx context.Context, subscriptionID string) error
	Reactivate(ctx context.Context, subscriptionID string) error
}

type subscriptionUC struct {
	subs        repository.SubscriptionRepository
	restaurants repository.RestaurantRepository
	otp         *OTPManager
	tm          repository.TransactionManager
	currency    string
	log         *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	restaurants repository.RestaurantRepository,
	otp *OTPManager,
	tm repository.TransactionManager,
	currency string,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{subs: subs, restaurants: restaurants, otp: otp, tm: tm, currency: currency, log: logger}
}

func (uc *subscriptionUC) Create(ctx context.Context, restaurantID string, plan model.Plan, method model.PaymentMethod) (*model.Subscription, error) {
	sub, err := model.NewSubscription(uuid.NewString(), restaurantID, plan, method, uc.currency)
	if err != nil {
		return nil, err
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := uc.restaurants.FindByID(ctx, tx, restaurantID); err != nil {
			return err
		}
		if err := uc.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if err := uc.restaurants.SetCurrentSubscription(ctx, tx, restaurantID, sub.ID); err != nil {
			return err
		}
		if method == model.PaymentMethodMobileMoney {
			if _, err := uc.otp.Generate(ctx, tx, sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("restaurant_id", restaurantID).Str("subscription_id", sub.ID).
		Str("plan", string(plan)).Str("method", string(method)).Msg("subscription created")
	return sub, nil
}

func (uc *subscriptionUC) Current(ctx context.Context, restaurantID string) (*model.Subscription, error) {
	return uc.subs.FindCurrentByRestaurant(ctx, nil, restaurantID)
}

func (uc *subscriptionUC) ChangePaymentMethod(ctx context.Context, subscriptionID string, method model.PaymentMethod) (*model.Subscription, error) {
	if !method.Valid() {
		return nil, domain.ErrInvalidArgument
	}

	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if err := uc.subs.SetPaymentMethod(ctx, tx, sub.ID, method); err != nil {
			return err
		}
		sub.PaymentMethod = method
		sub.PaymentState = model.PaymentStatePending
		sub.UpdatedAt = time.Now()
		if method == model.PaymentMethodMobileMoney {
			if _, err := uc.otp.Generate(ctx, tx, sub); err != nil {
				return err
			}
		} else if sub.OTPCode != nil {
			if err := uc.subs.ClearOTP(ctx, tx, sub.ID); err != nil {
				return err
			}
			sub.OTPCode, sub.OTPExpiresAt = nil, nil
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("subscription_id", subscriptionID).Str("method", string(method)).
		Msg("payment method changed, payment state reset to pending")
	return out, nil
}

func (uc *subscriptionUC) ResendOTP(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var out *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.PaymentMethod != model.PaymentMethodMobileMoney {
			return domain.ErrInvalidArgument
		}
		if sub.PaymentState != model.PaymentStatePending {
			return domain.ErrPaymentNotPending
		}
		if _, err := uc.otp.Generate(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("subscription_id", subscriptionID).Msg("otp reissued")
	return out, nil
}

func (uc *subscriptionUC) Suspend(ctx context.Context, subscriptionID string) error {
	return uc.setLifecycle(ctx, subscriptionID, model.SubscriptionStatusSuspended, false)
}

func (uc *subscriptionUC) Reactivate(ctx context.Context, subscriptionID string) error {
	return uc.setLifecycle(ctx, subscriptionID, model.SubscriptionStatusActive, true)
}

func (uc *subscriptionUC) setLifecycle(ctx context.Context, subscriptionID string, status model.SubscriptionStatus, active bool) error {
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		return uc.subs.SetStatus(ctx, tx, sub.ID, status, active)
	})
	if err != nil {
		return err
	}
	uc.log.Info().Str("subscription_id", subscriptionID).Str("status", string(status)).Msg("subscription lifecycle changed")
	return nil
}
