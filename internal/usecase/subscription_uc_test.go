//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
)

type subUCDeps struct {
	subs  *memSubscriptionRepo
	rests *memRestaurantRepo
	otp   *OTPManager
	uc    *subscriptionUC
}

func newSubUCDeps(t *testing.T) *subUCDeps {
	t.Helper()
	subs := newMemSubscriptionRepo()
	rests := newMemRestaurantRepo()
	otp := NewOTPManager(subs)
	uc := NewSubscriptionUseCase(subs, rests, otp, &memTxManager{}, "USD", testLogger())

	rests.Save(context.Background(), nil, &model.Restaurant{ID: "rest-1", Name: "Chez Mado"})
	return &subUCDeps{subs: subs, rests: rests, otp: otp, uc: uc}
}

func TestSubscriptionUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("cash subscription starts pending without an otp", func(t *testing.T) {
		d := newSubUCDeps(t)

		sub, err := d.uc.Create(ctx, "rest-1", model.PlanMedium, model.PaymentMethodCash)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if sub.PaymentState != model.PaymentStatePending {
			t.Errorf("payment state = %s, want pending", sub.PaymentState)
		}
		if sub.Status != model.SubscriptionStatusSuspended || sub.Active {
			t.Error("new subscription must start suspended and inactive")
		}
		if sub.MonthlyAmount != model.PlanMedium.DefaultMonthlyAmount() {
			t.Errorf("monthly amount = %d, want plan default", sub.MonthlyAmount)
		}
		if sub.OTPCode != nil {
			t.Error("cash subscription should not carry an otp")
		}

		rest, _ := d.rests.FindByID(ctx, nil, "rest-1")
		if rest.CurrentSubscriptionID == nil || *rest.CurrentSubscriptionID != sub.ID {
			t.Error("restaurant pointer not repointed at the new subscription")
		}
	})

	t.Run("mobile money subscription gets an otp at creation", func(t *testing.T) {
		d := newSubUCDeps(t)

		sub, err := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodMobileMoney)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		stored, _ := d.subs.FindByID(ctx, nil, sub.ID)
		if stored.OTPCode == nil || stored.OTPExpiresAt == nil {
			t.Fatal("mobile money subscription should carry an otp challenge")
		}
	})

	t.Run("unknown restaurant", func(t *testing.T) {
		d := newSubUCDeps(t)
		if _, err := d.uc.Create(ctx, "rest-missing", model.PlanSimple, model.PaymentMethodCash); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_ChangePaymentMethod(t *testing.T) {
	ctx := context.Background()

	t.Run("switch to mobile money issues an otp and resets state", func(t *testing.T) {
		d := newSubUCDeps(t)
		sub, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodCash)

		out, err := d.uc.ChangePaymentMethod(ctx, sub.ID, model.PaymentMethodMobileMoney)
		if err != nil {
			t.Fatalf("change method: %v", err)
		}
		if out.PaymentMethod != model.PaymentMethodMobileMoney {
			t.Errorf("method = %s", out.PaymentMethod)
		}
		if out.PaymentState != model.PaymentStatePending {
			t.Errorf("state = %s, want pending", out.PaymentState)
		}
		if out.OTPCode == nil {
			t.Error("expected an otp after switching to mobile money")
		}
	})

	t.Run("switch away from mobile money clears the otp", func(t *testing.T) {
		d := newSubUCDeps(t)
		sub, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodMobileMoney)

		out, err := d.uc.ChangePaymentMethod(ctx, sub.ID, model.PaymentMethodCard)
		if err != nil {
			t.Fatalf("change method: %v", err)
		}
		if out.OTPCode != nil || out.OTPExpiresAt != nil {
			t.Error("otp should be cleared when leaving the mobile money rail")
		}
		stored, _ := d.subs.FindByID(ctx, nil, sub.ID)
		if stored.OTPCode != nil {
			t.Error("otp not cleared in storage")
		}
	})

	t.Run("invalid method", func(t *testing.T) {
		d := newSubUCDeps(t)
		sub, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodCash)
		if _, err := d.uc.ChangePaymentMethod(ctx, sub.ID, model.PaymentMethod("barter")); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_ResendOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("reissues a fresh code", func(t *testing.T) {
		d := newSubUCDeps(t)
		sub, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodMobileMoney)
		before, _ := d.subs.FindByID(ctx, nil, sub.ID)

		// Move the clock so the new expiry provably differs.
		d.otp.now = func() time.Time { return time.Now().Add(time.Minute) }

		out, err := d.uc.ResendOTP(ctx, sub.ID)
		if err != nil {
			t.Fatalf("resend: %v", err)
		}
		if out.OTPExpiresAt == nil || !out.OTPExpiresAt.After(*before.OTPExpiresAt) {
			t.Error("resend should push the expiry forward")
		}
	})

	t.Run("rejects non mobile money subscriptions", func(t *testing.T) {
		d := newSubUCDeps(t)
		sub, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodCash)
		if _, err := d.uc.ResendOTP(ctx, sub.ID); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects confirmed subscriptions", func(t *testing.T) {
		d := newSubUCDeps(t)
		sub, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodMobileMoney)
		if _, err := d.subs.Confirm(ctx, nil, sub.ID, "ref-1", time.Now()); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if _, err := d.uc.ResendOTP(ctx, sub.ID); !errors.Is(err, domain.ErrPaymentNotPending) {
			t.Fatalf("expected ErrPaymentNotPending, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	d := newSubUCDeps(t)
	sub, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodCash)
	d.subs.Confirm(ctx, nil, sub.ID, "ref-1", time.Now())
	d.rests.SetActive(ctx, nil, "rest-1", true)

	if err := d.uc.Suspend(ctx, sub.ID); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	stored, _ := d.subs.FindByID(ctx, nil, sub.ID)
	if stored.Status != model.SubscriptionStatusSuspended || stored.Active {
		t.Error("suspend should set status=suspended, active=false")
	}
	if stored.PaymentState != model.PaymentStateConfirmed {
		t.Error("suspend must not touch the payment state")
	}
	rest, _ := d.rests.FindByID(ctx, nil, "rest-1")
	if !rest.Active {
		t.Error("suspend operates on the subscription, not the restaurant")
	}

	if err := d.uc.Reactivate(ctx, sub.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	stored, _ = d.subs.FindByID(ctx, nil, sub.ID)
	if stored.Status != model.SubscriptionStatusActive || !stored.Active {
		t.Error("reactivate should set status=active, active=true")
	}
}

func TestSubscriptionUseCase_Current(t *testing.T) {
	ctx := context.Background()
	d := newSubUCDeps(t)

	first, _ := d.uc.Create(ctx, "rest-1", model.PlanSimple, model.PaymentMethodCash)
	_ = first
	second, _ := d.uc.Create(ctx, "rest-1", model.PlanPremium, model.PaymentMethodCard)

	cur, err := d.uc.Current(ctx, "rest-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.ID != second.ID {
		t.Errorf("current = %s, want the newest subscription %s", cur.ID, second.ID)
	}
}
