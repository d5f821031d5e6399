package model

import (
	"time"

	"restaurant-pos-billing/internal/domain"
)

type Plan string

const (
	PlanSimple  Plan = "simple"
	PlanMedium  Plan = "medium"
	PlanPremium Plan = "premium"
)

// DefaultMonthlyAmount returns the list price of a plan in minor currency
// units. The amount is snapshotted onto the subscription at creation or
// plan-change time, so later price changes never touch existing rows.
func (p Plan) DefaultMonthlyAmount() int64 {
	switch p {
	case PlanSimple:
		return 1000
	case PlanMedium:
		return 2500
	case PlanPremium:
		return 5000
	}
	return 0
}

func (p Plan) Valid() bool {
	switch p {
	case PlanSimple, PlanMedium, PlanPremium:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobileMoney:
		return true
	}
	return false
}

// PaymentState is the confirmation state of the subscription's current
// payment. It only ever moves pending -> confirmed (terminal success) or
// pending -> rejected (terminal failure, escaped by switching payment method).
type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStateConfirmed PaymentState = "confirmed"
	PaymentStateRejected  PaymentState = "rejected"
)

// SubscriptionStatus is the lifecycle state, independent of payment: an admin
// can suspend or reactivate a confirmed subscription without touching the
// payment state.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusRejected  SubscriptionStatus = "rejected"
)

// Subscription is one billing agreement for a restaurant. History is kept as
// rows; the restaurant's CurrentSubscriptionID pointer names the live one.
type Subscription struct {
	ID            string // UUID
	RestaurantID  string // UUID
	Plan          Plan
	MonthlyAmount int64  // minor units, snapshotted at creation/plan change
	Currency      string // ISO code, e.g. "USD", "CDF"
	PaymentMethod PaymentMethod
	PaymentState  PaymentState
	Status        SubscriptionStatus
	Active        bool // mirrors Status == active

	// OTP challenge, only populated for the mobile-money flow. At most one
	// valid code at a time; issuing a new one overwrites the old.
	OTPCode      *string
	OTPExpiresAt *time.Time

	TransactionRef *string // free-text provider reference recorded on confirmation
	Notes          *string // reject notes from manual cash review

	StartAt   *time.Time
	EndAt     *time.Time
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription creates a pending subscription for a restaurant.
func NewSubscription(id, restaurantID string, plan Plan, method PaymentMethod, currency string) (*Subscription, error) {
	if id == "" || restaurantID == "" || !plan.Valid() || !method.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:            id,
		RestaurantID:  restaurantID,
		Plan:          plan,
		MonthlyAmount: plan.DefaultMonthlyAmount(),
		Currency:      currency,
		PaymentMethod: method,
		PaymentState:  PaymentStatePending,
		Status:        SubscriptionStatusSuspended,
		Active:        false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// HasValidOTP reports whether a non-expired OTP is stored right now.
func (s *Subscription) HasValidOTP(now time.Time) bool {
	return s.OTPCode != nil && s.OTPExpiresAt != nil && !now.After(*s.OTPExpiresAt)
}
