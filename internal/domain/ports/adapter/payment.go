package adapter

import (
	"context"

	"restaurant-pos-billing/internal/domain/model"
)

// CheckoutSession is the hosted card-payment session created at the gateway.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// CardEvent is a gateway webhook event normalized for the billing core.
type CardEvent struct {
	Type           string // e.g. "checkout.session.completed"
	SessionID      string
	SubscriptionID string // from session metadata
	Paid           bool
	Raw            map[string]any // payload snapshot for the ledger
}

// CardConfirmation is the outcome of a direct PaymentIntent confirmation.
// RequiresAction carries the client secret for a 3-D Secure continuation.
type CardConfirmation struct {
	Paid           bool
	RequiresAction bool
	ClientSecret   string
	IntentID       string
}

// CardGateway is the hex port for the card provider (Stripe).
type CardGateway interface {
	Name() model.Provider
	// CreateCheckoutSession opens a hosted session for the subscription's
	// monthly amount. Missing credentials produce domain.ErrMissingCredentials
	// before any network call.
	CreateCheckoutSession(ctx context.Context, sub *model.Subscription, successURL, cancelURL string) (*CheckoutSession, error)
	// VerifySession queries the gateway; paid==true means the session settled.
	VerifySession(ctx context.Context, sessionID string) (paid bool, err error)
	// ConfirmPaymentMethod drives the direct card flow (with possible 3-DS
	// continuation) for the given payment method id.
	ConfirmPaymentMethod(ctx context.Context, sub *model.Subscription, paymentMethodID string) (*CardConfirmation, error)
	// ParseWebhook authenticates the raw event against the webhook secret and
	// normalizes it. Invalid or missing signatures yield
	// domain.ErrInvalidSignature and nothing else happens.
	ParseWebhook(payload []byte, signatureHeader string) (*CardEvent, error)
}

// InitiateResult reports a started mobile-money payment.
type InitiateResult struct {
	ExternalRef string // provider transaction id
	RequiresOTP bool   // true when the flow finishes with a local OTP check
	PaymentURL  string // set when the provider redirects instead
}

// VerifyOutcome distinguishes "settled" from "still in flight" from "provider
// said no": anything the provider has not explicitly failed stays pending.
type VerifyOutcome int

const (
	VerifyPending VerifyOutcome = iota
	VerifyCompleted
	VerifyFailed
)

// MobileMoneyGateway is the per-provider port; Orange and Airtel each
// implement it with their own wire formats.
type MobileMoneyGateway interface {
	Name() model.Provider
	RequestPayment(ctx context.Context, sub *model.Subscription, phoneNumber string) (*InitiateResult, error)
	VerifyPayment(ctx context.Context, externalRef string) (VerifyOutcome, error)
	// ConfirmPayment submits a locally validated OTP to the provider's
	// confirm endpoint, the fallback when VerifyPayment has not yet seen
	// completion.
	ConfirmPayment(ctx context.Context, externalRef, otpCode string) error
}
