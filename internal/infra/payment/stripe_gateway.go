package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
)

var _ adapter.CardGateway = (*StripeGateway)(nil)

// StripeGateway implements the card port against the Stripe API. An empty
// secret key leaves the gateway constructed but unconfigured: every call then
// reports domain.ErrMissingCredentials without touching the network, so the
// card rail is simply unavailable while the other rails keep working.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	configured    bool
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	g := &StripeGateway{webhookSecret: webhookSecret}
	if secretKey == "" {
		return g
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	})
	g.api = &client.API{}
	g.api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	g.configured = true
	return g
}

func (g *StripeGateway) Name() model.Provider { return model.ProviderStripe }

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, sub *model.Subscription, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	if !g.configured {
		return nil, domain.ErrMissingCredentials
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(sub.Currency)),
				UnitAmount: stripe.Int64(sub.MonthlyAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("%s plan monthly subscription", sub.Plan)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	params.AddMetadata("subscription_id", sub.ID)
	params.AddMetadata("restaurant_id", sub.RestaurantID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &adapter.CheckoutSession{SessionID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) VerifySession(ctx context.Context, sessionID string) (bool, error) {
	if !g.configured {
		return false, domain.ErrMissingCredentials
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return false, fmt.Errorf("stripe session lookup: %w", err)
	}
	return s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}

func (g *StripeGateway) ConfirmPaymentMethod(ctx context.Context, sub *model.Subscription, paymentMethodID string) (*adapter.CardConfirmation, error) {
	if !g.configured {
		return nil, domain.ErrMissingCredentials
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(sub.MonthlyAmount),
		Currency:      stripe.String(strings.ToLower(sub.Currency)),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("subscription_id", sub.ID)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}

	conf := &adapter.CardConfirmation{IntentID: pi.ID}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		conf.Paid = true
	case stripe.PaymentIntentStatusRequiresAction:
		// 3-D Secure: the client finishes with the secret, the webhook settles.
		conf.RequiresAction = true
		conf.ClientSecret = pi.ClientSecret
	}
	return conf, nil
}

// ParseWebhook authenticates the raw event against the endpoint secret.
// Anything with a bad or absent signature dies here, before a single read of
// the payload is trusted.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*adapter.CardEvent, error) {
	if g.webhookSecret == "" {
		return nil, domain.ErrMissingCredentials
	}
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	ev := &adapter.CardEvent{Type: string(event.Type)}
	if event.Data != nil {
		ev.Raw = event.Data.Object
	}

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		ev.SessionID = cs.ID
		ev.SubscriptionID = cs.Metadata["subscription_id"]
		ev.Paid = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		ev.SessionID = pi.ID
		ev.SubscriptionID = pi.Metadata["subscription_id"]
		ev.Paid = true
	}
	return ev, nil
}
