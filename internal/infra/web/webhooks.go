package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/ports/adapter"
	"restaurant-pos-billing/internal/infra/logging"
	"restaurant-pos-billing/internal/infra/metrics"
	"restaurant-pos-billing/internal/infra/payment"
	"restaurant-pos-billing/internal/infra/redis"
)

const (
	maxWebhookBody = 64 << 10
	webhookLockTTL = 30 * time.Second
)

// handleStripeWebhook authenticates the event against the signing secret,
// then routes it through the card payment flow. Signature failures are
// rejected before any state is touched.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhookRejected("stripe", "body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	ev, err := s.card.ParseWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			metrics.IncWebhookRejected("stripe", "signature")
			s.log.Warn().Str("provider", "stripe").Msg("webhook signature rejected")
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
			return
		}
		metrics.IncWebhookRejected("stripe", "payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	metrics.IncWebhookReceived("stripe")

	// Event types we don't handle are acknowledged so Stripe stops retrying.
	if ev == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	var changed bool
	if err := s.withWebhookLock(w, r, "stripe", ev.SessionID, func() error {
		var err error
		changed, err = s.paymentUC.HandleCardEvent(r.Context(), ev)
		return err
	}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The event can outrun the checkout insert; answer 4xx so Stripe
			// retries once the ledger row exists.
			metrics.IncWebhookRejected("stripe", "unknown_ref")
			s.log.Warn().Str("provider", "stripe").Str("session_id", ev.SessionID).
				Msg("webhook for unknown transaction")
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown transaction"})
		}
		return
	}
	if changed {
		metrics.IncPaymentConfirmed("stripe")
		metrics.IncSubscriptionActivation("ok")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// handleMobileMoneyWebhook accepts Orange and Airtel callbacks on the route
// /webhook/mobile-money/{provider}. Payload shapes differ per provider; the
// extraction table normalizes them before the shared completion flow runs.
func (s *Server) handleMobileMoneyWebhook(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	provider, err := payment.ParseProvider(providerName)
	if err != nil {
		metrics.IncWebhookRejected(providerName, "provider")
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown provider"})
		return
	}

	if s.webhookToken != "" && r.Header.Get("X-Webhook-Token") != s.webhookToken {
		metrics.IncWebhookRejected(string(provider), "token")
		s.log.Warn().Str("provider", string(provider)).Msg("webhook token rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook token"})
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&body); err != nil {
		metrics.IncWebhookRejected(string(provider), "body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	note, err := payment.ExtractWebhook(provider, body)
	if err != nil {
		metrics.IncWebhookRejected(string(provider), "payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing transaction reference"})
		return
	}
	metrics.IncWebhookReceived(string(provider))

	ctx := logging.WithProvider(r.Context(), string(provider))
	logger := logging.With(ctx, s.log).With().Str("external_ref", note.ExternalRef).Logger()

	var changed bool
	var flowErr error
	err = s.withWebhookLock(w, r, string(provider), note.ExternalRef, func() error {
		switch note.Outcome {
		case adapter.VerifyCompleted:
			changed, flowErr = s.paymentUC.CompleteTransaction(ctx, provider, note.ExternalRef, body)
		case adapter.VerifyFailed:
			changed, flowErr = s.paymentUC.FailTransaction(ctx, provider, note.ExternalRef, body)
		default:
			logger.Debug().Str("status", note.StatusCode).Msg("webhook status still pending, ignoring")
		}
		return flowErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncWebhookRejected(string(provider), "unknown_ref")
			logger.Warn().Msg("webhook for unknown transaction")
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown transaction"})
			return
		}
		return
	}

	// Replays settle nothing; only the delivery that flipped the row counts.
	switch {
	case note.Outcome == adapter.VerifyCompleted && changed:
		metrics.IncPaymentConfirmed(string(provider))
		metrics.IncSubscriptionActivation("ok")
	case note.Outcome == adapter.VerifyFailed && changed:
		metrics.IncPaymentFailed(string(provider))
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "status": "success"})
}

// withWebhookLock serializes deliveries for one provider reference. The
// completion path is idempotent on its own; the lock just keeps concurrent
// retries from burning transactions on serialization conflicts.
func (s *Server) withWebhookLock(w http.ResponseWriter, r *http.Request, provider, ref string, fn func() error) error {
	key := redis.WebhookLockKey(provider, ref)
	token, err := s.locker.TryLock(r.Context(), key, webhookLockTTL)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy, retry later"})
		return err
	}
	defer s.locker.Unlock(r.Context(), key, token)

	if err := fn(); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error().Err(err).Str("provider", provider).Str("ref", ref).Msg("webhook processing failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return err
	}
	return nil
}
