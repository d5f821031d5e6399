package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/infra/logging"
	"restaurant-pos-billing/internal/infra/metrics"
	"restaurant-pos-billing/internal/infra/redis"
)

const (
	otpResendLimit  = 3
	otpResendWindow = 10 * time.Minute
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidPhoneNumber),
		errors.Is(err, domain.ErrInvalidOTP),
		errors.Is(err, domain.ErrOTPExpired):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrPaymentNotPending),
		errors.Is(err, domain.ErrDuplicateTransaction),
		errors.Is(err, domain.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrMissingCredentials):
		status = http.StatusServiceUnavailable
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidArgument
	}
	if err := s.validate.Struct(dst); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

func subscriptionView(sub *model.Subscription) map[string]any {
	v := map[string]any{
		"id":             sub.ID,
		"restaurant_id":  sub.RestaurantID,
		"plan":           sub.Plan,
		"payment_method": sub.PaymentMethod,
		"payment_state":  sub.PaymentState,
		"status":         sub.Status,
		"active":         sub.Active,
		"monthly_amount": sub.MonthlyAmount,
		"currency":       sub.Currency,
	}
	if sub.TransactionRef != nil {
		v["transaction_ref"] = *sub.TransactionRef
	}
	if sub.OTPExpiresAt != nil {
		v["otp_expires_at"] = sub.OTPExpiresAt
	}
	return v
}

// ===== Subscription handlers =====

type subscriptionCreateRequest struct {
	RestaurantID  string `json:"restaurant_id" validate:"required,uuid4"`
	Plan          string `json:"plan" validate:"required,oneof=simple medium premium"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash card mobile_money"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionCreateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := logging.WithRestaurantID(r.Context(), req.RestaurantID)
	sub, err := s.subUC.Create(ctx, req.RestaurantID, model.Plan(req.Plan), model.PaymentMethod(req.PaymentMethod))
	if err != nil {
		writeError(w, err)
		return
	}
	logging.With(ctx, s.log).Info().Str("subscription_id", sub.ID).Msg("subscription created")
	writeJSON(w, http.StatusCreated, subscriptionView(sub))
}

func (s *Server) handleCurrentSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.Current(r.Context(), chi.URLParam(r, "restaurantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionView(sub))
}

type paymentMethodRequest struct {
	Method string `json:"method" validate:"required,oneof=cash card mobile_money"`
}

func (s *Server) handleChangePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sub, err := s.subUC.ChangePaymentMethod(r.Context(), chi.URLParam(r, "subscriptionID"), model.PaymentMethod(req.Method))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionView(sub))
}

// ===== Card handlers =====

func (s *Server) handleCardCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := s.paymentUC.CreateCardCheckout(r.Context(), chi.URLParam(r, "subscriptionID"), s.successURL, s.cancelURL)
	if err != nil {
		metrics.IncPaymentInitiated(string(model.ProviderStripe), "error")
		writeError(w, err)
		return
	}
	metrics.IncPaymentInitiated(string(model.ProviderStripe), "ok")
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id":   session.SessionID,
		"checkout_url": session.URL,
	})
}

type cardConfirmRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

func (s *Server) handleCardConfirm(w http.ResponseWriter, r *http.Request) {
	var req cardConfirmRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	conf, err := s.paymentUC.ConfirmCardPaymentMethod(r.Context(), chi.URLParam(r, "subscriptionID"), req.PaymentMethodID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"paid": conf.Paid, "requires_action": conf.RequiresAction}
	if conf.RequiresAction {
		resp["client_secret"] = conf.ClientSecret
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	paid, err := s.paymentUC.VerifyCardSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := "pending"
	if paid {
		status = "completed"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// ===== Mobile money handlers =====

type mobileMoneyInitiateRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Provider    string `json:"provider" validate:"omitempty,oneof=orange_money airtel_money"`
}

func (s *Server) handleMobileMoneyInitiate(w http.ResponseWriter, r *http.Request) {
	var req mobileMoneyInitiateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	init, err := s.paymentUC.InitiateMobileMoney(r.Context(), chi.URLParam(r, "subscriptionID"), req.PhoneNumber, model.Provider(req.Provider))
	if err != nil {
		metrics.IncPaymentInitiated(req.Provider, "error")
		writeError(w, err)
		return
	}
	metrics.IncPaymentInitiated(string(init.Provider), "ok")
	resp := map[string]any{
		"transaction_ref": init.TransactionRef,
		"provider":        init.Provider,
		"requires_otp":    init.RequiresOTP,
	}
	if init.PaymentURL != "" {
		resp["payment_url"] = init.PaymentURL
	}
	writeJSON(w, http.StatusCreated, resp)
}

type otpConfirmRequest struct {
	OTPCode string `json:"otp_code" validate:"required,len=6,numeric"`
}

func (s *Server) handleMobileMoneyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpConfirmRequest
	if err := s.decode(r, &req); err != nil {
		metrics.IncOTPVerification("invalid")
		writeError(w, err)
		return
	}

	err := s.paymentUC.ConfirmMobileMoneyOTP(r.Context(), chi.URLParam(r, "subscriptionID"), req.OTPCode)
	switch {
	case err == nil:
		metrics.IncOTPVerification("ok")
		writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
	case errors.Is(err, domain.ErrOTPExpired):
		metrics.IncOTPVerification("expired")
		writeError(w, err)
	case errors.Is(err, domain.ErrInvalidOTP):
		metrics.IncOTPVerification("invalid")
		writeError(w, err)
	default:
		writeError(w, err)
	}
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	subscriptionID := chi.URLParam(r, "subscriptionID")

	ok, err := s.limiter.Allow(r.Context(), redis.OTPResendKey(subscriptionID), otpResendLimit, otpResendWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("otp resend limiter unavailable, allowing request")
	} else if !ok {
		writeError(w, domain.ErrRateLimited)
		return
	}

	sub, err := s.subUC.ResendOTP(r.Context(), subscriptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncOTPIssued()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "otp_sent",
		"otp_expires_at": sub.OTPExpiresAt,
	})
}

// ===== Admin handlers =====

type adminLoginRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if s.apiKey == "" || req.APIKey != s.apiKey {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	token, err := s.auth.Mint(w, "platform", model.UserRoleSuperAdmin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleValidateCash(w http.ResponseWriter, r *http.Request) {
	err := s.activationUC.ValidateCash(r.Context(), chi.URLParam(r, "subscriptionID"), actorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncPaymentConfirmed(string(model.ProviderCash))
	metrics.IncSubscriptionActivation("ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "validated"})
}

type rejectCashRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=500"`
}

func (s *Server) handleRejectCash(w http.ResponseWriter, r *http.Request) {
	var req rejectCashRequest
	if r.ContentLength > 0 {
		if err := s.decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	err := s.activationUC.RejectCash(r.Context(), chi.URLParam(r, "subscriptionID"), actorFrom(r.Context()), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncPaymentRejected(string(model.PaymentMethodCash))
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	if err := s.subUC.Suspend(r.Context(), chi.URLParam(r, "subscriptionID")); err != nil {
		writeError(w, err)
		return
	}
	metrics.IncSubscriptionLifecycle(string(model.SubscriptionStatusSuspended))
	writeJSON(w, http.StatusOK, map[string]string{"status": "suspended"})
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.subUC.Reactivate(r.Context(), chi.URLParam(r, "subscriptionID")); err != nil {
		writeError(w, err)
		return
	}
	metrics.IncSubscriptionLifecycle(string(model.SubscriptionStatusActive))
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}
