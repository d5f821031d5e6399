package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
)

var _ adapter.MobileMoneyGateway = (*AirtelMoneyGateway)(nil)

// AirtelMoneyGateway implements the mobile-money port against the Airtel
// Money merchant API. Airtel's collection flow ends with the subscriber
// entering a PIN on-device, surfaced to our users as the OTP step.
type AirtelMoneyGateway struct {
	clientID     string
	clientSecret string
	baseURL      string
	currency     string
	country      string
	client       *http.Client
}

func NewAirtelMoneyGateway(clientID, clientSecret, baseURL, currency, country string) *AirtelMoneyGateway {
	if baseURL == "" {
		baseURL = "https://openapiuat.airtel.africa"
	}
	if currency == "" {
		currency = "CDF"
	}
	if country == "" {
		country = "CD"
	}
	return &AirtelMoneyGateway{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		currency:     currency,
		country:      country,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *AirtelMoneyGateway) Name() model.Provider { return model.ProviderAirtelMoney }

func (g *AirtelMoneyGateway) configured() bool {
	return g.clientID != "" && g.clientSecret != ""
}

type airtelTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type airtelTransactionEnvelope struct {
	Data struct {
		Transaction struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
	Status struct {
		Code    string `json:"code"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	} `json:"status"`
}

func (g *AirtelMoneyGateway) token(ctx context.Context) (string, error) {
	requestData := map[string]interface{}{
		"client_id":     g.clientID,
		"client_secret": g.clientSecret,
		"grant_type":    "client_credentials",
	}
	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/auth/oauth2/token", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	var tok airtelTokenResponse
	if err := decodeBody(resp.Body, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("airtel token response missing access_token")
	}
	return tok.AccessToken, nil
}

func (g *AirtelMoneyGateway) RequestPayment(ctx context.Context, sub *model.Subscription, phoneNumber string) (*adapter.InitiateResult, error) {
	if !g.configured() {
		return nil, domain.ErrMissingCredentials
	}
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	// Airtel wants the msisdn without country prefix or leading zero.
	msisdn := normalizeMsisdn(phoneNumber)
	txnID := uuid.NewString()
	requestData := map[string]interface{}{
		"reference": fmt.Sprintf("%s plan subscription", sub.Plan),
		"subscriber": map[string]interface{}{
			"country":  g.country,
			"currency": g.currency,
			"msisdn":   msisdn,
		},
		"transaction": map[string]interface{}{
			"amount":   sub.MonthlyAmount,
			"country":  g.country,
			"currency": g.currency,
			"id":       txnID,
		},
	}

	var out airtelTransactionEnvelope
	if err := g.post(ctx, tok, "/merchant/v1/payments/", requestData, &out); err != nil {
		return nil, err
	}
	if !out.Status.Success && out.Status.Code != "200" {
		return nil, fmt.Errorf("airtel error: code %s, message: %s", out.Status.Code, out.Status.Message)
	}

	ref := out.Data.Transaction.ID
	if ref == "" {
		ref = txnID
	}
	return &adapter.InitiateResult{ExternalRef: ref, RequiresOTP: true}, nil
}

func (g *AirtelMoneyGateway) VerifyPayment(ctx context.Context, externalRef string) (adapter.VerifyOutcome, error) {
	if !g.configured() {
		return adapter.VerifyPending, domain.ErrMissingCredentials
	}
	tok, err := g.token(ctx)
	if err != nil {
		return adapter.VerifyPending, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/standard/v1/payments/"+externalRef, nil)
	if err != nil {
		return adapter.VerifyPending, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Country", g.country)
	req.Header.Set("X-Currency", g.currency)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.VerifyPending, fmt.Errorf("failed to query status: %w", err)
	}
	defer resp.Body.Close()

	var out airtelTransactionEnvelope
	if err := decodeBody(resp.Body, &out); err != nil {
		return adapter.VerifyPending, err
	}
	return ClassifyStatus(model.ProviderAirtelMoney, out.Data.Transaction.Status), nil
}

func (g *AirtelMoneyGateway) ConfirmPayment(ctx context.Context, externalRef, otpCode string) error {
	if !g.configured() {
		return domain.ErrMissingCredentials
	}
	tok, err := g.token(ctx)
	if err != nil {
		return err
	}
	requestData := map[string]interface{}{
		"transaction": map[string]interface{}{"id": externalRef},
		"pin":         otpCode,
	}
	var out airtelTransactionEnvelope
	if err := g.post(ctx, tok, "/merchant/v1/payments/confirm", requestData, &out); err != nil {
		return err
	}
	if ClassifyStatus(model.ProviderAirtelMoney, out.Data.Transaction.Status) == adapter.VerifyFailed {
		return fmt.Errorf("airtel confirm rejected: status %s", out.Data.Transaction.Status)
	}
	return nil
}

func (g *AirtelMoneyGateway) post(ctx context.Context, token, path string, payload map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Country", g.country)
	req.Header.Set("X-Currency", g.currency)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

func normalizeMsisdn(phone string) string {
	p := strings.TrimPrefix(phone, "+")
	p = strings.TrimPrefix(p, "243")
	return strings.TrimPrefix(p, "0")
}
