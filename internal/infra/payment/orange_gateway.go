package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
)

var _ adapter.MobileMoneyGateway = (*OrangeMoneyGateway)(nil)

// OrangeMoneyGateway implements the mobile-money port against the Orange
// Money web payment API using direct HTTP calls.
type OrangeMoneyGateway struct {
	merchantID   string
	clientID     string
	clientSecret string
	baseURL      string
	currency     string
	client       *http.Client
}

func NewOrangeMoneyGateway(merchantID, clientID, clientSecret, baseURL, currency string) *OrangeMoneyGateway {
	if baseURL == "" {
		baseURL = "https://api.orange.com/orange-money-webpay/dev/v1"
	}
	if currency == "" {
		currency = "CDF"
	}
	return &OrangeMoneyGateway{
		merchantID:   merchantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		currency:     currency,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *OrangeMoneyGateway) Name() model.Provider { return model.ProviderOrangeMoney }

func (g *OrangeMoneyGateway) configured() bool {
	return g.merchantID != "" && g.clientID != "" && g.clientSecret != ""
}

type orangeTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type orangePaymentResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
	NotifToken string `json:"notif_token"`
}

type orangeStatusResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"txnid"`
	Message       string `json:"message"`
}

func (g *OrangeMoneyGateway) token(ctx context.Context) (string, error) {
	body := bytes.NewBufferString("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/oauth/token", body)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	cred := base64.StdEncoding.EncodeToString([]byte(g.clientID + ":" + g.clientSecret))
	req.Header.Set("Authorization", "Basic "+cred)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	var tok orangeTokenResponse
	if err := decodeBody(resp.Body, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("orange token response missing access_token")
	}
	return tok.AccessToken, nil
}

func (g *OrangeMoneyGateway) RequestPayment(ctx context.Context, sub *model.Subscription, phoneNumber string) (*adapter.InitiateResult, error) {
	if !g.configured() {
		return nil, domain.ErrMissingCredentials
	}
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	requestData := map[string]interface{}{
		"merchant_key": g.merchantID,
		"currency":     g.currency,
		"order_id":     sub.ID,
		"amount":       sub.MonthlyAmount,
		"subscriber":   phoneNumber,
		"reference":    fmt.Sprintf("%s plan subscription", sub.Plan),
		"lang":         "fr",
	}
	var out orangePaymentResponse
	if err := g.post(ctx, tok, "/webpayment", requestData, &out); err != nil {
		return nil, err
	}
	if out.PayToken == "" {
		return nil, fmt.Errorf("orange error: status %s, message: %s", out.Status, out.Message)
	}

	// Orange settles either through its hosted page (payment_url) or through
	// the subscriber confirming on-device; both paths are guarded by our OTP
	// before the confirm endpoint is called.
	return &adapter.InitiateResult{
		ExternalRef: out.PayToken,
		RequiresOTP: true,
		PaymentURL:  out.PaymentURL,
	}, nil
}

func (g *OrangeMoneyGateway) VerifyPayment(ctx context.Context, externalRef string) (adapter.VerifyOutcome, error) {
	if !g.configured() {
		return adapter.VerifyPending, domain.ErrMissingCredentials
	}
	tok, err := g.token(ctx)
	if err != nil {
		return adapter.VerifyPending, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/webpayment/"+externalRef, nil)
	if err != nil {
		return adapter.VerifyPending, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.VerifyPending, fmt.Errorf("failed to query status: %w", err)
	}
	defer resp.Body.Close()

	var out orangeStatusResponse
	if err := decodeBody(resp.Body, &out); err != nil {
		return adapter.VerifyPending, err
	}
	return ClassifyStatus(model.ProviderOrangeMoney, out.Status), nil
}

func (g *OrangeMoneyGateway) ConfirmPayment(ctx context.Context, externalRef, otpCode string) error {
	if !g.configured() {
		return domain.ErrMissingCredentials
	}
	tok, err := g.token(ctx)
	if err != nil {
		return err
	}
	requestData := map[string]interface{}{"otp": otpCode}
	var out orangeStatusResponse
	if err := g.post(ctx, tok, "/webpayment/"+externalRef+"/confirm", requestData, &out); err != nil {
		return err
	}
	if ClassifyStatus(model.ProviderOrangeMoney, out.Status) == adapter.VerifyFailed {
		return fmt.Errorf("orange confirm rejected: status %s", out.Status)
	}
	return nil
}

func (g *OrangeMoneyGateway) post(ctx context.Context, token, path string, payload map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

func decodeBody(r io.Reader, out interface{}) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}
