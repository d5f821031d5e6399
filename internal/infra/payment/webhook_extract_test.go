//go:build !integration

package payment

import (
	"encoding/json"
	"errors"
	"testing"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
)

func decodeJSON(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return body
}

func TestExtractWebhook(t *testing.T) {
	cases := []struct {
		name     string
		provider model.Provider
		payload  string
		wantRef  string
		wantOut  adapter.VerifyOutcome
		wantErr  error
	}{
		{
			name:     "airtel nested transaction success",
			provider: model.ProviderAirtelMoney,
			payload:  `{"transaction":{"id":"AT-100","status_code":"TS"}}`,
			wantRef:  "AT-100",
			wantOut:  adapter.VerifyCompleted,
		},
		{
			name:     "airtel failed",
			provider: model.ProviderAirtelMoney,
			payload:  `{"transaction":{"id":"AT-101","status_code":"TF"}}`,
			wantRef:  "AT-101",
			wantOut:  adapter.VerifyFailed,
		},
		{
			name:     "airtel data envelope",
			provider: model.ProviderAirtelMoney,
			payload:  `{"data":{"transaction":{"id":"AT-102","status":"TS"}}}`,
			wantRef:  "AT-102",
			wantOut:  adapter.VerifyCompleted,
		},
		{
			name:     "orange pay_token fallback",
			provider: model.ProviderOrangeMoney,
			payload:  `{"pay_token":"OM-200","status":"SUCCESS"}`,
			wantRef:  "OM-200",
			wantOut:  adapter.VerifyCompleted,
		},
		{
			name:     "orange successful variant",
			provider: model.ProviderOrangeMoney,
			payload:  `{"order_id":"OM-201","state":"SUCCESSFUL"}`,
			wantRef:  "OM-201",
			wantOut:  adapter.VerifyCompleted,
		},
		{
			name:     "orange expired",
			provider: model.ProviderOrangeMoney,
			payload:  `{"pay_token":"OM-202","status":"EXPIRED"}`,
			wantRef:  "OM-202",
			wantOut:  adapter.VerifyFailed,
		},
		{
			name:     "unknown status stays pending",
			provider: model.ProviderOrangeMoney,
			payload:  `{"pay_token":"OM-203","status":"INITIATED"}`,
			wantRef:  "OM-203",
			wantOut:  adapter.VerifyPending,
		},
		{
			name:     "missing reference",
			provider: model.ProviderOrangeMoney,
			payload:  `{"status":"SUCCESS"}`,
			wantErr:  domain.ErrInvalidArgument,
		},
		{
			name:     "unknown provider",
			provider: model.Provider("mpesa"),
			payload:  `{"transaction":{"id":"X"}}`,
			wantErr:  domain.ErrUnknownProvider,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractWebhook(tc.provider, decodeJSON(t, tc.payload))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ExternalRef != tc.wantRef {
				t.Errorf("ref = %q, want %q", got.ExternalRef, tc.wantRef)
			}
			if got.Outcome != tc.wantOut {
				t.Errorf("outcome = %v, want %v", got.Outcome, tc.wantOut)
			}
		})
	}
}

func TestClassifyStatusCaseInsensitive(t *testing.T) {
	if got := ClassifyStatus(model.ProviderAirtelMoney, "ts"); got != adapter.VerifyCompleted {
		t.Fatalf("lowercase ts should complete, got %v", got)
	}
	if got := ClassifyStatus(model.ProviderOrangeMoney, " failed "); got != adapter.VerifyFailed {
		t.Fatalf("padded failed should fail, got %v", got)
	}
}

func TestParseProvider(t *testing.T) {
	for in, want := range map[string]model.Provider{
		"orange":       model.ProviderOrangeMoney,
		"orange-money": model.ProviderOrangeMoney,
		"airtel_money": model.ProviderAirtelMoney,
		"Airtel":       model.ProviderAirtelMoney,
	} {
		got, err := ParseProvider(in)
		if err != nil || got != want {
			t.Errorf("ParseProvider(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseProvider("mtn"); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}
