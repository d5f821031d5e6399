package payment

import (
	"strings"

	"restaurant-pos-billing/internal/domain"
	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/adapter"
)

// WebhookNotification is the provider-agnostic result of extracting a
// mobile-money webhook payload.
type WebhookNotification struct {
	Provider    model.Provider
	ExternalRef string
	StatusCode  string
	Outcome     adapter.VerifyOutcome
}

// extractRule tells where a provider puts the transaction reference and
// the status inside its webhook body. Paths are tried in order; the
// first non-empty value wins.
type extractRule struct {
	refPaths    []string
	statusPaths []string
}

var extractRules = map[model.Provider]extractRule{
	model.ProviderOrangeMoney: {
		refPaths:    []string{"transaction.id", "pay_token", "order_id"},
		statusPaths: []string{"transaction.status", "status", "state"},
	},
	model.ProviderAirtelMoney: {
		refPaths:    []string{"transaction.id", "data.transaction.id", "order_id"},
		statusPaths: []string{"transaction.status_code", "transaction.status", "data.transaction.status", "status"},
	},
}

// ExtractWebhook pulls the external reference and status out of a decoded
// mobile-money webhook body using the per-provider lookup table.
func ExtractWebhook(provider model.Provider, body map[string]interface{}) (*WebhookNotification, error) {
	rule, ok := extractRules[provider]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	ref := firstString(body, rule.refPaths)
	if ref == "" {
		return nil, domain.ErrInvalidArgument
	}
	status := firstString(body, rule.statusPaths)
	return &WebhookNotification{
		Provider:    provider,
		ExternalRef: ref,
		StatusCode:  status,
		Outcome:     ClassifyStatus(provider, status),
	}, nil
}

// ClassifyStatus maps a provider status string onto the shared verify
// outcome. Unknown codes stay pending so the reconciler can retry.
func ClassifyStatus(provider model.Provider, status string) adapter.VerifyOutcome {
	s := strings.ToUpper(strings.TrimSpace(status))
	switch provider {
	case model.ProviderAirtelMoney:
		switch s {
		case "TS", "SUCCESS", "SUCCESSFUL":
			return adapter.VerifyCompleted
		case "TF", "FAILED":
			return adapter.VerifyFailed
		}
	case model.ProviderOrangeMoney:
		switch s {
		case "SUCCESS", "SUCCESSFUL":
			return adapter.VerifyCompleted
		case "FAILED", "EXPIRED":
			return adapter.VerifyFailed
		}
	}
	return adapter.VerifyPending
}

// ParseProvider maps a webhook route segment onto a provider.
func ParseProvider(name string) (model.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "orange", "orange_money", "orange-money":
		return model.ProviderOrangeMoney, nil
	case "airtel", "airtel_money", "airtel-money":
		return model.ProviderAirtelMoney, nil
	default:
		return "", domain.ErrUnknownProvider
	}
}

func firstString(body map[string]interface{}, paths []string) string {
	for _, p := range paths {
		if v := lookupPath(body, p); v != "" {
			return v
		}
	}
	return ""
}

func lookupPath(body map[string]interface{}, path string) string {
	cur := interface{}(body)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}
	if s, ok := cur.(string); ok {
		return s
	}
	return ""
}
