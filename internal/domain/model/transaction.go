package model

import "time"

type Provider string

const (
	ProviderOrangeMoney Provider = "orange_money"
	ProviderAirtelMoney Provider = "airtel_money"
	ProviderStripe      Provider = "stripe"
	ProviderCash        Provider = "cash"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderOrangeMoney, ProviderAirtelMoney, ProviderStripe, ProviderCash:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// PaymentTransaction is one row of the payment attempt ledger. Rows are
// created when a gateway initiates a payment and only ever move forward:
// pending -> completed exactly once, or pending -> failed. (provider,
// external_ref) is unique, which is the idempotency key for webhook
// re-deliveries.
type PaymentTransaction struct {
	ID             string // UUID
	SubscriptionID string // UUID
	Provider       Provider
	ExternalRef    string // provider-assigned transaction id / session id
	Status         TransactionStatus
	Amount         int64 // minor units
	Currency       string
	// Meta holds initiation data (payment URL, phone number) and later a
	// snapshot of the confirming webhook payload. Updates merge into it,
	// never replace it.
	Meta        map[string]any
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
