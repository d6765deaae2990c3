package domain

import "time"

// TransactionSettledEvent is published when a confirm call reaches a terminal
// settlement. Consumers use it to drop balance and beneficiary caches and to
// fan out notifications; this service never writes those caches itself.
type TransactionSettledEvent struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	CategoryCode  string    `json:"category_code"`
	ProviderID    int64     `json:"provider_id"`
	Status        string    `json:"status"`
	Reference     string    `json:"reference,omitempty"`
	Amount        string    `json:"amount"`
	Fee           string    `json:"fee"`
	TotalAmount   string    `json:"total_amount"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
