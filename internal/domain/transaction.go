/**
 * @description
 * This file defines the transaction-side domain models for the bill-payment
 * confirmation protocol: the flow state machine, the server-acknowledged
 * pending transaction, the terminal settled record, and the durable attempt
 * journal entry used for idempotency and reconciliation.
 *
 * @notes
 * - A PendingTransaction is created exclusively by the initiate phase and is
 *   read-only on this side; the authoritative fee/total come from the server
 *   response, never from a client estimate.
 * - Amounts are decimal strings; see intent.go.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowState is the state of one confirmation flow.
type FlowState string

const (
	StateIdle                 FlowState = "idle"
	StateInitiating           FlowState = "initiating"
	StateAwaitingConfirmation FlowState = "awaiting_confirmation"
	StateConfirming           FlowState = "confirming"
	StateSettled              FlowState = "settled"
	StateFailed               FlowState = "failed"
	StateCancelled            FlowState = "cancelled"
)

// Terminal reports whether the flow can make no further transitions other
// than a fresh initiate (Failed) or nothing at all (Settled, Cancelled).
func (s FlowState) Terminal() bool {
	return s == StateSettled || s == StateFailed || s == StateCancelled
}

// CanTransition enumerates the legal edges of the confirmation state machine.
// Cancellation is reachable from every non-terminal state; a failed flow may
// be re-initiated as a brand-new attempt with a fresh idempotency token.
func (s FlowState) CanTransition(to FlowState) bool {
	if to == StateCancelled {
		return !s.Terminal()
	}
	switch s {
	case StateIdle:
		return to == StateInitiating
	case StateInitiating:
		return to == StateAwaitingConfirmation || to == StateFailed
	case StateAwaitingConfirmation:
		return to == StateConfirming
	case StateConfirming:
		// A retryable confirm rejection returns the flow to awaiting.
		return to == StateSettled || to == StateFailed || to == StateAwaitingConfirmation
	case StateFailed:
		return to == StateInitiating
	default:
		return false
	}
}

// Settlement statuses reported by the biller backend.
const (
	SettlementCompleted = "completed"
	SettlementFailed    = "failed"
	SettlementPending   = "pending"
)

// PendingTransaction is the server-acknowledged, not-yet-settled transaction
// returned by the initiate phase. It lives only for the duration of the
// confirmation flow and is discarded on settle, terminal failure, or cancel.
type PendingTransaction struct {
	ID          string    `json:"transaction_id"`
	Amount      string    `json:"amount"`
	Fee         string    `json:"fee"`
	TotalAmount string    `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// SettledTransaction is the terminal record produced by the confirm phase,
// used to render a receipt or error view. Never mutated afterward.
type SettledTransaction struct {
	ID            string        `json:"transaction_id"`
	Status        string        `json:"status"`
	Reference     string        `json:"reference"`
	Intent        PaymentIntent `json:"intent"`
	Fee           string        `json:"fee"`
	TotalAmount   string        `json:"total_amount"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	SettledAt     time.Time     `json:"settled_at"`
}

// PaymentAttempt is the durable journal entry for one initiate attempt. It
// carries the client-generated idempotency token so a retried request cannot
// be double-processed, and it records every state the attempt moves through
// so an unknown-outcome confirm can be reconciled after the fact.
type PaymentAttempt struct {
	ID                    uuid.UUID     `json:"id"`
	AccountID             string        `json:"account_id"`
	IdempotencyKey        uuid.UUID     `json:"idempotency_key"`
	Intent                PaymentIntent `json:"intent"`
	State                 FlowState     `json:"state"`
	UpstreamTransactionID *string       `json:"upstream_transaction_id,omitempty"`
	Fee                   *string       `json:"fee,omitempty"`
	TotalAmount           *string       `json:"total_amount,omitempty"`
	FailureReason         *string       `json:"failure_reason,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}
