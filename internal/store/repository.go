/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for the payment attempt journal. Every initiate attempt is journaled with
 * its idempotency token before the upstream call is made, and every state the
 * attempt moves through is recorded, so an unknown confirm outcome can be
 * reconciled later and a duplicate token can never produce two attempts.
 *
 * By defining an interface, the confirmation logic stays decoupled from the
 * PostgreSQL implementation and is testable against in-memory stubs.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/vaultpay/billpay-service/internal/domain"
)

// Repository defines the set of methods for the attempt journal.
type Repository interface {
	// CreateAttempt journals a fresh initiate attempt. Fails with
	// ErrDuplicateIdempotencyKey when the token has been seen before.
	CreateAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error

	// MarkAttemptAccepted records the server-assigned transaction id and the
	// authoritative fee/total once the initiate phase succeeds.
	MarkAttemptAccepted(ctx context.Context, attemptID uuid.UUID, upstreamTransactionID, fee, totalAmount string) error

	// UpdateAttemptState moves the attempt to a new flow state, optionally
	// recording a failure reason.
	UpdateAttemptState(ctx context.Context, attemptID uuid.UUID, state domain.FlowState, failureReason *string) error

	// RecordSettlement persists the terminal settlement for receipt lookups.
	RecordSettlement(ctx context.Context, accountID string, settled *domain.SettledTransaction) error

	FindAttemptByIdempotencyKey(ctx context.Context, key uuid.UUID) (*domain.PaymentAttempt, error)
	FindAttemptByUpstreamTransactionID(ctx context.Context, upstreamTransactionID string) (*domain.PaymentAttempt, error)
	FindSettlementByTransactionID(ctx context.Context, accountID, transactionID string) (*domain.SettledTransaction, error)
}
