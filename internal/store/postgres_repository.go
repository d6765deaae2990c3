/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for the payment_attempts journal and the
 * settled_transactions receipt table.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vaultpay/billpay-service/internal/domain"
)

var (
	ErrAttemptNotFound         = errors.New("payment attempt not found")
	ErrSettlementNotFound      = errors.New("settled transaction not found")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateAttempt inserts a journal row for a fresh initiate attempt. The
// unique index on idempotency_key is the backstop that makes a retried token
// visible as ErrDuplicateIdempotencyKey.
func (r *PostgresRepository) CreateAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	intentJSON, err := json.Marshal(attempt.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent snapshot: %w", err)
	}

	query := `
        INSERT INTO payment_attempts (id, account_id, idempotency_key, intent, state)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		attempt.ID,
		attempt.AccountID,
		attempt.IdempotencyKey,
		intentJSON,
		string(attempt.State),
	).Scan(&attempt.CreatedAt, &attempt.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create payment attempt: %w", err)
	}
	return nil
}

// MarkAttemptAccepted records the upstream transaction id and authoritative
// fee/total after a successful initiate.
func (r *PostgresRepository) MarkAttemptAccepted(ctx context.Context, attemptID uuid.UUID, upstreamTransactionID, fee, totalAmount string) error {
	query := `
        UPDATE payment_attempts
        SET upstream_transaction_id = $2, fee = $3, total_amount = $4,
            state = $5, updated_at = NOW()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, attemptID, upstreamTransactionID, fee, totalAmount, string(domain.StateAwaitingConfirmation))
	if err != nil {
		return fmt.Errorf("failed to mark attempt accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// UpdateAttemptState moves the attempt to a new state.
func (r *PostgresRepository) UpdateAttemptState(ctx context.Context, attemptID uuid.UUID, state domain.FlowState, failureReason *string) error {
	query := `
        UPDATE payment_attempts
        SET state = $2, failure_reason = COALESCE($3, failure_reason), updated_at = NOW()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, attemptID, string(state), failureReason)
	if err != nil {
		return fmt.Errorf("failed to update attempt state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// RecordSettlement persists the terminal settlement record. Settlements are
// write-once; a replay for an already recorded transaction id is a no-op.
func (r *PostgresRepository) RecordSettlement(ctx context.Context, accountID string, settled *domain.SettledTransaction) error {
	intentJSON, err := json.Marshal(settled.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent snapshot: %w", err)
	}

	query := `
        INSERT INTO settled_transactions
            (transaction_id, account_id, status, reference, intent, fee, total_amount, failure_reason, created_at, settled_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (transaction_id) DO NOTHING
    `
	_, err = r.db.Exec(ctx, query,
		settled.ID,
		accountID,
		settled.Status,
		settled.Reference,
		intentJSON,
		settled.Fee,
		settled.TotalAmount,
		nullableString(settled.FailureReason),
		settled.CreatedAt,
		settled.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	return nil
}

// FindAttemptByIdempotencyKey retrieves a journal row by its token.
func (r *PostgresRepository) FindAttemptByIdempotencyKey(ctx context.Context, key uuid.UUID) (*domain.PaymentAttempt, error) {
	query := `
        SELECT id, account_id, idempotency_key, intent, state,
               upstream_transaction_id, fee, total_amount, failure_reason,
               created_at, updated_at
        FROM payment_attempts
        WHERE idempotency_key = $1
    `
	return r.scanAttempt(r.db.QueryRow(ctx, query, key))
}

// FindAttemptByUpstreamTransactionID retrieves the journal row that produced
// a given pending transaction.
func (r *PostgresRepository) FindAttemptByUpstreamTransactionID(ctx context.Context, upstreamTransactionID string) (*domain.PaymentAttempt, error) {
	query := `
        SELECT id, account_id, idempotency_key, intent, state,
               upstream_transaction_id, fee, total_amount, failure_reason,
               created_at, updated_at
        FROM payment_attempts
        WHERE upstream_transaction_id = $1
    `
	return r.scanAttempt(r.db.QueryRow(ctx, query, upstreamTransactionID))
}

// FindSettlementByTransactionID retrieves a recorded settlement for receipts.
func (r *PostgresRepository) FindSettlementByTransactionID(ctx context.Context, accountID, transactionID string) (*domain.SettledTransaction, error) {
	query := `
        SELECT transaction_id, status, reference, intent, fee, total_amount,
               failure_reason, created_at, settled_at
        FROM settled_transactions
        WHERE transaction_id = $1 AND account_id = $2
    `
	var (
		settled       domain.SettledTransaction
		intentJSON    []byte
		failureReason *string
		settledAt     *time.Time
	)
	err := r.db.QueryRow(ctx, query, transactionID, accountID).Scan(
		&settled.ID,
		&settled.Status,
		&settled.Reference,
		&intentJSON,
		&settled.Fee,
		&settled.TotalAmount,
		&failureReason,
		&settled.CreatedAt,
		&settledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to find settlement: %w", err)
	}
	if err := json.Unmarshal(intentJSON, &settled.Intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent snapshot: %w", err)
	}
	if failureReason != nil {
		settled.FailureReason = *failureReason
	}
	if settledAt != nil {
		settled.SettledAt = *settledAt
	}
	return &settled, nil
}

func (r *PostgresRepository) scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var (
		attempt    domain.PaymentAttempt
		intentJSON []byte
		state      string
	)
	err := row.Scan(
		&attempt.ID,
		&attempt.AccountID,
		&attempt.IdempotencyKey,
		&intentJSON,
		&state,
		&attempt.UpstreamTransactionID,
		&attempt.Fee,
		&attempt.TotalAmount,
		&attempt.FailureReason,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
	}
	attempt.State = domain.FlowState(state)
	if err := json.Unmarshal(intentJSON, &attempt.Intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent snapshot: %w", err)
	}
	return &attempt, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
