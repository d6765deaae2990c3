/**
 * @description
 * This file implements the transaction coordinator: the state machine that
 * drives the two-phase bill-payment protocol. One coordinator owns exactly
 * one flow (Idle → Initiating → AwaitingConfirmation → Confirming → Settled |
 * Failed | Cancelled) and guards every transition.
 *
 * Key invariants:
 * - Only one pending transaction may be outstanding per coordinator; a second
 *   initiate while one is in flight is rejected.
 * - Every initiate attempt carries a fresh client-generated idempotency token
 *   and is journaled before the upstream call, so a retried request cannot be
 *   double-charged.
 * - The server's fee/total from the initiate response are authoritative and
 *   replace any client-side estimate.
 * - A confirm that fails on factor mismatch keeps the same pending id and
 *   returns the flow to awaiting; a dead pending id fails the flow for good.
 * - A confirm timeout is an unknown outcome: the flow stays in confirming and
 *   is resolved through a status reconciliation call, never a blind retry.
 * - Every continuation after a network call re-checks the attempt token, so a
 *   flow that was cancelled or superseded mid-flight cannot mutate state.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/billpay-service/internal/domain"
	"github.com/vaultpay/billpay-service/internal/store"
	"github.com/vaultpay/billpay-service/pkg/billerclient"
	"github.com/vaultpay/billpay-service/pkg/rabbitmq"
)

// BillerAPI is the slice of the biller backend the coordinator needs.
type BillerAPI interface {
	InitiatePayment(ctx context.Context, req billerclient.InitiatePaymentRequest, idempotencyKey string) (*billerclient.InitiatePaymentResponse, error)
	ConfirmPayment(ctx context.Context, req billerclient.ConfirmPaymentRequest) (*billerclient.ConfirmPaymentResponse, error)
	GetTransaction(ctx context.Context, transactionID int64) (*billerclient.TransactionDetail, error)
}

// Coordinator drives one confirmation flow from intent to settlement.
type Coordinator struct {
	mu sync.Mutex

	accountID    string
	state        domain.FlowState
	intent       domain.PaymentIntent
	pending      *domain.PendingTransaction
	settled      *domain.SettledTransaction
	attemptID    uuid.UUID
	attemptToken uuid.UUID
	upstreamID   int64

	biller         BillerAPI
	policies       *SecurityPolicyProvider
	gate           *VerificationGate
	journal        store.Repository
	invalidator    CacheInvalidator
	events         rabbitmq.Publisher
	confirmTimeout time.Duration
}

// NewCoordinator creates an idle coordinator for one account's flow.
func NewCoordinator(
	accountID string,
	biller BillerAPI,
	policies *SecurityPolicyProvider,
	gate *VerificationGate,
	journal store.Repository,
	invalidator CacheInvalidator,
	events rabbitmq.Publisher,
	confirmTimeout time.Duration,
) *Coordinator {
	if confirmTimeout <= 0 {
		confirmTimeout = 15 * time.Second
	}
	return &Coordinator{
		accountID:      accountID,
		state:          domain.StateIdle,
		biller:         biller,
		policies:       policies,
		gate:           gate,
		journal:        journal,
		invalidator:    invalidator,
		events:         events,
		confirmTimeout: confirmTimeout,
	}
}

// State returns the current flow state.
func (c *Coordinator) State() domain.FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AccountID returns the owning account.
func (c *Coordinator) AccountID() string {
	return c.accountID
}

// Pending returns the outstanding pending transaction, if any.
func (c *Coordinator) Pending() *domain.PendingTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Settled returns the terminal settlement record, if the flow reached one.
func (c *Coordinator) Settled() *domain.SettledTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled
}

// Initiate runs phase 1 for a resolved intent. On success the coordinator
// holds a pending transaction with the server's authoritative fee and total
// and awaits confirmation. The idempotency key identifies the attempt end to
// end; uuid.Nil means the caller did not supply one and a fresh key is
// generated. A failed attempt is terminal for that attempt; a fresh Initiate
// starts over with a new key.
func (c *Coordinator) Initiate(ctx context.Context, intent domain.PaymentIntent, idempotencyKey uuid.UUID) (*domain.PendingTransaction, error) {
	c.mu.Lock()
	if !c.state.CanTransition(domain.StateInitiating) {
		defer c.mu.Unlock()
		if c.state == domain.StateCancelled {
			return nil, ErrFlowCancelled
		}
		return nil, ErrFlowInProgress
	}
	c.state = domain.StateInitiating
	c.intent = intent
	c.pending = nil
	c.settled = nil
	c.attemptID = uuid.New()
	c.attemptToken = idempotencyKey
	if c.attemptToken == uuid.Nil {
		c.attemptToken = uuid.New()
	}
	attemptID := c.attemptID
	token := c.attemptToken
	c.mu.Unlock()

	attempt := &domain.PaymentAttempt{
		ID:             attemptID,
		AccountID:      c.accountID,
		IdempotencyKey: token,
		Intent:         intent,
		State:          domain.StateInitiating,
	}
	if err := c.journal.CreateAttempt(ctx, attempt); err != nil {
		c.failAttempt(ctx, token, err.Error())
		return nil, fmt.Errorf("failed to journal payment attempt: %w", err)
	}

	resp, err := c.biller.InitiatePayment(ctx, billerclient.InitiatePaymentRequest{
		CategoryCode:  intent.CategoryCode,
		ProviderID:    intent.ProviderID,
		Currency:      intent.Currency,
		Amount:        intent.Amount,
		AccountNumber: intent.Destination,
		PlanID:        intent.PlanID,
	}, token.String())
	if err != nil {
		c.failAttempt(ctx, token, err.Error())
		var apiErr *billerclient.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("initiate failed: %w", err)
	}

	pending := &domain.PendingTransaction{
		ID:          strconv.FormatInt(resp.TransactionID, 10),
		Amount:      resp.Amount,
		Fee:         resp.Fee,
		TotalAmount: resp.TotalAmount,
		CreatedAt:   time.Now().UTC(),
	}

	c.mu.Lock()
	if c.attemptToken != token || c.state != domain.StateInitiating {
		// Flow was cancelled or superseded while the request was in flight.
		// The upstream pending record is left to its own expiry.
		c.mu.Unlock()
		return nil, ErrFlowCancelled
	}
	c.state = domain.StateAwaitingConfirmation
	c.pending = pending
	c.upstreamID = resp.TransactionID
	c.mu.Unlock()

	if err := c.journal.MarkAttemptAccepted(ctx, attemptID, pending.ID, pending.Fee, pending.TotalAmount); err != nil {
		log.Printf("level=warn component=coordinator msg=\"journal accept update failed\" attempt_id=%s err=%v", attemptID, err)
	}

	return pending, nil
}

// Confirm runs phase 2 for the outstanding pending transaction. The bundle
// is checked against a freshly fetched policy before any network call; a
// gate failure leaves the flow awaiting confirmation and costs no round trip.
func (c *Coordinator) Confirm(ctx context.Context, pendingID string, bundle domain.VerificationBundle) (*domain.SettledTransaction, error) {
	c.mu.Lock()
	if err := c.checkConfirmableLocked(pendingID); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	token := c.attemptToken
	upstreamID := c.upstreamID
	c.mu.Unlock()

	policy := c.policies.FetchPolicy(ctx)
	if err := c.gate.Verify(bundle, policy); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.attemptToken != token {
		c.mu.Unlock()
		return nil, ErrFlowCancelled
	}
	if err := c.checkConfirmableLocked(pendingID); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.state = domain.StateConfirming
	c.mu.Unlock()

	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	resp, err := c.biller.ConfirmPayment(confirmCtx, billerclient.ConfirmPaymentRequest{
		TransactionID: upstreamID,
		PIN:           bundle.PIN,
		EmailOTP:      bundle.EmailOTP,
		TwoFACode:     bundle.TwoFactorCode,
	})
	if err != nil {
		return c.handleConfirmError(ctx, token, err)
	}

	settled := c.buildSettled(resp.Status, resp.Reference, resp.FailureReason)
	return c.settle(ctx, token, settled)
}

// Reconcile resolves an unknown confirm outcome by asking the biller for the
// transaction's settlement status. It is only meaningful while the flow sits
// in the confirming state after a timeout.
func (c *Coordinator) Reconcile(ctx context.Context) (*domain.SettledTransaction, error) {
	c.mu.Lock()
	if c.settled != nil {
		settled := c.settled
		c.mu.Unlock()
		return settled, nil
	}
	if c.state != domain.StateConfirming {
		c.mu.Unlock()
		return nil, ErrNoPendingTransaction
	}
	token := c.attemptToken
	upstreamID := c.upstreamID
	c.mu.Unlock()

	detail, err := c.biller.GetTransaction(ctx, upstreamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}

	switch detail.Status {
	case domain.SettlementCompleted, domain.SettlementFailed:
		settled := c.buildSettled(detail.Status, detail.Reference, detail.FailureReason)
		return c.settle(ctx, token, settled)
	default:
		return nil, ErrOutcomeUnknown
	}
}

// Cancel discards the flow client-side. The upstream pending record, if one
// exists, is left to expire on its own; no revocation is attempted.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state == domain.StateCancelled {
		c.mu.Unlock()
		return nil
	}
	if !c.state.CanTransition(domain.StateCancelled) {
		c.mu.Unlock()
		return ErrNoPendingTransaction
	}
	c.state = domain.StateCancelled
	c.pending = nil
	attemptID := c.attemptID
	// Rotate the token so any in-flight continuation drops its result.
	c.attemptToken = uuid.New()
	c.mu.Unlock()

	if attemptID != uuid.Nil {
		if err := c.journal.UpdateAttemptState(ctx, attemptID, domain.StateCancelled, nil); err != nil {
			log.Printf("level=warn component=coordinator msg=\"journal cancel update failed\" attempt_id=%s err=%v", attemptID, err)
		}
	}
	return nil
}

// checkConfirmableLocked validates that a confirm call may proceed. Callers
// hold the mutex.
func (c *Coordinator) checkConfirmableLocked(pendingID string) error {
	switch c.state {
	case domain.StateCancelled:
		return ErrFlowCancelled
	case domain.StateAwaitingConfirmation:
		// fall through to the id check
	default:
		return ErrNoPendingTransaction
	}
	if c.pending == nil || c.pending.ID != pendingID {
		return ErrPendingTransactionMismatch
	}
	return nil
}

// handleConfirmError routes a failed confirm call into the retryable,
// non-retryable, transport or unknown-outcome buckets.
func (c *Coordinator) handleConfirmError(ctx context.Context, token uuid.UUID, err error) (*domain.SettledTransaction, error) {
	var apiErr *billerclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case billerclient.CodeInvalidPIN, billerclient.CodeInvalidOTP, billerclient.CodeInvalidTwoFactor:
			// Retryable: the pending transaction is still alive; the user
			// may re-enter factors and confirm again with the same id.
			c.transition(ctx, token, domain.StateConfirming, domain.StateAwaitingConfirmation, apiErr.Message)
			return nil, fmt.Errorf("%w: %s", ErrVerificationRejected, apiErr.Message)
		case billerclient.CodeTransactionExpired, billerclient.CodeTransactionNotFound:
			c.transition(ctx, token, domain.StateConfirming, domain.StateFailed, apiErr.Message)
			return nil, fmt.Errorf("%w: %s", ErrPendingExpired, apiErr.Message)
		default:
			c.transition(ctx, token, domain.StateConfirming, domain.StateFailed, apiErr.Message)
			return nil, apiErr
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		// Money may be in flight. Stay in confirming and ask for the
		// authoritative status instead of retrying the confirm.
		if settled, recErr := c.Reconcile(ctx); recErr == nil {
			return settled, nil
		}
		return nil, ErrOutcomeUnknown
	}

	// Plain transport error before any response: safe to let the user try
	// the same pending transaction again.
	c.transition(ctx, token, domain.StateConfirming, domain.StateAwaitingConfirmation, "")
	return nil, fmt.Errorf("confirm request failed: %w", err)
}

// transition moves the flow from one state to another if the attempt token
// still matches, journaling the change.
func (c *Coordinator) transition(ctx context.Context, token uuid.UUID, from, to domain.FlowState, reason string) {
	c.mu.Lock()
	if c.attemptToken != token || c.state != from {
		c.mu.Unlock()
		return
	}
	c.state = to
	if to == domain.StateFailed {
		c.pending = nil
	}
	attemptID := c.attemptID
	c.mu.Unlock()

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := c.journal.UpdateAttemptState(ctx, attemptID, to, reasonPtr); err != nil {
		log.Printf("level=warn component=coordinator msg=\"journal state update failed\" attempt_id=%s state=%s err=%v", attemptID, to, err)
	}
}

// buildSettled assembles the terminal record from a confirm or status
// response, echoing the frozen intent and the server-authoritative amounts.
func (c *Coordinator) buildSettled(status, reference, failureReason string) *domain.SettledTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	settled := &domain.SettledTransaction{
		Status:        status,
		Reference:     reference,
		Intent:        c.intent,
		FailureReason: failureReason,
		SettledAt:     time.Now().UTC(),
	}
	if c.pending != nil {
		settled.ID = c.pending.ID
		settled.Fee = c.pending.Fee
		settled.TotalAmount = c.pending.TotalAmount
		settled.CreatedAt = c.pending.CreatedAt
	} else {
		settled.ID = strconv.FormatInt(c.upstreamID, 10)
	}
	return settled
}

// settle finalizes the flow: records the settlement, signals cache
// invalidation and publishes the settlement event. Side effects are
// best-effort; the terminal state transition is not.
func (c *Coordinator) settle(ctx context.Context, token uuid.UUID, settled *domain.SettledTransaction) (*domain.SettledTransaction, error) {
	terminal := domain.StateSettled
	if settled.Status == domain.SettlementFailed {
		terminal = domain.StateFailed
	}

	c.mu.Lock()
	if c.attemptToken != token {
		c.mu.Unlock()
		return nil, ErrFlowCancelled
	}
	if c.state != domain.StateConfirming {
		c.mu.Unlock()
		return nil, ErrNoPendingTransaction
	}
	c.state = terminal
	c.settled = settled
	c.pending = nil
	attemptID := c.attemptID
	c.mu.Unlock()

	if err := c.journal.UpdateAttemptState(ctx, attemptID, terminal, nil); err != nil {
		log.Printf("level=warn component=coordinator msg=\"journal settle update failed\" attempt_id=%s err=%v", attemptID, err)
	}
	if err := c.journal.RecordSettlement(ctx, c.accountID, settled); err != nil {
		log.Printf("level=warn component=coordinator msg=\"settlement record failed\" transaction_id=%s err=%v", settled.ID, err)
	}

	// The settlement moved money (or definitively did not); either way any
	// cached balance for the account is stale now.
	if c.invalidator != nil {
		if err := c.invalidator.InvalidateBalance(ctx, c.accountID); err != nil {
			log.Printf("level=warn component=coordinator msg=\"balance cache invalidation failed\" account_id=%s err=%v", c.accountID, err)
		}
		if err := c.invalidator.InvalidateBeneficiaries(ctx, c.accountID, settled.Intent.CategoryCode); err != nil {
			log.Printf("level=warn component=coordinator msg=\"beneficiary cache invalidation failed\" account_id=%s err=%v", c.accountID, err)
		}
	}

	if c.events != nil {
		routingKey := rabbitmq.RoutingKeySettled
		if terminal == domain.StateFailed {
			routingKey = rabbitmq.RoutingKeyFailed
		}
		event := domain.TransactionSettledEvent{
			TransactionID: settled.ID,
			AccountID:     c.accountID,
			CategoryCode:  settled.Intent.CategoryCode,
			ProviderID:    settled.Intent.ProviderID,
			Status:        settled.Status,
			Reference:     settled.Reference,
			Amount:        settled.Intent.Amount,
			Fee:           settled.Fee,
			TotalAmount:   settled.TotalAmount,
			FailureReason: settled.FailureReason,
			Timestamp:     settled.SettledAt,
		}
		if err := c.events.Publish(ctx, rabbitmq.EventExchange, routingKey, event); err != nil {
			log.Printf("level=warn component=coordinator msg=\"settlement event publish failed\" transaction_id=%s err=%v", settled.ID, err)
		}
	}

	return settled, nil
}

// failAttempt marks the current attempt failed after an initiate error.
func (c *Coordinator) failAttempt(ctx context.Context, token uuid.UUID, reason string) {
	c.transition(ctx, token, domain.StateInitiating, domain.StateFailed, reason)
}
