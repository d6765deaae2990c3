/**
 * @description
 * This file defines the typed error taxonomy for the bill-payment core.
 * Validation errors never reach the network; flow errors let the state
 * machine and the API layer decide the next state deterministically instead
 * of relying on control-flow unwinding.
 */

package app

import (
	"errors"
	"strings"
)

// Validation errors produced by the catalog resolver before any network call.
var (
	ErrUnknownCategory    = errors.New("unknown bill-payment category")
	ErrMissingProvider    = errors.New("provider is required")
	ErrMissingPlan        = errors.New("a plan selection is required for this category")
	ErrPlanMismatch       = errors.New("selected plan does not belong to the selected provider")
	ErrInvalidDestination = errors.New("destination account is missing or too short")
	ErrInvalidAmount      = errors.New("amount must be a positive decimal")

	// ErrInvalidIdempotencyKey rejects an Idempotency-Key header that is not
	// a UUID. A malformed key is a client bug; silently generating one would
	// defeat the retry protection the client thinks it has.
	ErrInvalidIdempotencyKey = errors.New("idempotency key must be a valid uuid")
)

// Beneficiary directory errors.
var (
	ErrBeneficiaryNotFound    = errors.New("beneficiary not found")
	ErrInvalidBeneficiaryName = errors.New("beneficiary display name is required")
)

// Flow errors produced by the transaction coordinator.
var (
	// ErrFlowInProgress rejects a second initiate while a pending
	// transaction is still outstanding on the same coordinator.
	ErrFlowInProgress = errors.New("a pending transaction is already outstanding for this flow")

	ErrNoPendingTransaction       = errors.New("no pending transaction is awaiting confirmation")
	ErrPendingTransactionMismatch = errors.New("pending transaction id does not belong to this flow")
	ErrFlowCancelled              = errors.New("flow has been cancelled")
	ErrFlowNotFound               = errors.New("flow not found or expired")

	// ErrVerificationRejected marks a retryable confirm failure: the pending
	// transaction is still alive upstream and the user may re-enter factors
	// and confirm again with the same pending id.
	ErrVerificationRejected = errors.New("verification factors rejected")

	// ErrPendingExpired marks a non-retryable confirm failure: the pending
	// transaction is dead upstream and the flow must restart from idle.
	ErrPendingExpired = errors.New("pending transaction expired or unknown upstream")

	// ErrOutcomeUnknown is returned when a confirm call timed out with money
	// possibly in flight. The flow stays in the confirming state and must be
	// resolved through reconciliation, never an automatic confirm retry.
	ErrOutcomeUnknown = errors.New("confirmation outcome unknown; reconciliation required")
)

// MissingFactorsError reports which verification factors a bundle lacks. It
// is produced locally by the gate and never reaches the network.
type MissingFactorsError struct {
	Factors []string
}

func (e *MissingFactorsError) Error() string {
	return "Please provide your " + JoinFactors(e.Factors)
}

// JoinFactors renders an ordered factor list as a user-facing fragment:
// "PIN", "PIN and Email OTP", "PIN, Email OTP and 2FA Code".
func JoinFactors(factors []string) string {
	switch len(factors) {
	case 0:
		return ""
	case 1:
		return factors[0]
	default:
		return strings.Join(factors[:len(factors)-1], ", ") + " and " + factors[len(factors)-1]
	}
}
