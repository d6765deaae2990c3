/**
 * @description
 * This file defines the security verification domain: the dynamically
 * configured policy of required factors, and the transient bundle of
 * user-entered factor values submitted with a confirm call.
 *
 * @notes
 * - RequirePIN is a fail-safe invariant: it is forced true no matter what the
 *   settings endpoint returns, so the baseline factor can never be silently
 *   disabled by a bad or missing server response.
 * - A VerificationBundle must never be logged or persisted. It deliberately
 *   has no JSON tags and a redacting String method so a stray %v cannot leak
 *   factor values.
 */

package domain

// Fixed factor lengths for this domain. PIN and email OTP are 5-digit codes;
// the authenticator code is at least 6 digits.
const (
	PINLength           = 5
	EmailOTPLength      = 5
	TwoFactorCodeLength = 6
)

// Human-readable factor names, in the order they are surfaced to the user.
const (
	FactorPIN           = "PIN"
	FactorEmailOTP      = "Email OTP"
	FactorTwoFactorCode = "2FA Code"
)

// VerificationPolicy is the account's required factor set, fetched from the
// remote settings endpoint once per confirmation attempt.
type VerificationPolicy struct {
	RequirePIN       bool `json:"require_pin"`
	RequireEmailOTP  bool `json:"require_email_otp"`
	RequireTwoFactor bool `json:"require_two_factor"`
}

// RequiredFactors returns the ordered factor names the policy demands.
func (p VerificationPolicy) RequiredFactors() []string {
	factors := []string{FactorPIN}
	if p.RequireEmailOTP {
		factors = append(factors, FactorEmailOTP)
	}
	if p.RequireTwoFactor {
		factors = append(factors, FactorTwoFactorCode)
	}
	return factors
}

// VerificationBundle holds the user-entered factor values for one confirm
// attempt. Transient; exists only for the duration of the call.
type VerificationBundle struct {
	PIN           string
	EmailOTP      string
	TwoFactorCode string
}

// String redacts every factor value.
func (b VerificationBundle) String() string {
	return "VerificationBundle{REDACTED}"
}
