/**
 * @description
 * This file implements the verification gate: the pure, side-effect-free
 * check that a user-supplied verification bundle satisfies the account's
 * fetched policy. A failed gate blocks the confirm call locally, saving the
 * round trip; it is re-run on every confirm attempt since the bundle may
 * change between attempts.
 */

package app

import "github.com/vaultpay/billpay-service/internal/domain"

// VerificationGate validates factor bundles against verification policies.
type VerificationGate struct{}

// NewVerificationGate creates a new gate.
func NewVerificationGate() *VerificationGate {
	return &VerificationGate{}
}

// Verify checks the bundle against the policy. On failure it returns a
// *MissingFactorsError listing the missing factor names in display order:
// PIN, then Email OTP, then 2FA Code. Factor values are length- and
// digits-checked only; actual factor correctness is the server's call.
func (g *VerificationGate) Verify(bundle domain.VerificationBundle, policy domain.VerificationPolicy) error {
	var missing []string

	if len(bundle.PIN) < domain.PINLength || !allDigits(bundle.PIN) {
		missing = append(missing, domain.FactorPIN)
	}
	if policy.RequireEmailOTP {
		if len(bundle.EmailOTP) != domain.EmailOTPLength || !allDigits(bundle.EmailOTP) {
			missing = append(missing, domain.FactorEmailOTP)
		}
	}
	if policy.RequireTwoFactor {
		if len(bundle.TwoFactorCode) < domain.TwoFactorCodeLength || !allDigits(bundle.TwoFactorCode) {
			missing = append(missing, domain.FactorTwoFactorCode)
		}
	}

	if len(missing) > 0 {
		return &MissingFactorsError{Factors: missing}
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
