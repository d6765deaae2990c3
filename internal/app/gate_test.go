package app

import (
	"errors"
	"testing"

	"github.com/vaultpay/billpay-service/internal/domain"
)

func TestVerifyPassesWithAllRequiredFactors(t *testing.T) {
	gate := NewVerificationGate()
	policy := domain.VerificationPolicy{RequirePIN: true, RequireEmailOTP: true, RequireTwoFactor: true}
	bundle := domain.VerificationBundle{PIN: "12345", EmailOTP: "54321", TwoFactorCode: "123456"}

	if err := gate.Verify(bundle, policy); err != nil {
		t.Fatalf("expected bundle to pass, got %v", err)
	}
}

func TestVerifyReportsMissingFactorsInDisplayOrder(t *testing.T) {
	gate := NewVerificationGate()
	policy := domain.VerificationPolicy{RequirePIN: true, RequireEmailOTP: true, RequireTwoFactor: true}

	err := gate.Verify(domain.VerificationBundle{}, policy)
	var missing *MissingFactorsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFactorsError, got %v", err)
	}
	want := []string{domain.FactorPIN, domain.FactorEmailOTP, domain.FactorTwoFactorCode}
	if len(missing.Factors) != len(want) {
		t.Fatalf("expected %d missing factors, got %v", len(want), missing.Factors)
	}
	for i, factor := range want {
		if missing.Factors[i] != factor {
			t.Fatalf("factor order mismatch at %d: want %q got %q", i, factor, missing.Factors[i])
		}
	}
	if missing.Error() != "Please provide your PIN, Email OTP and 2FA Code" {
		t.Fatalf("unexpected message: %q", missing.Error())
	}
}

func TestVerifyChecksFactorShapes(t *testing.T) {
	gate := NewVerificationGate()

	cases := []struct {
		name    string
		policy  domain.VerificationPolicy
		bundle  domain.VerificationBundle
		missing []string
	}{
		{
			name:    "short pin",
			policy:  domain.VerificationPolicy{RequirePIN: true},
			bundle:  domain.VerificationBundle{PIN: "1234"},
			missing: []string{domain.FactorPIN},
		},
		{
			name:    "non numeric pin",
			policy:  domain.VerificationPolicy{RequirePIN: true},
			bundle:  domain.VerificationBundle{PIN: "12a45"},
			missing: []string{domain.FactorPIN},
		},
		{
			name:    "otp wrong length",
			policy:  domain.VerificationPolicy{RequirePIN: true, RequireEmailOTP: true},
			bundle:  domain.VerificationBundle{PIN: "12345", EmailOTP: "1234"},
			missing: []string{domain.FactorEmailOTP},
		},
		{
			name:    "short 2fa code",
			policy:  domain.VerificationPolicy{RequirePIN: true, RequireTwoFactor: true},
			bundle:  domain.VerificationBundle{PIN: "12345", TwoFactorCode: "12345"},
			missing: []string{domain.FactorTwoFactorCode},
		},
		{
			name:   "longer 2fa code accepted",
			policy: domain.VerificationPolicy{RequirePIN: true, RequireTwoFactor: true},
			bundle: domain.VerificationBundle{PIN: "12345", TwoFactorCode: "12345678"},
		},
		{
			name:   "otp ignored when not required",
			policy: domain.VerificationPolicy{RequirePIN: true},
			bundle: domain.VerificationBundle{PIN: "12345", EmailOTP: "99"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Verify(tc.bundle, tc.policy)
			if len(tc.missing) == 0 {
				if err != nil {
					t.Fatalf("expected pass, got %v", err)
				}
				return
			}
			var missing *MissingFactorsError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingFactorsError, got %v", err)
			}
			if len(missing.Factors) != len(tc.missing) {
				t.Fatalf("want %v, got %v", tc.missing, missing.Factors)
			}
			for i := range tc.missing {
				if missing.Factors[i] != tc.missing[i] {
					t.Fatalf("want %v, got %v", tc.missing, missing.Factors)
				}
			}
		})
	}
}

func TestJoinFactors(t *testing.T) {
	cases := []struct {
		factors []string
		want    string
	}{
		{[]string{"PIN"}, "PIN"},
		{[]string{"PIN", "Email OTP"}, "PIN and Email OTP"},
		{[]string{"PIN", "Email OTP", "2FA Code"}, "PIN, Email OTP and 2FA Code"},
	}
	for _, tc := range cases {
		if got := JoinFactors(tc.factors); got != tc.want {
			t.Errorf("JoinFactors(%v) = %q, want %q", tc.factors, got, tc.want)
		}
	}
}
