package app

import (
	"errors"
	"testing"

	"github.com/vaultpay/billpay-service/internal/domain"
)

func TestResolveAirtimeSelection(t *testing.T) {
	resolver := NewCatalogResolver()

	intent, err := resolver.Resolve(Selection{
		CategoryCode: domain.CategoryAirtime,
		ProviderID:   7,
		Destination:  "08012345678",
		Amount:       "500",
		Currency:     "NGN",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if intent.CategoryCode != domain.CategoryAirtime || intent.ProviderID != 7 {
		t.Fatalf("selection not carried into intent: %+v", intent)
	}
	if intent.Amount != "500" || intent.Currency != "NGN" {
		t.Fatalf("amount not carried into intent: %+v", intent)
	}
}

func TestResolvePlanIsAuthoritativeForAmount(t *testing.T) {
	resolver := NewCatalogResolver()

	intent, err := resolver.Resolve(Selection{
		CategoryCode: domain.CategoryData,
		ProviderID:   3,
		Destination:  "08012345678",
		Amount:       "1", // client-side estimate; the plan wins
		Currency:     "USD",
		Plan:         &domain.Plan{ID: "plan-9", ProviderID: 3, Amount: "1200", Currency: "NGN"},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if intent.Amount != "1200" || intent.Currency != "NGN" {
		t.Fatalf("plan amount must override the selection: %+v", intent)
	}
	if intent.PlanID != "plan-9" {
		t.Fatalf("plan id not carried: %+v", intent)
	}
}

func TestResolveBeneficiaryPrefillsDestination(t *testing.T) {
	resolver := NewCatalogResolver()

	intent, err := resolver.Resolve(Selection{
		CategoryCode: domain.CategoryBetting,
		ProviderID:   2,
		Amount:       "1000",
		Currency:     "NGN",
		Beneficiary:  &domain.Beneficiary{ID: "ben-1", Destination: "123456"},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if intent.Destination != "123456" {
		t.Fatalf("beneficiary destination not applied: %+v", intent)
	}
	if intent.BeneficiaryID != "ben-1" {
		t.Fatalf("beneficiary id not carried: %+v", intent)
	}
}

func TestResolveValidationFailures(t *testing.T) {
	resolver := NewCatalogResolver()

	cases := []struct {
		name string
		sel  Selection
		want error
	}{
		{
			name: "unknown category",
			sel:  Selection{CategoryCode: "electricity"},
			want: ErrUnknownCategory,
		},
		{
			name: "missing provider",
			sel:  Selection{CategoryCode: domain.CategoryAirtime},
			want: ErrMissingProvider,
		},
		{
			name: "short destination",
			sel:  Selection{CategoryCode: domain.CategoryAirtime, ProviderID: 7, Destination: "0801", Amount: "500", Currency: "NGN"},
			want: ErrInvalidDestination,
		},
		{
			name: "plan required",
			sel:  Selection{CategoryCode: domain.CategoryData, ProviderID: 3, Destination: "08012345678"},
			want: ErrMissingPlan,
		},
		{
			name: "plan from another provider",
			sel: Selection{
				CategoryCode: domain.CategoryData,
				ProviderID:   3,
				Destination:  "08012345678",
				Plan:         &domain.Plan{ID: "plan-9", ProviderID: 4, Amount: "1200", Currency: "NGN"},
			},
			want: ErrPlanMismatch,
		},
		{
			name: "zero amount",
			sel:  Selection{CategoryCode: domain.CategoryAirtime, ProviderID: 7, Destination: "08012345678", Amount: "0", Currency: "NGN"},
			want: ErrInvalidAmount,
		},
		{
			name: "negative amount",
			sel:  Selection{CategoryCode: domain.CategoryAirtime, ProviderID: 7, Destination: "08012345678", Amount: "-5", Currency: "NGN"},
			want: ErrInvalidAmount,
		},
		{
			name: "non numeric amount",
			sel:  Selection{CategoryCode: domain.CategoryAirtime, ProviderID: 7, Destination: "08012345678", Amount: "50O", Currency: "NGN"},
			want: ErrInvalidAmount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := resolver.Resolve(tc.sel); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}
