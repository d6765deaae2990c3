/**
 * @description
 * This file implements the catalog resolver: the pure function that turns a
 * user's provider/plan/beneficiary selection into a validated PaymentIntent.
 * It operates only on data already fetched by its collaborators and performs
 * no I/O of its own.
 *
 * @notes
 * - For plan-required categories (cable TV, data, internet) the selected
 *   plan is authoritative for amount and currency; free-text amounts are
 *   ignored rather than merged.
 * - Amounts are validated with shopspring/decimal so "0", "0.00" and
 *   negative strings are all rejected the same way.
 */

package app

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vaultpay/billpay-service/internal/domain"
)

// Selection is the raw user input for one bill payment, plus the catalog
// records the caller has already resolved for it.
type Selection struct {
	CategoryCode string
	ProviderID   int64
	Destination  string
	Amount       string
	Currency     string

	// Plan is the fetched plan record when the user picked one; nil otherwise.
	Plan *domain.Plan
	// Beneficiary pre-fills the destination when the user picked a saved one.
	Beneficiary *domain.Beneficiary
}

// CatalogResolver builds payment intents from selections.
type CatalogResolver struct{}

// NewCatalogResolver creates a new resolver.
func NewCatalogResolver() *CatalogResolver {
	return &CatalogResolver{}
}

// Resolve validates a selection and produces an immutable PaymentIntent.
// All failures are client-side validation errors; nothing here touches the
// network.
func (r *CatalogResolver) Resolve(sel Selection) (*domain.PaymentIntent, error) {
	rule, ok := domain.RuleForCategory(sel.CategoryCode)
	if !ok {
		return nil, ErrUnknownCategory
	}
	if sel.ProviderID == 0 {
		return nil, ErrMissingProvider
	}

	destination := strings.TrimSpace(sel.Destination)
	beneficiaryID := ""
	if sel.Beneficiary != nil {
		beneficiaryID = sel.Beneficiary.ID
		if destination == "" {
			destination = strings.TrimSpace(sel.Beneficiary.Destination)
		}
	}
	if len(destination) < rule.MinDestinationLength {
		return nil, ErrInvalidDestination
	}

	amount := strings.TrimSpace(sel.Amount)
	currency := strings.TrimSpace(sel.Currency)
	planID := ""
	if rule.PlanRequired && sel.Plan == nil {
		return nil, ErrMissingPlan
	}
	if sel.Plan != nil {
		if sel.Plan.ProviderID != sel.ProviderID {
			return nil, ErrPlanMismatch
		}
		planID = sel.Plan.ID
		amount = sel.Plan.Amount
		currency = sel.Plan.Currency
	}

	value, err := decimal.NewFromString(amount)
	if err != nil || !value.IsPositive() {
		return nil, ErrInvalidAmount
	}

	return &domain.PaymentIntent{
		CategoryCode:  rule.Code,
		ProviderID:    sel.ProviderID,
		Currency:      currency,
		Amount:        amount,
		Destination:   destination,
		PlanID:        planID,
		BeneficiaryID: beneficiaryID,
	}, nil
}
