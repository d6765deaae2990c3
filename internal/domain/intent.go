/**
 * @description
 * This file defines the payment intent and the bill-payment category catalog.
 * An intent is the normalized, client-validated description of a payment the
 * user wants to make, built before the upstream biller has accepted anything.
 *
 * @notes
 * - Amounts travel as decimal strings end to end to avoid floating-point
 *   rounding drift on financial values.
 * - A PaymentIntent is immutable once constructed; changing any selection
 *   rebuilds the intent from scratch.
 */

package domain

// Bill-payment category codes supported by the biller backend.
const (
	CategoryAirtime  = "airtime"
	CategoryBetting  = "betting"
	CategoryCableTV  = "cable-tv"
	CategoryData     = "data"
	CategoryInternet = "internet"
)

// CategoryRule captures the per-category configuration that used to drift
// across the five bill-payment screens. All category-specific behavior lives
// here as data, not as duplicated control flow.
type CategoryRule struct {
	Code                 string
	Label                string
	DestinationLabel     string
	MinDestinationLength int
	// PlanRequired categories take their amount and currency from the
	// selected plan; free-text amounts are ignored for them.
	PlanRequired bool
}

var categoryRules = map[string]CategoryRule{
	CategoryAirtime: {
		Code:                 CategoryAirtime,
		Label:                "Airtime",
		DestinationLabel:     "Phone Number",
		MinDestinationLength: 10,
	},
	CategoryBetting: {
		Code:                 CategoryBetting,
		Label:                "Betting",
		DestinationLabel:     "Wallet ID",
		MinDestinationLength: 4,
	},
	CategoryCableTV: {
		Code:                 CategoryCableTV,
		Label:                "Cable TV",
		DestinationLabel:     "Smartcard Number",
		MinDestinationLength: 8,
		PlanRequired:         true,
	},
	CategoryData: {
		Code:                 CategoryData,
		Label:                "Data",
		DestinationLabel:     "Phone Number",
		MinDestinationLength: 10,
		PlanRequired:         true,
	},
	CategoryInternet: {
		Code:                 CategoryInternet,
		Label:                "Internet",
		DestinationLabel:     "Account Number",
		MinDestinationLength: 6,
		PlanRequired:         true,
	},
}

// RuleForCategory returns the configuration for a category code.
func RuleForCategory(code string) (CategoryRule, bool) {
	rule, ok := categoryRules[code]
	return rule, ok
}

// Provider is a biller (network operator, bookmaker, TV/ISP company) fetched
// from the upstream catalog. Read-only on this side.
type Provider struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CategoryCode string `json:"category_code"`
	CountryCode  string `json:"country_code"`
}

// Plan is a fixed-price product offered by a provider (a data bundle, a cable
// bouquet). When a plan is selected it is authoritative for amount/currency.
type Plan struct {
	ID         string `json:"id"`
	ProviderID int64  `json:"provider_id"`
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

// PaymentIntent is the normalized description of a payment prior to server
// acceptance. Invariants (enforced by the resolver, relied on everywhere
// else): amount parses as a positive decimal, destination is non-empty,
// provider id is present.
type PaymentIntent struct {
	CategoryCode  string `json:"category_code"`
	ProviderID    int64  `json:"provider_id"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Destination   string `json:"destination"`
	PlanID        string `json:"plan_id,omitempty"`
	BeneficiaryID string `json:"beneficiary_id,omitempty"`
}
