package app

import (
	"context"
	"log"
	"strings"

	"github.com/vaultpay/billpay-service/internal/domain"
	"github.com/vaultpay/billpay-service/pkg/billerclient"
)

// DirectoryAPI is the slice of the biller client the beneficiary directory
// depends on.
type DirectoryAPI interface {
	ListBeneficiaries(ctx context.Context, categoryCode string) ([]billerclient.Beneficiary, error)
	CreateBeneficiary(ctx context.Context, payload billerclient.BeneficiaryPayload) (*billerclient.Beneficiary, error)
	UpdateBeneficiary(ctx context.Context, beneficiaryID string, payload billerclient.BeneficiaryPayload) (*billerclient.Beneficiary, error)
	DeleteBeneficiary(ctx context.Context, beneficiaryID string) error
}

// BeneficiaryDirectory manages saved payment destinations. The biller backend
// is the system of record; this layer validates inputs against the category
// rules before letting a write through and evicts the cached list afterwards.
type BeneficiaryDirectory struct {
	api         DirectoryAPI
	invalidator CacheInvalidator
}

func NewBeneficiaryDirectory(api DirectoryAPI, invalidator CacheInvalidator) *BeneficiaryDirectory {
	return &BeneficiaryDirectory{
		api:         api,
		invalidator: invalidator,
	}
}

// List returns the saved beneficiaries for a category, or all categories when
// categoryCode is empty.
func (d *BeneficiaryDirectory) List(ctx context.Context, accountID, categoryCode string) ([]domain.Beneficiary, error) {
	if categoryCode != "" {
		if _, ok := domain.RuleForCategory(categoryCode); !ok {
			return nil, ErrUnknownCategory
		}
	}

	records, err := d.api.ListBeneficiaries(ctx, categoryCode)
	if err != nil {
		return nil, err
	}

	beneficiaries := make([]domain.Beneficiary, 0, len(records))
	for _, record := range records {
		beneficiaries = append(beneficiaries, beneficiaryFromWire(accountID, record))
	}
	return beneficiaries, nil
}

// Create validates and saves a new beneficiary.
func (d *BeneficiaryDirectory) Create(ctx context.Context, accountID string, input domain.Beneficiary) (*domain.Beneficiary, error) {
	if err := validateBeneficiaryInput(input); err != nil {
		return nil, err
	}

	created, err := d.api.CreateBeneficiary(ctx, beneficiaryToWire(input))
	if err != nil {
		return nil, err
	}

	d.evictList(ctx, accountID, input.CategoryCode)
	result := beneficiaryFromWire(accountID, *created)
	return &result, nil
}

// Update replaces the stored fields of an existing beneficiary.
func (d *BeneficiaryDirectory) Update(ctx context.Context, accountID, beneficiaryID string, input domain.Beneficiary) (*domain.Beneficiary, error) {
	if strings.TrimSpace(beneficiaryID) == "" {
		return nil, ErrBeneficiaryNotFound
	}
	if err := validateBeneficiaryInput(input); err != nil {
		return nil, err
	}

	updated, err := d.api.UpdateBeneficiary(ctx, beneficiaryID, beneficiaryToWire(input))
	if err != nil {
		return nil, err
	}

	d.evictList(ctx, accountID, input.CategoryCode)
	result := beneficiaryFromWire(accountID, *updated)
	return &result, nil
}

// Delete removes a beneficiary.
func (d *BeneficiaryDirectory) Delete(ctx context.Context, accountID, beneficiaryID string) error {
	if strings.TrimSpace(beneficiaryID) == "" {
		return ErrBeneficiaryNotFound
	}
	if err := d.api.DeleteBeneficiary(ctx, beneficiaryID); err != nil {
		return err
	}

	d.evictList(ctx, accountID, "")
	return nil
}

func (d *BeneficiaryDirectory) evictList(ctx context.Context, accountID, categoryCode string) {
	if d.invalidator == nil {
		return
	}
	if err := d.invalidator.InvalidateBeneficiaries(ctx, accountID, categoryCode); err != nil {
		log.Printf("level=warn component=beneficiary_directory msg=\"cache invalidation failed\" account_id=%s err=%v", accountID, err)
	}
}

func validateBeneficiaryInput(input domain.Beneficiary) error {
	rule, ok := domain.RuleForCategory(input.CategoryCode)
	if !ok {
		return ErrUnknownCategory
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		return ErrInvalidBeneficiaryName
	}
	if len(strings.TrimSpace(input.Destination)) < rule.MinDestinationLength {
		return ErrInvalidDestination
	}
	return nil
}

func beneficiaryFromWire(accountID string, record billerclient.Beneficiary) domain.Beneficiary {
	return domain.Beneficiary{
		ID:                record.ID,
		AccountID:         accountID,
		DisplayName:       record.DisplayName,
		Destination:       record.AccountNumber,
		ProviderReference: record.ProviderReference,
		CategoryCode:      record.CategoryCode,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func beneficiaryToWire(input domain.Beneficiary) billerclient.BeneficiaryPayload {
	return billerclient.BeneficiaryPayload{
		DisplayName:       strings.TrimSpace(input.DisplayName),
		AccountNumber:     strings.TrimSpace(input.Destination),
		ProviderReference: strings.TrimSpace(input.ProviderReference),
		CategoryCode:      input.CategoryCode,
	}
}
