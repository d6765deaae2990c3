package app

import (
	"context"
	"errors"
	"testing"

	"github.com/vaultpay/billpay-service/internal/domain"
	"github.com/vaultpay/billpay-service/pkg/billerclient"
)

type directoryAPIStub struct {
	beneficiaries []billerclient.Beneficiary
	listErr       error

	created *billerclient.BeneficiaryPayload
	updated *billerclient.BeneficiaryPayload
	deleted string
}

func (s *directoryAPIStub) ListBeneficiaries(ctx context.Context, categoryCode string) ([]billerclient.Beneficiary, error) {
	return s.beneficiaries, s.listErr
}

func (s *directoryAPIStub) CreateBeneficiary(ctx context.Context, payload billerclient.BeneficiaryPayload) (*billerclient.Beneficiary, error) {
	s.created = &payload
	return &billerclient.Beneficiary{
		ID:            "ben-1",
		DisplayName:   payload.DisplayName,
		AccountNumber: payload.AccountNumber,
		CategoryCode:  payload.CategoryCode,
	}, nil
}

func (s *directoryAPIStub) UpdateBeneficiary(ctx context.Context, beneficiaryID string, payload billerclient.BeneficiaryPayload) (*billerclient.Beneficiary, error) {
	s.updated = &payload
	return &billerclient.Beneficiary{
		ID:            beneficiaryID,
		DisplayName:   payload.DisplayName,
		AccountNumber: payload.AccountNumber,
		CategoryCode:  payload.CategoryCode,
	}, nil
}

func (s *directoryAPIStub) DeleteBeneficiary(ctx context.Context, beneficiaryID string) error {
	s.deleted = beneficiaryID
	return nil
}

func TestDirectoryListMapsRecords(t *testing.T) {
	api := &directoryAPIStub{
		beneficiaries: []billerclient.Beneficiary{
			{ID: "ben-1", DisplayName: "Home MTN", AccountNumber: "08012345678", CategoryCode: domain.CategoryAirtime},
		},
	}
	directory := NewBeneficiaryDirectory(api, nil)

	list, err := directory.List(context.Background(), "acct-1", domain.CategoryAirtime)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one beneficiary, got %d", len(list))
	}
	if list[0].AccountID != "acct-1" || list[0].Destination != "08012345678" {
		t.Fatalf("wire record not mapped: %+v", list[0])
	}
}

func TestDirectoryListRejectsUnknownCategory(t *testing.T) {
	directory := NewBeneficiaryDirectory(&directoryAPIStub{}, nil)
	if _, err := directory.List(context.Background(), "acct-1", "electricity"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestDirectoryCreateValidatesInput(t *testing.T) {
	api := &directoryAPIStub{}
	directory := NewBeneficiaryDirectory(api, nil)

	cases := []struct {
		name  string
		input domain.Beneficiary
		want  error
	}{
		{
			name:  "unknown category",
			input: domain.Beneficiary{CategoryCode: "electricity", DisplayName: "x", Destination: "08012345678"},
			want:  ErrUnknownCategory,
		},
		{
			name:  "empty display name",
			input: domain.Beneficiary{CategoryCode: domain.CategoryAirtime, DisplayName: "  ", Destination: "08012345678"},
			want:  ErrInvalidBeneficiaryName,
		},
		{
			name:  "short destination",
			input: domain.Beneficiary{CategoryCode: domain.CategoryAirtime, DisplayName: "Home", Destination: "0801"},
			want:  ErrInvalidDestination,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := directory.Create(context.Background(), "acct-1", tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	if api.created != nil {
		t.Fatal("invalid input must not reach the network")
	}
}

func TestDirectoryCreateTrimsAndEvictsCache(t *testing.T) {
	api := &directoryAPIStub{}
	invalidator := &invalidatorStub{}
	directory := NewBeneficiaryDirectory(api, invalidator)

	created, err := directory.Create(context.Background(), "acct-1", domain.Beneficiary{
		CategoryCode: domain.CategoryAirtime,
		DisplayName:  " Home MTN ",
		Destination:  " 08012345678 ",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if api.created.DisplayName != "Home MTN" || api.created.AccountNumber != "08012345678" {
		t.Fatalf("payload not trimmed: %+v", api.created)
	}
	if created.ID != "ben-1" || created.AccountID != "acct-1" {
		t.Fatalf("created record not mapped: %+v", created)
	}
	if invalidator.beneficiaryCalls != 1 {
		t.Fatalf("expected one cache eviction, got %d", invalidator.beneficiaryCalls)
	}
}

func TestDirectoryUpdateRequiresID(t *testing.T) {
	directory := NewBeneficiaryDirectory(&directoryAPIStub{}, nil)
	_, err := directory.Update(context.Background(), "acct-1", " ", domain.Beneficiary{
		CategoryCode: domain.CategoryAirtime,
		DisplayName:  "Home",
		Destination:  "08012345678",
	})
	if !errors.Is(err, ErrBeneficiaryNotFound) {
		t.Fatalf("expected ErrBeneficiaryNotFound, got %v", err)
	}
}

func TestDirectoryDeleteEvictsCache(t *testing.T) {
	api := &directoryAPIStub{}
	invalidator := &invalidatorStub{}
	directory := NewBeneficiaryDirectory(api, invalidator)

	if err := directory.Delete(context.Background(), "acct-1", "ben-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if api.deleted != "ben-1" {
		t.Fatalf("expected delete to reach the api, got %q", api.deleted)
	}
	if invalidator.beneficiaryCalls != 1 {
		t.Fatalf("expected one cache eviction, got %d", invalidator.beneficiaryCalls)
	}
}
