/**
 * @description
 * This file contains the core application service for the bill-payment
 * confirmation protocol. The service composes the catalog resolver, the
 * security policy provider, the verification gate, the per-flow transaction
 * coordinators, and the beneficiary directory behind one facade the HTTP
 * layer talks to.
 *
 * Flows are held in an in-memory registry keyed by the pending transaction id
 * the biller assigned on initiate, so confirm, cancel, and reconcile requests
 * can be routed to the coordinator that owns the pending transaction.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpay/billpay-service/internal/domain"
	"github.com/vaultpay/billpay-service/internal/store"
	"github.com/vaultpay/billpay-service/pkg/billerclient"
	"github.com/vaultpay/billpay-service/pkg/rabbitmq"
)

// BillerGateway is the full biller backend surface the service depends on.
// *billerclient.Client satisfies it.
type BillerGateway interface {
	ListProviders(ctx context.Context, categoryCode, countryCode string) ([]billerclient.Provider, error)
	ListPlans(ctx context.Context, providerID int64) ([]billerclient.Plan, error)
	DirectoryAPI
	SecuritySettingsAPI
	BillerAPI
}

// InitiateInput carries the raw user selection for a new payment flow.
// IdempotencyKey is the client-generated UUID for the attempt; empty means
// the service generates one.
type InitiateInput struct {
	CategoryCode   string
	ProviderID     int64
	Amount         string
	Currency       string
	Destination    string
	PlanID         string
	BeneficiaryID  string
	IdempotencyKey string
}

// Service provides the business logic for bill payments.
type Service struct {
	biller      BillerGateway
	resolver    *CatalogResolver
	policies    *SecurityPolicyProvider
	gate        *VerificationGate
	directory   *BeneficiaryDirectory
	registry    *FlowRegistry
	journal     store.Repository
	invalidator CacheInvalidator
	events      rabbitmq.Publisher

	countryCode    string
	confirmTimeout time.Duration
}

// NewService creates a new bill-payment service.
func NewService(
	biller BillerGateway,
	journal store.Repository,
	invalidator CacheInvalidator,
	events rabbitmq.Publisher,
	countryCode string,
	confirmTimeout time.Duration,
	flowTTL time.Duration,
) *Service {
	return &Service{
		biller:         biller,
		resolver:       NewCatalogResolver(),
		policies:       NewSecurityPolicyProvider(biller),
		gate:           NewVerificationGate(),
		directory:      NewBeneficiaryDirectory(biller, invalidator),
		registry:       NewFlowRegistry(flowTTL),
		journal:        journal,
		invalidator:    invalidator,
		events:         events,
		countryCode:    countryCode,
		confirmTimeout: confirmTimeout,
	}
}

// Directory exposes the beneficiary directory for the API layer.
func (s *Service) Directory() *BeneficiaryDirectory {
	return s.directory
}

// ListProviders returns the billers available for a category in the
// configured country.
func (s *Service) ListProviders(ctx context.Context, categoryCode string) ([]domain.Provider, error) {
	if _, ok := domain.RuleForCategory(categoryCode); !ok {
		return nil, ErrUnknownCategory
	}

	records, err := s.biller.ListProviders(ctx, categoryCode, s.countryCode)
	if err != nil {
		return nil, err
	}

	providers := make([]domain.Provider, 0, len(records))
	for _, record := range records {
		providers = append(providers, domain.Provider{
			ID:           record.ID,
			Name:         record.Name,
			CategoryCode: record.CategoryCode,
			CountryCode:  record.CountryCode,
		})
	}
	return providers, nil
}

// ListPlans returns the purchasable plans for a provider.
func (s *Service) ListPlans(ctx context.Context, providerID int64) ([]domain.Plan, error) {
	if providerID == 0 {
		return nil, ErrMissingProvider
	}

	records, err := s.biller.ListPlans(ctx, providerID)
	if err != nil {
		return nil, err
	}

	plans := make([]domain.Plan, 0, len(records))
	for _, record := range records {
		plans = append(plans, planFromWire(record))
	}
	return plans, nil
}

// FetchPolicy returns the verification policy currently in force.
func (s *Service) FetchPolicy(ctx context.Context) domain.VerificationPolicy {
	return s.policies.FetchPolicy(ctx)
}

// InitiateBillPayment resolves the user's selection into a validated payment
// intent, starts a fresh flow, and registers it under the pending transaction
// id the biller assigned.
func (s *Service) InitiateBillPayment(ctx context.Context, accountID string, input InitiateInput) (*domain.PendingTransaction, error) {
	idempotencyKey := uuid.Nil
	if strings.TrimSpace(input.IdempotencyKey) != "" {
		parsed, err := uuid.Parse(input.IdempotencyKey)
		if err != nil {
			return nil, ErrInvalidIdempotencyKey
		}
		idempotencyKey = parsed
		if pending, err := s.replayAttempt(ctx, accountID, idempotencyKey); err != nil || pending != nil {
			return pending, err
		}
	}

	selection := Selection{
		CategoryCode: input.CategoryCode,
		ProviderID:   input.ProviderID,
		Destination:  input.Destination,
		Amount:       input.Amount,
		Currency:     input.Currency,
	}

	if strings.TrimSpace(input.PlanID) != "" {
		plan, err := s.findPlan(ctx, input.ProviderID, input.PlanID)
		if err != nil {
			return nil, err
		}
		selection.Plan = plan
	}

	if strings.TrimSpace(input.BeneficiaryID) != "" {
		beneficiary, err := s.findBeneficiary(ctx, accountID, input.CategoryCode, input.BeneficiaryID)
		if err != nil {
			return nil, err
		}
		selection.Beneficiary = beneficiary
	}

	intent, err := s.resolver.Resolve(selection)
	if err != nil {
		return nil, err
	}

	coordinator := NewCoordinator(
		accountID,
		s.biller,
		s.policies,
		s.gate,
		s.journal,
		s.invalidator,
		s.events,
		s.confirmTimeout,
	)

	pending, err := coordinator.Initiate(ctx, *intent, idempotencyKey)
	if err != nil {
		return nil, err
	}

	s.registry.Register(pending.ID, coordinator)
	log.Printf("level=info component=service msg=\"flow initiated\" account_id=%s pending_id=%s category=%s", accountID, pending.ID, intent.CategoryCode)
	return pending, nil
}

// ConfirmBillPayment routes the verification bundle to the flow that owns the
// pending transaction. Terminal outcomes drop the flow from the registry;
// retryable rejections and unknown outcomes keep it alive.
func (s *Service) ConfirmBillPayment(ctx context.Context, accountID, pendingID string, bundle domain.VerificationBundle) (*domain.SettledTransaction, error) {
	coordinator, err := s.lookupFlow(accountID, pendingID)
	if err != nil {
		return nil, err
	}

	settled, err := coordinator.Confirm(ctx, pendingID, bundle)
	if err == nil {
		s.registry.Remove(pendingID)
		return settled, nil
	}
	if errors.Is(err, ErrPendingExpired) || errors.Is(err, ErrFlowCancelled) {
		s.registry.Remove(pendingID)
	}
	return nil, err
}

// CancelBillPayment abandons an in-flight flow.
func (s *Service) CancelBillPayment(ctx context.Context, accountID, pendingID string) error {
	coordinator, err := s.lookupFlow(accountID, pendingID)
	if err != nil {
		return err
	}
	if err := coordinator.Cancel(ctx); err != nil {
		return err
	}
	s.registry.Remove(pendingID)
	return nil
}

// GetTransaction resolves the current status of a transaction. A live flow
// stuck in the confirming state is reconciled against the biller; otherwise
// the settlement journal answers, falling back to the upstream record for
// transactions journaled by another instance.
func (s *Service) GetTransaction(ctx context.Context, accountID, transactionID string) (*domain.SettledTransaction, error) {
	if coordinator, err := s.lookupFlow(accountID, transactionID); err == nil {
		switch coordinator.State() {
		case domain.StateConfirming:
			settled, err := coordinator.Reconcile(ctx)
			if err == nil {
				s.registry.Remove(transactionID)
				return settled, nil
			}
			if !errors.Is(err, ErrOutcomeUnknown) {
				return nil, err
			}
			// Still pending upstream; report the interim status.
			return s.pendingStatus(coordinator), nil
		case domain.StateSettled, domain.StateFailed:
			if settled := coordinator.Settled(); settled != nil {
				return settled, nil
			}
		default:
			return s.pendingStatus(coordinator), nil
		}
	}

	settled, err := s.journal.FindSettlementByTransactionID(ctx, accountID, transactionID)
	if err == nil {
		return settled, nil
	}
	if !errors.Is(err, store.ErrSettlementNotFound) {
		return nil, err
	}

	return s.fetchUpstream(ctx, accountID, transactionID)
}

func (s *Service) lookupFlow(accountID, pendingID string) (*Coordinator, error) {
	coordinator, err := s.registry.Lookup(pendingID)
	if err != nil {
		return nil, err
	}
	// A flow is private to the account that opened it.
	if coordinator.AccountID() != accountID {
		return nil, ErrFlowNotFound
	}
	return coordinator, nil
}

func (s *Service) pendingStatus(coordinator *Coordinator) *domain.SettledTransaction {
	status := &domain.SettledTransaction{Status: domain.SettlementPending}
	if pending := coordinator.Pending(); pending != nil {
		status.ID = pending.ID
		status.Fee = pending.Fee
		status.TotalAmount = pending.TotalAmount
	}
	return status
}

// replayAttempt answers a retried initiate carrying a previously seen
// idempotency key. A key that produced a pending transaction replays it; a
// key whose attempt never got one is a dead key and must not be reused.
func (s *Service) replayAttempt(ctx context.Context, accountID string, key uuid.UUID) (*domain.PendingTransaction, error) {
	attempt, err := s.journal.FindAttemptByIdempotencyKey(ctx, key)
	if errors.Is(err, store.ErrAttemptNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if attempt.AccountID != accountID {
		return nil, store.ErrDuplicateIdempotencyKey
	}
	if attempt.UpstreamTransactionID == nil || attempt.Fee == nil || attempt.TotalAmount == nil {
		return nil, store.ErrDuplicateIdempotencyKey
	}

	log.Printf("level=info component=service msg=\"initiate replayed from journal\" account_id=%s pending_id=%s", accountID, *attempt.UpstreamTransactionID)
	return &domain.PendingTransaction{
		ID:          *attempt.UpstreamTransactionID,
		Amount:      attempt.Intent.Amount,
		Fee:         *attempt.Fee,
		TotalAmount: *attempt.TotalAmount,
		CreatedAt:   attempt.CreatedAt,
	}, nil
}

func (s *Service) fetchUpstream(ctx context.Context, accountID, transactionID string) (*domain.SettledTransaction, error) {
	upstreamID, err := billerclient.ParseTransactionID(transactionID)
	if err != nil {
		return nil, ErrFlowNotFound
	}

	// The attempt journal is shared by every instance; a transaction id with
	// no attempt row was never ours, and one journaled for another account
	// is not this caller's to read.
	attempt, err := s.journal.FindAttemptByUpstreamTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrAttemptNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	if attempt.AccountID != accountID {
		return nil, ErrFlowNotFound
	}

	detail, err := s.biller.GetTransaction(ctx, upstreamID)
	if err != nil {
		var apiErr *billerclient.APIError
		if errors.As(err, &apiErr) && apiErr.Code == billerclient.CodeTransactionNotFound {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}

	return &domain.SettledTransaction{
		ID:            transactionID,
		Status:        detail.Status,
		Reference:     detail.Reference,
		FailureReason: detail.FailureReason,
	}, nil
}

func (s *Service) findPlan(ctx context.Context, providerID int64, planID string) (*domain.Plan, error) {
	if providerID == 0 {
		return nil, ErrMissingProvider
	}
	records, err := s.biller.ListPlans(ctx, providerID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.ID == planID {
			plan := planFromWire(record)
			return &plan, nil
		}
	}
	return nil, ErrPlanMismatch
}

func (s *Service) findBeneficiary(ctx context.Context, accountID, categoryCode, beneficiaryID string) (*domain.Beneficiary, error) {
	beneficiaries, err := s.directory.List(ctx, accountID, categoryCode)
	if err != nil {
		return nil, err
	}
	for i := range beneficiaries {
		if beneficiaries[i].ID == beneficiaryID {
			return &beneficiaries[i], nil
		}
	}
	return nil, ErrBeneficiaryNotFound
}

func planFromWire(record billerclient.Plan) domain.Plan {
	return domain.Plan{
		ID:         record.ID,
		ProviderID: record.ProviderID,
		Name:       record.Name,
		Amount:     record.Amount,
		Currency:   record.Currency,
	}
}
