package expense

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harborline/harborline/internal/expense/sequence"
)

// Service implements the cost application and settlement engines. Every
// transition runs as one transaction over the full batch: all records
// move together or none do.
type Service struct {
	repo Repository
	seq  sequence.Allocator
	now  func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo Repository, seq sequence.Allocator) *Service {
	return &Service{repo: repo, seq: seq, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// CreateCost stores a new unapplied cost line.
func (s *Service) CreateCost(ctx context.Context, input CreateCostInput) (CostRecord, error) {
	if !input.Type.Valid() {
		return CostRecord{}, fmt.Errorf("%w: type must be AR or AP", ErrValidation)
	}
	if input.Currency == "" {
		return CostRecord{}, fmt.Errorf("%w: currency required", ErrValidation)
	}
	if input.SettlementUnitType == "" || input.SettlementUnitID == 0 {
		return CostRecord{}, fmt.Errorf("%w: settlement unit required", ErrValidation)
	}
	if input.FinancialSubjectID == 0 {
		return CostRecord{}, fmt.Errorf("%w: financial subject required", ErrValidation)
	}
	// Rejects non-positive amounts and negative rates.
	if _, err := CalculateTax(input.Amount, input.VATRate, input.WHTRate); err != nil {
		return CostRecord{}, err
	}

	now := s.now()
	cost := CostRecord{
		ID:                 uuid.NewString(),
		Type:               input.Type,
		Status:             StatusUnapplied,
		Amount:             input.Amount,
		Currency:           input.Currency,
		VATRate:            input.VATRate,
		WHTRate:            input.WHTRate,
		SettlementUnitType: input.SettlementUnitType,
		SettlementUnitID:   input.SettlementUnitID,
		FinancialSubjectID: input.FinancialSubjectID,
		ShipmentID:         input.ShipmentID,
		Remarks:            input.Remarks,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertCost(ctx, cost); err != nil {
		return CostRecord{}, err
	}
	return cost, nil
}

// UpdateCost edits financial fields of a cost line. Only unapplied
// records are mutable.
func (s *Service) UpdateCost(ctx context.Context, id string, input UpdateCostInput) (CostRecord, error) {
	if input.Currency == "" {
		return CostRecord{}, fmt.Errorf("%w: currency required", ErrValidation)
	}
	if input.FinancialSubjectID == 0 {
		return CostRecord{}, fmt.Errorf("%w: financial subject required", ErrValidation)
	}
	if _, err := CalculateTax(input.Amount, input.VATRate, input.WHTRate); err != nil {
		return CostRecord{}, err
	}

	var updated CostRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockCosts(ctx, []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return fmt.Errorf("%w: %s", ErrCostNotFound, id)
		}
		cost := locked[0]
		if !cost.Status.Mutable() {
			return fmt.Errorf("%w: %s is %s", ErrStatusConflict, id, cost.Status)
		}
		cost.Amount = input.Amount
		cost.Currency = input.Currency
		cost.VATRate = input.VATRate
		cost.WHTRate = input.WHTRate
		cost.FinancialSubjectID = input.FinancialSubjectID
		cost.Remarks = input.Remarks
		cost.UpdatedAt = s.now()
		if err := tx.UpdateCostValues(ctx, cost); err != nil {
			return err
		}
		updated = cost
		return nil
	})
	if err != nil {
		return CostRecord{}, err
	}
	return updated, nil
}

// DeleteCost removes an unapplied cost line. Applied or settled records
// can only leave the ledger through status reversal.
func (s *Service) DeleteCost(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockCosts(ctx, []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return fmt.Errorf("%w: %s", ErrCostNotFound, id)
		}
		if locked[0].Status != StatusUnapplied {
			return fmt.Errorf("%w: %s is %s", ErrStatusConflict, id, locked[0].Status)
		}
		return tx.DeleteCost(ctx, id)
	})
}

// Apply groups unapplied costs into one application. The number is
// allocated before the transaction opens so the counter never serializes
// concurrent applies; a failed apply burns its number.
func (s *Service) Apply(ctx context.Context, input ApplyInput) (ApplyResult, error) {
	ids, err := normalizeIDs(input.CostIDs)
	if err != nil {
		return ApplyResult{}, err
	}
	if input.DueDate.IsZero() {
		return ApplyResult{}, fmt.Errorf("%w: due date required", ErrValidation)
	}
	now := s.now()
	if input.DueDate.Before(startOfDay(now)) {
		return ApplyResult{}, fmt.Errorf("%w: due date must not be in the past", ErrValidation)
	}

	number, err := s.seq.Next(ctx, now)
	if err != nil {
		return ApplyResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockCosts(ctx, ids)
		if err != nil {
			return err
		}
		if err := requireAll(ids, locked); err != nil {
			return err
		}
		for _, cost := range locked {
			if !cost.Status.CanTransition(StatusApplied) {
				return fmt.Errorf("%w: %s is %s", ErrStatusConflict, cost.ID, cost.Status)
			}
		}
		if err := tx.CreateApplication(ctx, Application{
			Number:    number,
			DueDate:   input.DueDate,
			Remarks:   input.Remarks,
			AppliedAt: now,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.MarkApplied(ctx, ids, number, now, input.DueDate, input.Remarks)
	})
	if err != nil {
		return ApplyResult{}, err
	}

	costs, err := s.repo.ListApplicationCosts(ctx, number)
	if err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{ApplicationNumber: number, Costs: costs}, nil
}

// Settle moves applied costs to settled. Members of one application may
// settle in separate batches.
func (s *Service) Settle(ctx context.Context, input SettleInput) ([]CostRecord, error) {
	ids, err := normalizeIDs(input.CostIDs)
	if err != nil {
		return nil, err
	}
	if input.SettlementDate.IsZero() {
		return nil, fmt.Errorf("%w: settlement date required", ErrValidation)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockCosts(ctx, ids)
		if err != nil {
			return err
		}
		if err := requireAll(ids, locked); err != nil {
			return err
		}
		for _, cost := range locked {
			if cost.Status != StatusApplied {
				return fmt.Errorf("%w: %s is %s", ErrStatusConflict, cost.ID, cost.Status)
			}
		}
		return tx.MarkSettled(ctx, ids, input.SettlementDate, input.Remarks)
	})
	if err != nil {
		return nil, err
	}

	costs := make([]CostRecord, 0, len(ids))
	for _, id := range ids {
		cost, err := s.repo.GetCost(ctx, id)
		if err != nil {
			return nil, err
		}
		costs = append(costs, cost)
	}
	return costs, nil
}

// CancelApplication reverts every member of an application back to
// unapplied. The cancellation is rejected outright if any member has
// progressed to settled.
func (s *Service) CancelApplication(ctx context.Context, number string) (int, error) {
	if number == "" {
		return 0, fmt.Errorf("%w: application number required", ErrValidation)
	}

	var reverted int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockApplicationCosts(ctx, number)
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return fmt.Errorf("%w: %s", ErrApplicationNotFound, number)
		}
		ids := make([]string, 0, len(locked))
		for _, cost := range locked {
			if !cost.Status.CanTransition(StatusUnapplied) {
				return fmt.Errorf("%w: %s is %s", ErrStatusConflict, cost.ID, cost.Status)
			}
			ids = append(ids, cost.ID)
		}
		if err := tx.RevertToUnapplied(ctx, ids); err != nil {
			return err
		}
		if err := tx.DeleteApplication(ctx, number); err != nil {
			return err
		}
		reverted = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reverted, nil
}

// CancelSettlement reverts settled costs to applied. Application fields
// stay untouched so the records return to their prior grouping.
func (s *Service) CancelSettlement(ctx context.Context, costIDs []string) (int, error) {
	ids, err := normalizeIDs(costIDs)
	if err != nil {
		return 0, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockCosts(ctx, ids)
		if err != nil {
			return err
		}
		if err := requireAll(ids, locked); err != nil {
			return err
		}
		for _, cost := range locked {
			if cost.Status != StatusSettled {
				return fmt.Errorf("%w: %s is %s", ErrStatusConflict, cost.ID, cost.Status)
			}
		}
		return tx.RevertToApplied(ctx, ids)
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// GetCost fetches a single cost record.
func (s *Service) GetCost(ctx context.Context, id string) (CostRecord, error) {
	return s.repo.GetCost(ctx, id)
}

// ListCosts returns cost records matching the filters.
func (s *Service) ListCosts(ctx context.Context, req ListCostsRequest) ([]CostRecord, error) {
	return s.repo.ListCosts(ctx, req)
}

// GetApplicationDetail loads the aggregate and its members concurrently.
func (s *Service) GetApplicationDetail(ctx context.Context, number string) (ApplicationDetail, error) {
	var detail ApplicationDetail
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app, err := s.repo.GetApplication(ctx, number)
		if err != nil {
			return err
		}
		detail.Application = app
		return nil
	})
	g.Go(func() error {
		costs, err := s.repo.ListApplicationCosts(ctx, number)
		if err != nil {
			return err
		}
		detail.Costs = costs
		return nil
	})
	if err := g.Wait(); err != nil {
		return ApplicationDetail{}, err
	}
	return detail, nil
}

// OverdueApplications lists applications past due with unsettled members.
func (s *Service) OverdueApplications(ctx context.Context, asOf time.Time) ([]Application, error) {
	return s.repo.ListOverdueApplications(ctx, asOf)
}

// normalizeIDs sorts and deduplicates a batch. The sorted order doubles
// as the canonical lock order.
func normalizeIDs(ids []string) ([]string, error) {
	cleaned := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one cost id required", ErrValidation)
	}
	sort.Strings(cleaned)
	return cleaned, nil
}

// requireAll verifies that every requested id was found and locked.
func requireAll(ids []string, locked []CostRecord) error {
	if len(locked) == len(ids) {
		return nil
	}
	found := make(map[string]bool, len(locked))
	for _, cost := range locked {
		found[cost.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("%w: %s", ErrCostNotFound, id)
		}
	}
	return fmt.Errorf("%w: locked set mismatch", ErrStatusConflict)
}

// startOfDay truncates to the UTC calendar date. Request dates arrive
// as UTC midnight, so the comparison must not depend on the server's
// local zone.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
