package expense

import (
	"context"
	"time"
)

// Repository defines ledger data access. Read paths run outside of
// transactions; every state transition goes through WithTx so a batch
// either commits in full or not at all.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	InsertCost(ctx context.Context, cost CostRecord) error
	GetCost(ctx context.Context, id string) (CostRecord, error)
	ListCosts(ctx context.Context, req ListCostsRequest) ([]CostRecord, error)

	GetApplication(ctx context.Context, number string) (Application, error)
	ListApplicationCosts(ctx context.Context, number string) ([]CostRecord, error)
	ListOverdueApplications(ctx context.Context, asOf time.Time) ([]Application, error)
}

// TxRepository exposes the operations available inside a transaction.
// LockCosts and LockApplicationCosts acquire row locks in ascending id
// order, so two batches over overlapping id sets never deadlock; the
// loser blocks until the winner commits and then fails its status check.
type TxRepository interface {
	LockCosts(ctx context.Context, ids []string) ([]CostRecord, error)
	LockApplicationCosts(ctx context.Context, number string) ([]CostRecord, error)

	CreateApplication(ctx context.Context, app Application) error
	DeleteApplication(ctx context.Context, number string) error

	MarkApplied(ctx context.Context, ids []string, number string, appliedAt, dueDate time.Time, remarks string) error
	MarkSettled(ctx context.Context, ids []string, settledAt time.Time, remarks string) error
	RevertToUnapplied(ctx context.Context, ids []string) error
	RevertToApplied(ctx context.Context, ids []string) error

	UpdateCostValues(ctx context.Context, cost CostRecord) error
	DeleteCost(ctx context.Context, id string) error
}
