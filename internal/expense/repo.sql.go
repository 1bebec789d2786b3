package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/harborline/internal/platform/db"
)

const costColumns = `id, cost_type, status, amount, currency, vat_rate, wht_rate,
settlement_unit_type, settlement_unit_id, financial_subject_id, shipment_id,
application_number, application_date, due_date, settlement_date, remarks,
created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence for the ledger.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository on the given pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// WithTx wraps fn in a repeatable-read transaction. Serialization and
// deadlock failures surface as status conflicts so callers retry the
// whole request rather than a partial one.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
	if err != nil {
		return translateTxError(err)
	}
	return nil
}

func translateTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: concurrent transition in progress", ErrStatusConflict)
		}
	}
	return err
}

// InsertCost stores a new cost record. Single-row insert, no explicit
// transaction needed.
func (r *PGRepository) InsertCost(ctx context.Context, cost CostRecord) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO cost_records
(id, cost_type, status, amount, currency, vat_rate, wht_rate, settlement_unit_type,
 settlement_unit_id, financial_subject_id, shipment_id, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		cost.ID, cost.Type, cost.Status, cost.Amount, cost.Currency, cost.VATRate, cost.WHTRate,
		cost.SettlementUnitType, cost.SettlementUnitID, cost.FinancialSubjectID, cost.ShipmentID,
		cost.Remarks, cost.CreatedAt, cost.UpdatedAt)
	if err != nil {
		return fmt.Errorf("expense: insert cost: %w", err)
	}
	return nil
}

// GetCost fetches a single cost record.
func (r *PGRepository) GetCost(ctx context.Context, id string) (CostRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+costColumns+` FROM cost_records WHERE id = $1`, id)
	cost, err := scanCost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return CostRecord{}, fmt.Errorf("%w: %s", ErrCostNotFound, id)
	}
	return cost, err
}

// ListCosts returns cost records matching the filters.
func (r *PGRepository) ListCosts(ctx context.Context, req ListCostsRequest) ([]CostRecord, error) {
	query := `SELECT ` + costColumns + ` FROM cost_records WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if req.Type != "" {
		query += ` AND cost_type = ` + arg(req.Type)
	}
	if req.Status != "" {
		query += ` AND status = ` + arg(req.Status)
	}
	if req.SettlementUnitType != "" {
		query += ` AND settlement_unit_type = ` + arg(req.SettlementUnitType)
	}
	if req.SettlementUnitID != 0 {
		query += ` AND settlement_unit_id = ` + arg(req.SettlementUnitID)
	}
	if req.ShipmentID != 0 {
		query += ` AND shipment_id = ` + arg(req.ShipmentID)
	}
	if req.ApplicationNumber != "" {
		query += ` AND application_number = ` + arg(req.ApplicationNumber)
	}
	if !req.FromDate.IsZero() {
		query += ` AND created_at >= ` + arg(req.FromDate)
	}
	if !req.ToDate.IsZero() {
		query += ` AND created_at < ` + arg(req.ToDate)
	}
	query += ` ORDER BY created_at DESC, id`
	if req.Limit > 0 {
		query += ` LIMIT ` + arg(req.Limit)
	}
	if req.Offset > 0 {
		query += ` OFFSET ` + arg(req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expense: list costs: %w", err)
	}
	defer rows.Close()
	return collectCosts(rows)
}

// GetApplication fetches one application aggregate.
func (r *PGRepository) GetApplication(ctx context.Context, number string) (Application, error) {
	var app Application
	err := r.pool.QueryRow(ctx, `SELECT number, due_date, remarks, applied_at, created_at
FROM cost_applications WHERE number = $1`, number).
		Scan(&app.Number, &app.DueDate, &app.Remarks, &app.AppliedAt, &app.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, fmt.Errorf("%w: %s", ErrApplicationNotFound, number)
	}
	if err != nil {
		return Application{}, fmt.Errorf("expense: get application: %w", err)
	}
	return app, nil
}

// ListApplicationCosts returns every cost record grouped under a number.
func (r *PGRepository) ListApplicationCosts(ctx context.Context, number string) ([]CostRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+costColumns+` FROM cost_records
WHERE application_number = $1 ORDER BY id`, number)
	if err != nil {
		return nil, fmt.Errorf("expense: list application costs: %w", err)
	}
	defer rows.Close()
	return collectCosts(rows)
}

// ListOverdueApplications returns applications past due with at least one
// member not yet settled.
func (r *PGRepository) ListOverdueApplications(ctx context.Context, asOf time.Time) ([]Application, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.number, a.due_date, a.remarks, a.applied_at, a.created_at
FROM cost_applications a
WHERE a.due_date < $1
  AND EXISTS (
    SELECT 1 FROM cost_records c
    WHERE c.application_number = a.number AND c.status <> $2
  )
ORDER BY a.due_date, a.number`, asOf, StatusSettled)
	if err != nil {
		return nil, fmt.Errorf("expense: list overdue applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var app Application
		if err := rows.Scan(&app.Number, &app.DueDate, &app.Remarks, &app.AppliedAt, &app.CreatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// --- transaction scope ---

type pgTxRepository struct {
	tx pgx.Tx
}

var _ TxRepository = (*pgTxRepository)(nil)

// LockCosts acquires row locks for the given ids. The caller passes ids
// in ascending order; ORDER BY id keeps the lock acquisition order
// canonical inside the statement as well.
func (t *pgTxRepository) LockCosts(ctx context.Context, ids []string) ([]CostRecord, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+costColumns+` FROM cost_records
WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("expense: lock costs: %w", err)
	}
	defer rows.Close()
	return collectCosts(rows)
}

func (t *pgTxRepository) LockApplicationCosts(ctx context.Context, number string) ([]CostRecord, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+costColumns+` FROM cost_records
WHERE application_number = $1 ORDER BY id FOR UPDATE`, number)
	if err != nil {
		return nil, fmt.Errorf("expense: lock application costs: %w", err)
	}
	defer rows.Close()
	return collectCosts(rows)
}

func (t *pgTxRepository) CreateApplication(ctx context.Context, app Application) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO cost_applications (number, due_date, remarks, applied_at, created_at)
VALUES ($1, $2, $3, $4, $5)`, app.Number, app.DueDate, app.Remarks, app.AppliedAt, app.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: application number %s already exists", ErrStatusConflict, app.Number)
		}
		return fmt.Errorf("expense: create application: %w", err)
	}
	return nil
}

func (t *pgTxRepository) DeleteApplication(ctx context.Context, number string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cost_applications WHERE number = $1`, number)
	if err != nil {
		return fmt.Errorf("expense: delete application: %w", err)
	}
	return nil
}

func (t *pgTxRepository) MarkApplied(ctx context.Context, ids []string, number string, appliedAt, dueDate time.Time, remarks string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE cost_records SET
status = $1, application_number = $2, application_date = $3, due_date = $4,
remarks = $5, updated_at = $6
WHERE id = ANY($7)`, StatusApplied, number, appliedAt, dueDate, remarks, appliedAt, ids)
	if err != nil {
		return fmt.Errorf("expense: mark applied: %w", err)
	}
	return checkRowCount(tag, len(ids))
}

func (t *pgTxRepository) MarkSettled(ctx context.Context, ids []string, settledAt time.Time, remarks string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE cost_records SET
status = $1, settlement_date = $2, remarks = $3, updated_at = now()
WHERE id = ANY($4)`, StatusSettled, settledAt, remarks, ids)
	if err != nil {
		return fmt.Errorf("expense: mark settled: %w", err)
	}
	return checkRowCount(tag, len(ids))
}

func (t *pgTxRepository) RevertToUnapplied(ctx context.Context, ids []string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE cost_records SET
status = $1, application_number = NULL, application_date = NULL, due_date = NULL, updated_at = now()
WHERE id = ANY($2)`, StatusUnapplied, ids)
	if err != nil {
		return fmt.Errorf("expense: revert to unapplied: %w", err)
	}
	return checkRowCount(tag, len(ids))
}

func (t *pgTxRepository) RevertToApplied(ctx context.Context, ids []string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE cost_records SET
status = $1, settlement_date = NULL, updated_at = now()
WHERE id = ANY($2)`, StatusApplied, ids)
	if err != nil {
		return fmt.Errorf("expense: revert to applied: %w", err)
	}
	return checkRowCount(tag, len(ids))
}

func (t *pgTxRepository) UpdateCostValues(ctx context.Context, cost CostRecord) error {
	tag, err := t.tx.Exec(ctx, `UPDATE cost_records SET
amount = $1, currency = $2, vat_rate = $3, wht_rate = $4,
financial_subject_id = $5, remarks = $6, updated_at = $7
WHERE id = $8`, cost.Amount, cost.Currency, cost.VATRate, cost.WHTRate,
		cost.FinancialSubjectID, cost.Remarks, cost.UpdatedAt, cost.ID)
	if err != nil {
		return fmt.Errorf("expense: update cost: %w", err)
	}
	return checkRowCount(tag, 1)
}

func (t *pgTxRepository) DeleteCost(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM cost_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("expense: delete cost: %w", err)
	}
	return checkRowCount(tag, 1)
}

// checkRowCount guards against a batch update drifting from the locked
// set; any mismatch aborts the transaction.
func checkRowCount(tag pgconn.CommandTag, want int) error {
	if int(tag.RowsAffected()) != want {
		return fmt.Errorf("%w: expected %d rows, touched %d", ErrStatusConflict, want, tag.RowsAffected())
	}
	return nil
}

func scanCost(row pgx.Row) (CostRecord, error) {
	var c CostRecord
	err := row.Scan(&c.ID, &c.Type, &c.Status, &c.Amount, &c.Currency, &c.VATRate, &c.WHTRate,
		&c.SettlementUnitType, &c.SettlementUnitID, &c.FinancialSubjectID, &c.ShipmentID,
		&c.ApplicationNumber, &c.ApplicationDate, &c.DueDate, &c.SettlementDate, &c.Remarks,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func collectCosts(rows pgx.Rows) ([]CostRecord, error) {
	var costs []CostRecord
	for rows.Next() {
		cost, err := scanCost(rows)
		if err != nil {
			return nil, err
		}
		costs = append(costs, cost)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return costs, nil
}
