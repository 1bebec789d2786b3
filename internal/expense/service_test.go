package expense

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/harborline/harborline/internal/expense/sequence"
)

// memRepo is an in-memory Repository. WithTx holds the mutex for the
// whole callback and restores a snapshot on error, mirroring the
// serialization and rollback behavior of the real transaction.
type memRepo struct {
	mu    sync.Mutex
	costs map[string]CostRecord
	apps  map[string]Application

	failMarkApplied error
	failMarkSettled error
}

func newMemRepo() *memRepo {
	return &memRepo{
		costs: make(map[string]CostRecord),
		apps:  make(map[string]Application),
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	costsSnap := make(map[string]CostRecord, len(r.costs))
	for k, v := range r.costs {
		costsSnap[k] = v
	}
	appsSnap := make(map[string]Application, len(r.apps))
	for k, v := range r.apps {
		appsSnap[k] = v
	}

	if err := fn(ctx, &memTx{repo: r}); err != nil {
		r.costs = costsSnap
		r.apps = appsSnap
		return err
	}
	return nil
}

func (r *memRepo) InsertCost(_ context.Context, cost CostRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.costs[cost.ID] = cost
	return nil
}

func (r *memRepo) GetCost(_ context.Context, id string) (CostRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cost, ok := r.costs[id]
	if !ok {
		return CostRecord{}, ErrCostNotFound
	}
	return cost, nil
}

func (r *memRepo) ListCosts(_ context.Context, req ListCostsRequest) ([]CostRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CostRecord
	for _, cost := range r.costs {
		if req.Type != "" && cost.Type != req.Type {
			continue
		}
		if req.Status != "" && cost.Status != req.Status {
			continue
		}
		out = append(out, cost)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) GetApplication(_ context.Context, number string) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[number]
	if !ok {
		return Application{}, ErrApplicationNotFound
	}
	return app, nil
}

func (r *memRepo) ListApplicationCosts(_ context.Context, number string) ([]CostRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberCosts(number), nil
}

func (r *memRepo) ListOverdueApplications(_ context.Context, asOf time.Time) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Application
	for _, app := range r.apps {
		if !app.DueDate.Before(asOf) {
			continue
		}
		for _, cost := range r.memberCosts(app.Number) {
			if cost.Status != StatusSettled {
				out = append(out, app)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memRepo) memberCosts(number string) []CostRecord {
	var out []CostRecord
	for _, cost := range r.costs {
		if cost.ApplicationNumber != nil && *cost.ApplicationNumber == number {
			out = append(out, cost)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) LockCosts(_ context.Context, ids []string) ([]CostRecord, error) {
	var out []CostRecord
	for _, id := range ids {
		if cost, ok := t.repo.costs[id]; ok {
			out = append(out, cost)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) LockApplicationCosts(_ context.Context, number string) ([]CostRecord, error) {
	return t.repo.memberCosts(number), nil
}

func (t *memTx) CreateApplication(_ context.Context, app Application) error {
	if _, exists := t.repo.apps[app.Number]; exists {
		return ErrStatusConflict
	}
	t.repo.apps[app.Number] = app
	return nil
}

func (t *memTx) DeleteApplication(_ context.Context, number string) error {
	delete(t.repo.apps, number)
	return nil
}

func (t *memTx) MarkApplied(_ context.Context, ids []string, number string, appliedAt, dueDate time.Time, remarks string) error {
	if t.repo.failMarkApplied != nil {
		return t.repo.failMarkApplied
	}
	for _, id := range ids {
		cost := t.repo.costs[id]
		cost.Status = StatusApplied
		num, appDate, due := number, appliedAt, dueDate
		cost.ApplicationNumber = &num
		cost.ApplicationDate = &appDate
		cost.DueDate = &due
		cost.Remarks = remarks
		cost.UpdatedAt = appliedAt
		t.repo.costs[id] = cost
	}
	return nil
}

func (t *memTx) MarkSettled(_ context.Context, ids []string, settledAt time.Time, remarks string) error {
	if t.repo.failMarkSettled != nil {
		return t.repo.failMarkSettled
	}
	for _, id := range ids {
		cost := t.repo.costs[id]
		cost.Status = StatusSettled
		settled := settledAt
		cost.SettlementDate = &settled
		cost.Remarks = remarks
		t.repo.costs[id] = cost
	}
	return nil
}

func (t *memTx) RevertToUnapplied(_ context.Context, ids []string) error {
	for _, id := range ids {
		cost := t.repo.costs[id]
		cost.Status = StatusUnapplied
		cost.ApplicationNumber = nil
		cost.ApplicationDate = nil
		cost.DueDate = nil
		t.repo.costs[id] = cost
	}
	return nil
}

func (t *memTx) RevertToApplied(_ context.Context, ids []string) error {
	for _, id := range ids {
		cost := t.repo.costs[id]
		cost.Status = StatusApplied
		cost.SettlementDate = nil
		t.repo.costs[id] = cost
	}
	return nil
}

func (t *memTx) UpdateCostValues(_ context.Context, cost CostRecord) error {
	if _, ok := t.repo.costs[cost.ID]; !ok {
		return ErrCostNotFound
	}
	t.repo.costs[cost.ID] = cost
	return nil
}

func (t *memTx) DeleteCost(_ context.Context, id string) error {
	delete(t.repo.costs, id)
	return nil
}

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService(repo *memRepo) *Service {
	svc := NewService(repo, sequence.NewMemoryAllocator())
	svc.WithNow(func() time.Time { return testNow })
	return svc
}

func seedCost(t *testing.T, repo *memRepo, status CostStatus) string {
	t.Helper()
	id := uuid.NewString()
	cost := CostRecord{
		ID:                 id,
		Type:               CostTypeAP,
		Status:             status,
		Amount:             d("1000"),
		Currency:           "USD",
		VATRate:            d("7"),
		WHTRate:            d("3"),
		SettlementUnitType: "SUPPLIER",
		SettlementUnitID:   42,
		FinancialSubjectID: 7,
		ShipmentID:         100,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
	require.NoError(t, repo.InsertCost(context.Background(), cost))
	return id
}

func applyCosts(t *testing.T, svc *Service, ids ...string) ApplyResult {
	t.Helper()
	res, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: ids,
		DueDate: testNow.AddDate(0, 0, 30),
		Remarks: "march batch",
	})
	require.NoError(t, err)
	return res
}

func TestCreateCost(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	cost, err := svc.CreateCost(context.Background(), CreateCostInput{
		Type:               CostTypeAR,
		Amount:             d("2500"),
		Currency:           "USD",
		VATRate:            d("7"),
		SettlementUnitType: "CUSTOMER",
		SettlementUnitID:   9,
		FinancialSubjectID: 3,
		ShipmentID:         11,
	})
	require.NoError(t, err)
	require.NotEmpty(t, cost.ID)
	require.Equal(t, StatusUnapplied, cost.Status)
	require.Nil(t, cost.ApplicationNumber)

	stored, err := repo.GetCost(context.Background(), cost.ID)
	require.NoError(t, err)
	require.True(t, stored.Amount.Equal(d("2500")))
}

func TestCreateCostValidation(t *testing.T) {
	svc := newTestService(newMemRepo())
	base := CreateCostInput{
		Type:               CostTypeAP,
		Amount:             d("100"),
		Currency:           "USD",
		SettlementUnitType: "SUPPLIER",
		SettlementUnitID:   1,
		FinancialSubjectID: 1,
	}

	cases := []struct {
		name   string
		mutate func(*CreateCostInput)
	}{
		{"bad type", func(in *CreateCostInput) { in.Type = "GL" }},
		{"missing currency", func(in *CreateCostInput) { in.Currency = "" }},
		{"missing unit", func(in *CreateCostInput) { in.SettlementUnitID = 0 }},
		{"missing subject", func(in *CreateCostInput) { in.FinancialSubjectID = 0 }},
		{"zero amount", func(in *CreateCostInput) { in.Amount = decimal.Zero }},
		{"negative vat", func(in *CreateCostInput) { in.VATRate = d("-1") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, err := svc.CreateCost(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestApply(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)
	b := seedCost(t, repo, StatusUnapplied)

	res := applyCosts(t, svc, a, b, a) // duplicate id is collapsed
	require.Equal(t, "AP-20260315-0001", res.ApplicationNumber)
	require.Len(t, res.Costs, 2)
	for _, cost := range res.Costs {
		require.Equal(t, StatusApplied, cost.Status)
		require.NotNil(t, cost.ApplicationNumber)
		require.Equal(t, res.ApplicationNumber, *cost.ApplicationNumber)
		require.NotNil(t, cost.DueDate)
		require.Equal(t, "march batch", cost.Remarks)
	}

	app, err := repo.GetApplication(context.Background(), res.ApplicationNumber)
	require.NoError(t, err)
	require.Equal(t, testNow, app.AppliedAt)
}

func TestApplyValidation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	id := seedCost(t, repo, StatusUnapplied)

	_, err := svc.Apply(context.Background(), ApplyInput{DueDate: testNow})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Apply(context.Background(), ApplyInput{CostIDs: []string{id}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{id},
		DueDate: testNow.AddDate(0, 0, -1),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestApplyDueToday(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	id := seedCost(t, repo, StatusUnapplied)

	_, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{id},
		DueDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestApplyDueTodayOnWestOfUTCClock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, sequence.NewMemoryAllocator())
	loc := time.FixedZone("UTC-5", -5*60*60)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, loc) })
	id := seedCost(t, repo, StatusUnapplied)

	// Today's calendar date parses to UTC midnight, which is earlier
	// than 10:00-05:00 on the wall clock but not a past date.
	_, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{id},
		DueDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{id},
		DueDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestApplyUnknownCost(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	id := seedCost(t, repo, StatusUnapplied)

	_, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{id, uuid.NewString()},
		DueDate: testNow.AddDate(0, 0, 7),
	})
	require.ErrorIs(t, err, ErrCostNotFound)

	// The known record must not have moved.
	cost, err := repo.GetCost(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusUnapplied, cost.Status)
}

func TestApplyRejectsAppliedMember(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	fresh := seedCost(t, repo, StatusUnapplied)
	taken := seedCost(t, repo, StatusApplied)

	_, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{fresh, taken},
		DueDate: testNow.AddDate(0, 0, 7),
	})
	require.ErrorIs(t, err, ErrStatusConflict)

	cost, err := repo.GetCost(context.Background(), fresh)
	require.NoError(t, err)
	require.Equal(t, StatusUnapplied, cost.Status)
	require.Nil(t, cost.ApplicationNumber)
}

func TestApplyTwiceConflicts(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)
	b := seedCost(t, repo, StatusUnapplied)

	res := applyCosts(t, svc, a, b)

	_, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{a, b},
		DueDate: testNow.AddDate(0, 0, 30),
	})
	require.ErrorIs(t, err, ErrStatusConflict)

	// No second aggregate was minted and the first grouping is intact.
	require.Len(t, repo.apps, 1)
	cost, err := repo.GetCost(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, res.ApplicationNumber, *cost.ApplicationNumber)
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	repo := newMemRepo()
	repo.failMarkApplied = errors.New("boom")
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)
	b := seedCost(t, repo, StatusUnapplied)

	_, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{a, b},
		DueDate: testNow.AddDate(0, 0, 7),
	})
	require.Error(t, err)

	// Neither the records nor the aggregate survive the failed apply.
	for _, id := range []string{a, b} {
		cost, err := repo.GetCost(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, StatusUnapplied, cost.Status)
	}
	require.Empty(t, repo.apps)
}

func TestApplyCancelRoundTrip(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)
	b := seedCost(t, repo, StatusUnapplied)

	res := applyCosts(t, svc, a, b)

	n, err := svc.CancelApplication(context.Background(), res.ApplicationNumber)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, id := range []string{a, b} {
		cost, err := repo.GetCost(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, StatusUnapplied, cost.Status)
		require.Nil(t, cost.ApplicationNumber)
		require.Nil(t, cost.ApplicationDate)
		require.Nil(t, cost.DueDate)
	}
	_, err = repo.GetApplication(context.Background(), res.ApplicationNumber)
	require.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestCancelApplicationUnknownNumber(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.CancelApplication(context.Background(), "AP-20260101-0001")
	require.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestCancelApplicationRejectedWhenMemberSettled(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)
	b := seedCost(t, repo, StatusUnapplied)

	res := applyCosts(t, svc, a, b)
	_, err := svc.Settle(context.Background(), SettleInput{
		CostIDs:        []string{a},
		SettlementDate: testNow,
	})
	require.NoError(t, err)

	_, err = svc.CancelApplication(context.Background(), res.ApplicationNumber)
	require.ErrorIs(t, err, ErrStatusConflict)

	// The unsettled member keeps its grouping.
	cost, err := repo.GetCost(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, cost.Status)
	require.NotNil(t, cost.ApplicationNumber)
}

func TestSettlePartialBatches(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)
	b := seedCost(t, repo, StatusUnapplied)

	applyCosts(t, svc, a, b)

	first, err := svc.Settle(context.Background(), SettleInput{
		CostIDs:        []string{a},
		SettlementDate: testNow,
	})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, StatusSettled, first[0].Status)

	other, err := repo.GetCost(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, other.Status)

	_, err = svc.Settle(context.Background(), SettleInput{
		CostIDs:        []string{b},
		SettlementDate: testNow.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
}

func TestSettleRejectsUnappliedMember(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	applied := seedCost(t, repo, StatusApplied)
	fresh := seedCost(t, repo, StatusUnapplied)

	_, err := svc.Settle(context.Background(), SettleInput{
		CostIDs:        []string{applied, fresh},
		SettlementDate: testNow,
	})
	require.ErrorIs(t, err, ErrStatusConflict)

	cost, err := repo.GetCost(context.Background(), applied)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, cost.Status)
	require.Nil(t, cost.SettlementDate)
}

func TestSettleAlreadySettled(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	id := seedCost(t, repo, StatusSettled)

	_, err := svc.Settle(context.Background(), SettleInput{
		CostIDs:        []string{id},
		SettlementDate: testNow,
	})
	require.ErrorIs(t, err, ErrStatusConflict)
}

func TestCancelSettlementKeepsGrouping(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)

	res := applyCosts(t, svc, a)
	_, err := svc.Settle(context.Background(), SettleInput{
		CostIDs:        []string{a},
		SettlementDate: testNow,
	})
	require.NoError(t, err)

	n, err := svc.CancelSettlement(context.Background(), []string{a})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	cost, err := repo.GetCost(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, cost.Status)
	require.Nil(t, cost.SettlementDate)
	require.NotNil(t, cost.ApplicationNumber)
	require.Equal(t, res.ApplicationNumber, *cost.ApplicationNumber)
}

func TestCancelSettlementRejectsApplied(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	id := seedCost(t, repo, StatusApplied)

	_, err := svc.CancelSettlement(context.Background(), []string{id})
	require.ErrorIs(t, err, ErrStatusConflict)
}

func TestUpdateCostOnlyWhenUnapplied(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	fresh := seedCost(t, repo, StatusUnapplied)
	applied := seedCost(t, repo, StatusApplied)

	input := UpdateCostInput{
		Amount:             d("750"),
		Currency:           "EUR",
		VATRate:            d("19"),
		FinancialSubjectID: 8,
		Remarks:            "revised",
	}

	updated, err := svc.UpdateCost(context.Background(), fresh, input)
	require.NoError(t, err)
	require.True(t, updated.Amount.Equal(d("750")))
	require.Equal(t, "EUR", updated.Currency)

	_, err = svc.UpdateCost(context.Background(), applied, input)
	require.ErrorIs(t, err, ErrStatusConflict)

	_, err = svc.UpdateCost(context.Background(), uuid.NewString(), input)
	require.ErrorIs(t, err, ErrCostNotFound)
}

func TestDeleteCostOnlyWhenUnapplied(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	fresh := seedCost(t, repo, StatusUnapplied)
	applied := seedCost(t, repo, StatusApplied)

	require.NoError(t, svc.DeleteCost(context.Background(), fresh))
	_, err := repo.GetCost(context.Background(), fresh)
	require.ErrorIs(t, err, ErrCostNotFound)

	err = svc.DeleteCost(context.Background(), applied)
	require.ErrorIs(t, err, ErrStatusConflict)
}

func TestConcurrentAppliesDisjoint(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	const batches = 8
	ids := make([][]string, batches)
	for i := range ids {
		ids[i] = []string{
			seedCost(t, repo, StatusUnapplied),
			seedCost(t, repo, StatusUnapplied),
		}
	}

	var g errgroup.Group
	numbers := make([]string, batches)
	for i := range ids {
		i := i
		g.Go(func() error {
			res, err := svc.Apply(context.Background(), ApplyInput{
				CostIDs: ids[i],
				DueDate: testNow.AddDate(0, 0, 14),
			})
			if err != nil {
				return err
			}
			numbers[i] = res.ApplicationNumber
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, batches)
	for _, number := range numbers {
		require.False(t, seen[number], "number %s allocated twice", number)
		seen[number] = true
	}
}

func TestConcurrentAppliesOverlapping(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	shared := seedCost(t, repo, StatusUnapplied)

	const attempts = 8
	var g errgroup.Group
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.Apply(context.Background(), ApplyInput{
				CostIDs: []string{shared},
				DueDate: testNow.AddDate(0, 0, 14),
			})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var won int
	for _, err := range results {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrStatusConflict)
		}
	}
	require.Equal(t, 1, won)

	cost, err := repo.GetCost(context.Background(), shared)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, cost.Status)
	require.Len(t, repo.apps, 1)
}

func TestOverdueApplications(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	overdue := seedCost(t, repo, StatusUnapplied)
	settledID := seedCost(t, repo, StatusUnapplied)

	res1, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{overdue},
		DueDate: testNow.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	res2, err := svc.Apply(context.Background(), ApplyInput{
		CostIDs: []string{settledID},
		DueDate: testNow.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	_, err = svc.Settle(context.Background(), SettleInput{
		CostIDs:        []string{settledID},
		SettlementDate: testNow,
	})
	require.NoError(t, err)

	apps, err := svc.OverdueApplications(context.Background(), testNow.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, res1.ApplicationNumber, apps[0].Number)
	require.NotEqual(t, res2.ApplicationNumber, apps[0].Number)
}

func TestGetApplicationDetail(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	a := seedCost(t, repo, StatusUnapplied)
	b := seedCost(t, repo, StatusUnapplied)

	res := applyCosts(t, svc, a, b)

	detail, err := svc.GetApplicationDetail(context.Background(), res.ApplicationNumber)
	require.NoError(t, err)
	require.Equal(t, res.ApplicationNumber, detail.Application.Number)
	require.Len(t, detail.Costs, 2)

	_, err = svc.GetApplicationDetail(context.Background(), "AP-19990101-0001")
	require.ErrorIs(t, err, ErrApplicationNotFound)
}
