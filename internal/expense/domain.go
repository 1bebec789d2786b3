package expense

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CostType distinguishes receivable from payable cost lines.
type CostType string

const (
	CostTypeAR CostType = "AR"
	CostTypeAP CostType = "AP"
)

// Valid reports whether the type is one of the known values.
func (t CostType) Valid() bool {
	return t == CostTypeAR || t == CostTypeAP
}

// CostStatus enumerates the settlement lifecycle states of a cost record.
type CostStatus string

const (
	StatusUnapplied CostStatus = "UNAPPLIED"
	StatusApplied   CostStatus = "APPLIED"
	StatusSettled   CostStatus = "SETTLED"
)

// CanTransition reports whether moving from s to next is a legal edge.
// The lifecycle is UNAPPLIED -> APPLIED -> SETTLED with both forward
// edges reversible; everything else is rejected here so call sites never
// re-derive legality.
func (s CostStatus) CanTransition(next CostStatus) bool {
	switch s {
	case StatusUnapplied:
		return next == StatusApplied
	case StatusApplied:
		return next == StatusSettled || next == StatusUnapplied
	case StatusSettled:
		return next == StatusApplied
	}
	return false
}

// Mutable reports whether financial fields may still be edited.
func (s CostStatus) Mutable() bool {
	return s == StatusUnapplied
}

// CostRecord is one receivable or payable cost line tied to a shipment.
type CostRecord struct {
	ID                 string
	Type               CostType
	Status             CostStatus
	Amount             decimal.Decimal
	Currency           string
	VATRate            decimal.Decimal
	WHTRate            decimal.Decimal
	SettlementUnitType string
	SettlementUnitID   int64
	FinancialSubjectID int64
	ShipmentID         int64
	ApplicationNumber  *string
	ApplicationDate    *time.Time
	DueDate            *time.Time
	SettlementDate     *time.Time
	Remarks            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Application groups the cost records minted by one apply action. The
// number doubles as the aggregate identity; member records carry it as
// their application_number.
type Application struct {
	Number    string
	DueDate   time.Time
	Remarks   string
	AppliedAt time.Time
	CreatedAt time.Time
}

// Sentinel errors surfaced by the engines. Handlers map these onto the
// HTTP error contract.
var (
	ErrCostNotFound        = errors.New("expense: cost record not found")
	ErrApplicationNotFound = errors.New("expense: application not found")
	ErrStatusConflict      = errors.New("expense: record not in expected status")
	ErrValidation          = errors.New("expense: validation failed")
)

// --- Input DTOs ---

// CreateCostInput describes a new unapplied cost line.
type CreateCostInput struct {
	Type               CostType
	Amount             decimal.Decimal
	Currency           string
	VATRate            decimal.Decimal
	WHTRate            decimal.Decimal
	SettlementUnitType string
	SettlementUnitID   int64
	FinancialSubjectID int64
	ShipmentID         int64
	Remarks            string
}

// UpdateCostInput edits financial fields of an unapplied cost line.
type UpdateCostInput struct {
	Amount             decimal.Decimal
	Currency           string
	VATRate            decimal.Decimal
	WHTRate            decimal.Decimal
	FinancialSubjectID int64
	Remarks            string
}

// ApplyInput groups unapplied costs into one application.
type ApplyInput struct {
	CostIDs []string
	DueDate time.Time
	Remarks string
}

// SettleInput settles applied costs.
type SettleInput struct {
	CostIDs        []string
	SettlementDate time.Time
	Remarks        string
}

// ApplyResult reports the allocated number and the updated records.
type ApplyResult struct {
	ApplicationNumber string
	Costs             []CostRecord
}

// ApplicationDetail joins the aggregate with its member records.
type ApplicationDetail struct {
	Application Application
	Costs       []CostRecord
}

// ListCostsRequest filters cost listings.
type ListCostsRequest struct {
	Type               CostType
	Status             CostStatus
	SettlementUnitType string
	SettlementUnitID   int64
	ShipmentID         int64
	ApplicationNumber  string
	FromDate           time.Time
	ToDate             time.Time
	Limit              int
	Offset             int
}
