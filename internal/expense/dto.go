package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline/harborline/internal/shipment"
)

const dateLayout = "2006-01-02"

// money renders a decimal as a bare JSON number. The global
// decimal.MarshalJSONWithoutQuotes switch is deliberately left alone so
// importing this package never changes behavior elsewhere.
type money struct {
	decimal.Decimal
}

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

// --- request payloads ---

type createCostRequest struct {
	Type               string          `json:"type" validate:"required,oneof=AR AP"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency" validate:"required"`
	VATRate            decimal.Decimal `json:"vatRate"`
	WHTRate            decimal.Decimal `json:"whtRate"`
	SettlementUnitType string          `json:"settlementUnitType" validate:"required,oneof=CUSTOMER SUPPLIER"`
	SettlementUnitID   int64           `json:"settlementUnitId" validate:"required"`
	FinancialSubjectID int64           `json:"financialSubjectId" validate:"required"`
	ShipmentID         int64           `json:"shipmentId"`
	Remarks            string          `json:"remarks"`
}

type updateCostRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency" validate:"required"`
	VATRate            decimal.Decimal `json:"vatRate"`
	WHTRate            decimal.Decimal `json:"whtRate"`
	FinancialSubjectID int64           `json:"financialSubjectId" validate:"required"`
	Remarks            string          `json:"remarks"`
}

type applyRequest struct {
	CostIDs []string `json:"costIds" validate:"required,min=1"`
	DueDate string   `json:"dueDate" validate:"required"`
	Remarks string   `json:"remarks"`
}

type settleRequest struct {
	CostIDs        []string `json:"costIds" validate:"required,min=1"`
	SettlementDate string   `json:"settlementDate" validate:"required"`
	Remarks        string   `json:"remarks"`
}

type cancelApplicationRequest struct {
	ApplicationNumber string `json:"applicationNumber" validate:"required"`
}

type cancelSettlementRequest struct {
	CostIDs []string `json:"costIds" validate:"required,min=1"`
}

// --- response payloads ---

type costResponse struct {
	ID                 string     `json:"id"`
	Type               CostType   `json:"type"`
	Status             CostStatus `json:"status"`
	Amount             money      `json:"amount"`
	Currency           string     `json:"currency"`
	VATRate            money      `json:"vatRate"`
	WHTRate            money      `json:"whtRate"`
	VATAmount          money      `json:"vatAmount"`
	WHTAmount          money      `json:"whtAmount"`
	Total              money      `json:"total"`
	SettlementUnitType string          `json:"settlementUnitType"`
	SettlementUnitID   int64           `json:"settlementUnitId"`
	FinancialSubjectID int64           `json:"financialSubjectId"`
	ShipmentID         int64           `json:"shipmentId,omitempty"`
	ShipmentCode       string          `json:"shipmentCode,omitempty"`
	BLNumber           string          `json:"blNumber,omitempty"`
	ApplicationNumber  *string         `json:"applicationNumber"`
	ApplicationDate    *string         `json:"applicationDate"`
	DueDate            *string         `json:"dueDate"`
	SettlementDate     *string         `json:"settlementDate"`
	Remarks            string          `json:"remarks,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type applicationResponse struct {
	Number    string    `json:"number"`
	DueDate   string    `json:"dueDate"`
	Remarks   string    `json:"remarks,omitempty"`
	AppliedAt time.Time `json:"appliedAt"`
}

type applyResponse struct {
	ApplicationNumber string         `json:"applicationNumber"`
	Costs             []costResponse `json:"costs"`
}

type settleResponse struct {
	Message string         `json:"message"`
	Costs   []costResponse `json:"costs"`
}

type cancelResponse struct {
	Message       string `json:"message"`
	RevertedCount int    `json:"revertedCount"`
}

type listCostsResponse struct {
	Costs []costResponse `json:"costs"`
}

type applicationDetailResponse struct {
	Application applicationResponse `json:"application"`
	Costs       []costResponse      `json:"costs"`
}

func toCostResponse(cost CostRecord, info *shipment.Info) costResponse {
	resp := costResponse{
		ID:                 cost.ID,
		Type:               cost.Type,
		Status:             cost.Status,
		Amount:             money{cost.Amount},
		Currency:           cost.Currency,
		VATRate:            money{cost.VATRate},
		WHTRate:            money{cost.WHTRate},
		SettlementUnitType: cost.SettlementUnitType,
		SettlementUnitID:   cost.SettlementUnitID,
		FinancialSubjectID: cost.FinancialSubjectID,
		ShipmentID:         cost.ShipmentID,
		ApplicationNumber:  cost.ApplicationNumber,
		ApplicationDate:    formatDatePtr(cost.ApplicationDate),
		DueDate:            formatDatePtr(cost.DueDate),
		SettlementDate:     formatDatePtr(cost.SettlementDate),
		Remarks:            cost.Remarks,
		CreatedAt:          cost.CreatedAt,
		UpdatedAt:          cost.UpdatedAt,
	}
	// Stored rates are validated at entry, so derivation cannot fail here.
	if tax, err := CalculateTax(cost.Amount, cost.VATRate, cost.WHTRate); err == nil {
		resp.VATAmount = money{tax.VAT}
		resp.WHTAmount = money{tax.WHT}
		resp.Total = money{tax.Total}
	}
	if info != nil {
		resp.ShipmentCode = info.Code
		resp.BLNumber = info.BLNumber
	}
	return resp
}

func toApplicationResponse(app Application) applicationResponse {
	return applicationResponse{
		Number:    app.Number,
		DueDate:   app.DueDate.Format(dateLayout),
		Remarks:   app.Remarks,
		AppliedAt: app.AppliedAt,
	}
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
