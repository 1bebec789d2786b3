package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harborline/harborline/internal/observability"
	"github.com/harborline/harborline/internal/platform/httpx"
	"github.com/harborline/harborline/internal/shipment"
)

// ShipmentDirectory resolves display info for shipments referenced by
// cost records. The directory is read-only from the ledger's view.
type ShipmentDirectory interface {
	GetInfos(ctx context.Context, ids []int64) (map[int64]shipment.Info, error)
}

// Handler serves the expense ledger HTTP API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	shipments ShipmentDirectory
	metrics   *observability.Metrics
	validate  *validator.Validate
}

// NewHandler builds a Handler instance. shipments and metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, shipments ShipmentDirectory, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		shipments: shipments,
		metrics:   metrics,
		validate:  validator.New(),
	}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCosts)
	r.Post("/", h.createCost)

	r.Post("/apply", h.apply)
	r.Post("/settle", h.settle)
	r.Post("/cancel-application", h.cancelApplication)
	r.Post("/cancel-settlement", h.cancelSettlement)

	r.Get("/applications/{number}", h.getApplication)

	r.Get("/{id}", h.getCost)
	r.Put("/{id}", h.updateCost)
	r.Delete("/{id}", h.deleteCost)
}

func (h *Handler) createCost(w http.ResponseWriter, r *http.Request) {
	var req createCostRequest
	if !h.decode(w, r, &req) {
		return
	}

	cost, err := h.service.CreateCost(r.Context(), CreateCostInput{
		Type:               CostType(req.Type),
		Amount:             req.Amount,
		Currency:           req.Currency,
		VATRate:            req.VATRate,
		WHTRate:            req.WHTRate,
		SettlementUnitType: req.SettlementUnitType,
		SettlementUnitID:   req.SettlementUnitID,
		FinancialSubjectID: req.FinancialSubjectID,
		ShipmentID:         req.ShipmentID,
		Remarks:            req.Remarks,
	})
	if err != nil {
		h.respondError(w, "create cost", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCostResponse(cost, nil))
}

func (h *Handler) getCost(w http.ResponseWriter, r *http.Request) {
	cost, err := h.service.GetCost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get cost", err)
		return
	}
	resp := h.enrich(r.Context(), []CostRecord{cost})
	httpx.JSON(w, http.StatusOK, resp[0])
}

func (h *Handler) updateCost(w http.ResponseWriter, r *http.Request) {
	var req updateCostRequest
	if !h.decode(w, r, &req) {
		return
	}

	cost, err := h.service.UpdateCost(r.Context(), chi.URLParam(r, "id"), UpdateCostInput{
		Amount:             req.Amount,
		Currency:           req.Currency,
		VATRate:            req.VATRate,
		WHTRate:            req.WHTRate,
		FinancialSubjectID: req.FinancialSubjectID,
		Remarks:            req.Remarks,
	})
	if err != nil {
		h.respondError(w, "update cost", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCostResponse(cost, nil))
}

func (h *Handler) deleteCost(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCost(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete cost", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCosts(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		h.respondError(w, "list costs", err)
		return
	}

	costs, err := h.service.ListCosts(r.Context(), req)
	if err != nil {
		h.respondError(w, "list costs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listCostsResponse{Costs: h.enrich(r.Context(), costs)})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !h.decode(w, r, &req) {
		return
	}
	dueDate, err := parseDate(req.DueDate, "dueDate")
	if err != nil {
		h.respondError(w, "apply", err)
		return
	}

	result, err := h.service.Apply(r.Context(), ApplyInput{
		CostIDs: req.CostIDs,
		DueDate: dueDate,
		Remarks: req.Remarks,
	})
	h.observe("apply", err)
	if err != nil {
		h.respondError(w, "apply", err)
		return
	}
	httpx.JSON(w, http.StatusOK, applyResponse{
		ApplicationNumber: result.ApplicationNumber,
		Costs:             h.enrich(r.Context(), result.Costs),
	})
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if !h.decode(w, r, &req) {
		return
	}
	settlementDate, err := parseDate(req.SettlementDate, "settlementDate")
	if err != nil {
		h.respondError(w, "settle", err)
		return
	}

	costs, err := h.service.Settle(r.Context(), SettleInput{
		CostIDs:        req.CostIDs,
		SettlementDate: settlementDate,
		Remarks:        req.Remarks,
	})
	h.observe("settle", err)
	if err != nil {
		h.respondError(w, "settle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, settleResponse{
		Message: fmt.Sprintf("%d cost records settled", len(costs)),
		Costs:   h.enrich(r.Context(), costs),
	})
}

func (h *Handler) cancelApplication(w http.ResponseWriter, r *http.Request) {
	var req cancelApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}

	count, err := h.service.CancelApplication(r.Context(), req.ApplicationNumber)
	h.observe("cancel_application", err)
	if err != nil {
		h.respondError(w, "cancel application", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelResponse{
		Message:       fmt.Sprintf("application %s cancelled", req.ApplicationNumber),
		RevertedCount: count,
	})
}

func (h *Handler) cancelSettlement(w http.ResponseWriter, r *http.Request) {
	var req cancelSettlementRequest
	if !h.decode(w, r, &req) {
		return
	}

	count, err := h.service.CancelSettlement(r.Context(), req.CostIDs)
	h.observe("cancel_settlement", err)
	if err != nil {
		h.respondError(w, "cancel settlement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelResponse{
		Message:       "settlement cancelled",
		RevertedCount: count,
	})
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetApplicationDetail(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, "get application", err)
		return
	}
	httpx.JSON(w, http.StatusOK, applicationDetailResponse{
		Application: toApplicationResponse(detail.Application),
		Costs:       h.enrich(r.Context(), detail.Costs),
	})
}

// decode parses and validates a JSON request body. Returns false after
// writing the error response.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrStatusConflict):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCostNotFound), errors.Is(err, ErrApplicationNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) observe(action string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.metrics.IncTransition(action, outcome)
}

// enrich joins shipment display fields into cost responses.
func (h *Handler) enrich(ctx context.Context, costs []CostRecord) []costResponse {
	responses := make([]costResponse, 0, len(costs))
	var infos map[int64]shipment.Info
	if h.shipments != nil {
		ids := make([]int64, 0, len(costs))
		seen := make(map[int64]bool, len(costs))
		for _, cost := range costs {
			if cost.ShipmentID != 0 && !seen[cost.ShipmentID] {
				seen[cost.ShipmentID] = true
				ids = append(ids, cost.ShipmentID)
			}
		}
		var err error
		infos, err = h.shipments.GetInfos(ctx, ids)
		if err != nil {
			// Display enrichment is best effort; the ledger data is intact.
			h.logger.Warn("shipment lookup", slog.Any("error", err))
			infos = nil
		}
	}
	for _, cost := range costs {
		var info *shipment.Info
		if infos != nil {
			if i, ok := infos[cost.ShipmentID]; ok {
				info = &i
			}
		}
		responses = append(responses, toCostResponse(cost, info))
	}
	return responses
}

func parseListRequest(r *http.Request) (ListCostsRequest, error) {
	q := r.URL.Query()
	req := ListCostsRequest{
		SettlementUnitType: q.Get("settlementUnitType"),
		ApplicationNumber:  q.Get("applicationNumber"),
	}

	if v := q.Get("type"); v != "" {
		t := CostType(v)
		if !t.Valid() {
			return ListCostsRequest{}, fmt.Errorf("%w: unknown type %q", ErrValidation, v)
		}
		req.Type = t
	}
	if v := q.Get("status"); v != "" {
		s := CostStatus(v)
		if s != StatusUnapplied && s != StatusApplied && s != StatusSettled {
			return ListCostsRequest{}, fmt.Errorf("%w: unknown status %q", ErrValidation, v)
		}
		req.Status = s
	}
	if v := q.Get("settlementUnitId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ListCostsRequest{}, fmt.Errorf("%w: settlementUnitId must be numeric", ErrValidation)
		}
		req.SettlementUnitID = id
	}
	if v := q.Get("shipmentId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ListCostsRequest{}, fmt.Errorf("%w: shipmentId must be numeric", ErrValidation)
		}
		req.ShipmentID = id
	}
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v, "from")
		if err != nil {
			return ListCostsRequest{}, err
		}
		req.FromDate = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v, "to")
		if err != nil {
			return ListCostsRequest{}, err
		}
		req.ToDate = t.AddDate(0, 0, 1)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ListCostsRequest{}, fmt.Errorf("%w: limit must be a non-negative integer", ErrValidation)
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ListCostsRequest{}, fmt.Errorf("%w: offset must be a non-negative integer", ErrValidation)
		}
		req.Offset = n
	}
	return req, nil
}

func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date in %s format", ErrValidation, field, dateLayout)
	}
	return t, nil
}
