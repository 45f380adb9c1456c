package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmastock/stock-system/internal/api/metrics"
	"github.com/pharmastock/stock-system/internal/core/domain"
	"github.com/pharmastock/stock-system/internal/core/ports"
)

const headerIdempotencyKey = "Idempotency-Key"

// MedicationHandler handles HTTP requests for the medication inventory.
type MedicationHandler struct {
	inventory   ports.InventoryService
	idempotency ports.IdempotencyStore
	logger      zerolog.Logger
}

// NewMedicationHandler wires the handler. idempotency may be nil, in which
// case Idempotency-Key headers are ignored.
func NewMedicationHandler(inventory ports.InventoryService, idempotency ports.IdempotencyStore, logger zerolog.Logger) *MedicationHandler {
	return &MedicationHandler{inventory: inventory, idempotency: idempotency, logger: logger}
}

// List handles GET /v1/medications.
//
// @Summary      List medications
// @Tags         medications
// @Produce      json
// @Security     BearerAuth
// @Param        active        query     bool    false  "Only medications that have not expired"  default(true)
// @Param        name          query     string  false  "Case-insensitive name substring"
// @Param        manufacturer  query     string  false  "Case-insensitive manufacturer substring"
// @Success      200           {object}  medicationListResponse
// @Failure      400           {object}  errorResponse
// @Failure      401           {object}  errorResponse
// @Router       /v1/medications [get]
func (h *MedicationHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	active := true
	if v := c.QueryParam("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "active must be true or false")
		}
		active = b
	}
	name := c.QueryParam("name")
	manufacturer := c.QueryParam("manufacturer")

	var (
		items []*domain.Medication
		err   error
	)
	switch {
	case name != "":
		items, err = h.inventory.SearchByName(ctx, name)
	case manufacturer != "":
		items, err = h.inventory.SearchByManufacturer(ctx, manufacturer)
	default:
		items, err = h.inventory.ListMedications(ctx, active)
	}
	if err != nil {
		return err
	}

	out := make([]domain.Snapshot, 0, len(items))
	for _, m := range items {
		if name != "" && manufacturer != "" && !domain.ContainsFold(m.Manufacturer(), manufacturer) {
			continue
		}
		s := h.inventory.Snapshot(m)
		if active && s.Expired {
			continue
		}
		out = append(out, s)
	}
	return c.JSON(http.StatusOK, medicationListResponse{Items: out, Count: len(out)})
}

// Expired handles GET /v1/medications/expired.
//
// @Summary      List expired medications
// @Tags         medications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  medicationListResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/medications/expired [get]
func (h *MedicationHandler) Expired(c echo.Context) error {
	items, err := h.inventory.ListExpired(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.listResponse(items))
}

// Get handles GET /v1/medications/:id.
//
// @Summary      Get a medication
// @Tags         medications
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Medication id"
// @Success      200  {object}  domain.Snapshot
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/medications/{id} [get]
func (h *MedicationHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return h.respondWith(c, http.StatusOK, id)
}

// Create handles POST /v1/medications.
//
// @Summary      Register a medication
// @Tags         medications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string                   false  "Replays the first response for a repeated key"
// @Param        body             body      createMedicationRequest  true   "Medication details"
// @Success      201              {object}  domain.Snapshot
// @Success      200              {object}  domain.Snapshot  "Replayed by Idempotency-Key"
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      409              {object}  errorResponse  "Same Idempotency-Key still in progress"
// @Failure      422              {object}  errorResponse
// @Router       /v1/medications [post]
func (h *MedicationHandler) Create(c echo.Context) error {
	var req createMedicationRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.MedicationsRegisteredTotal.WithLabelValues("rejected").Inc()
		return err
	}

	ctx := c.Request().Context()
	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
	claimed := false
	if key != "" && h.idempotency != nil {
		ok, id, err := h.idempotency.Claim(ctx, key)
		switch {
		case err != nil:
			h.logger.Warn().Err(err).Msg("idempotency claim failed, registering anyway")
		case ok:
			claimed = true
		case id == 0:
			metrics.MedicationsRegisteredTotal.WithLabelValues("in_progress").Inc()
			return domain.ErrIdempotencyInUse
		default:
			return h.replay(c, id)
		}
	}

	m, err := h.inventory.RegisterMedication(ctx, ports.RegisterMedicationInput{
		Name:         req.Name,
		Batch:        req.Batch,
		Expiry:       req.Expiry,
		Manufacturer: req.Manufacturer,
		Quantity:     req.Quantity,
	})
	if err != nil {
		if claimed {
			if rerr := h.idempotency.Release(context.WithoutCancel(ctx), key); rerr != nil {
				h.logger.Warn().Err(rerr).Msg("failed to release idempotency key")
			}
		}
		if errors.Is(err, domain.ErrValidation) {
			metrics.MedicationsRegisteredTotal.WithLabelValues("rejected").Inc()
		}
		return err
	}
	metrics.MedicationsRegisteredTotal.WithLabelValues("created").Inc()

	if claimed {
		if err := h.idempotency.Bind(context.WithoutCancel(ctx), key, m.ID()); err != nil {
			h.logger.Warn().Err(err).Int64("medication_id", m.ID()).Msg("failed to bind idempotency key")
		}
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/v1/medications/%d", m.ID()))
	return c.JSON(http.StatusCreated, h.inventory.Snapshot(m))
}

// Update handles PATCH /v1/medications/:id.
//
// @Summary      Update medication fields
// @Tags         medications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                      true  "Medication id"
// @Param        body  body      updateMedicationRequest  true  "Fields to change"
// @Success      200   {object}  domain.Snapshot
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/medications/{id} [patch]
func (h *MedicationHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req updateMedicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	ok, err := h.inventory.UpdateMedication(c.Request().Context(), id, ports.MedicationPatch{
		Name:         req.Name,
		Batch:        req.Batch,
		Expiry:       req.Expiry,
		Manufacturer: req.Manufacturer,
		Quantity:     req.Quantity,
	})
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrMedicationNotFound
	}
	return h.respondWith(c, http.StatusOK, id)
}

// SetQuantity handles PUT /v1/medications/:id/quantity.
//
// @Summary      Overwrite the stock count
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                 true  "Medication id"
// @Param        body  body      setQuantityRequest  true  "New quantity"
// @Success      200   {object}  domain.Snapshot
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/medications/{id}/quantity [put]
func (h *MedicationHandler) SetQuantity(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req setQuantityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ok, err := h.inventory.SetQuantity(c.Request().Context(), id, *req.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrMedicationNotFound
	}
	return h.respondWith(c, http.StatusOK, id)
}

// AdjustStock handles POST /v1/medications/:id/stock.
//
// @Summary      Increase or decrease the stock
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                 true  "Medication id"
// @Param        body  body      adjustStockRequest  true  "Amount and direction"
// @Success      200   {object}  domain.Snapshot
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse  "Decrease larger than the stock"
// @Failure      422   {object}  errorResponse
// @Router       /v1/medications/{id}/stock [post]
func (h *MedicationHandler) AdjustStock(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req adjustStockRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.StockAdjustmentsTotal.WithLabelValues("unknown", "invalid").Inc()
		return err
	}

	ctx := c.Request().Context()
	dir := ports.Direction(req.Direction)
	ok, err := h.inventory.AdjustQuantity(ctx, id, *req.Amount, dir)
	if err != nil {
		return err
	}
	if !ok {
		// a refused adjustment is either an unknown id or too little stock
		_, exists, err := h.inventory.GetMedication(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			metrics.StockAdjustmentsTotal.WithLabelValues(req.Direction, "not_found").Inc()
			return domain.ErrMedicationNotFound
		}
		metrics.StockAdjustmentsTotal.WithLabelValues(req.Direction, "insufficient_stock").Inc()
		return domain.ErrInsufficientStock
	}

	metrics.StockAdjustmentsTotal.WithLabelValues(req.Direction, "applied").Inc()
	return h.respondWith(c, http.StatusOK, id)
}

// Delete handles DELETE /v1/medications/:id.
//
// @Summary      Remove a medication
// @Tags         medications
// @Security     BearerAuth
// @Param        id   path  int  true  "Medication id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/medications/{id} [delete]
func (h *MedicationHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	ok, err := h.inventory.RemoveMedication(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrMedicationNotFound
	}
	metrics.MedicationsRemovedTotal.Inc()
	return c.NoContent(http.StatusNoContent)
}

// Report handles GET /v1/reports/inventory.
//
// @Summary      Inventory report
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.InventoryReport
// @Failure      401  {object}  errorResponse
// @Router       /v1/reports/inventory [get]
func (h *MedicationHandler) Report(c echo.Context) error {
	report, err := h.inventory.GenerateReport(c.Request().Context())
	if err != nil {
		return err
	}
	metrics.ExpiredMedications.Set(float64(report.ExpiredMedications))
	return c.JSON(http.StatusOK, report)
}

// replay answers a repeated Idempotency-Key with the medication it created.
func (h *MedicationHandler) replay(c echo.Context, id int64) error {
	m, ok, err := h.inventory.GetMedication(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrMedicationNotFound
	}
	metrics.MedicationsRegisteredTotal.WithLabelValues("replayed").Inc()
	c.Response().Header().Set("Idempotent-Replayed", "true")
	return c.JSON(http.StatusOK, h.inventory.Snapshot(m))
}

// respondWith renders the current state of medication id.
func (h *MedicationHandler) respondWith(c echo.Context, status int, id int64) error {
	m, ok, err := h.inventory.GetMedication(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrMedicationNotFound
	}
	return c.JSON(status, h.inventory.Snapshot(m))
}

func (h *MedicationHandler) listResponse(items []*domain.Medication) medicationListResponse {
	out := make([]domain.Snapshot, 0, len(items))
	for _, m := range items {
		out = append(out, h.inventory.Snapshot(m))
	}
	return medicationListResponse{Items: out, Count: len(out)}
}
