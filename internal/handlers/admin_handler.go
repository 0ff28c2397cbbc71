package handlers

import (
	"net/http"

	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/services"
	"github.com/shopspring/decimal"
)

// AdminHandler serves the back-office operations behind the admin key.
type AdminHandler struct {
	ledger    *services.LedgerService
	tutors    *services.TutorService
	demands   *services.DemandService
	sync      *services.SyncService
	validator *services.ValidationHelper
}

func NewAdminHandler(ledger *services.LedgerService, tutors *services.TutorService, demands *services.DemandService, sync *services.SyncService) *AdminHandler {
	return &AdminHandler{
		ledger:    ledger,
		tutors:    tutors,
		demands:   demands,
		sync:      sync,
		validator: services.NewValidationHelper(),
	}
}

type ReturnRequest struct {
	Amount  decimal.Decimal `json:"amount" swaggertype:"string" example:"150"`
	Reason  string          `json:"reason" validate:"required,max=100" example:"student did not respond"`
	Comment string          `json:"comment" validate:"max=140"`
}

type ActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type StatusRequest struct {
	Status *models.DemandStatus `json:"status" validate:"required,gte=0,lte=3"`
}

type DiscountRequest struct {
	Discount *int `json:"discount" validate:"required,gte=0,lte=100"`
}

type LastIDRequest struct {
	ID int64 `json:"id" validate:"gte=0"`
}

// Return credits money back to a tutor
// @Summary Manual credit return
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path int true "Tutor ID"
// @Param request body ReturnRequest true "Return"
// @Success 201 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/tutors/{id}/returns [post]
func (h *AdminHandler) Return(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ReturnRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		services.SendErrorResponse(w, "Amount must be positive", http.StatusBadRequest, nil)
		return
	}

	entry, err := h.ledger.ManualReturn(r.Context(), tutorID, req.Amount, req.Reason, req.Comment)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// VerifyLedger replays the tutor's entry log against the stored balance
// @Summary Verify tutor ledger
// @Tags Admin
// @Produce json
// @Security AdminKey
// @Param id path int true "Tutor ID"
// @Success 200 {object} services.LedgerReport
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/tutors/{id}/ledger/verify [get]
func (h *AdminHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.ledger.VerifyTutor(r.Context(), tutorID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SetActive activates or blocks a tutor account
// @Summary Set tutor active flag
// @Tags Admin
// @Accept json
// @Security AdminKey
// @Param id path int true "Tutor ID"
// @Param request body ActiveRequest true "Flag"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/tutors/{id}/active [put]
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ActiveRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if err := h.tutors.SetActive(r.Context(), tutorID, *req.Active); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDemandStatus activates, deactivates or closes a demand
// @Summary Set demand status
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path int true "Demand ID"
// @Param request body StatusRequest true "0 active, 1 inactive, 3 closed"
// @Success 200 {object} models.Demand
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/demands/{id}/status [put]
func (h *AdminHandler) SetDemandStatus(w http.ResponseWriter, r *http.Request) {
	demandID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	d, err := h.demands.SetDemandStatus(r.Context(), demandID, *req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SetDiscount changes the percentage discount of a demand
// @Summary Set demand discount
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param id path int true "Demand ID"
// @Param request body DiscountRequest true "Discount 0-100"
// @Success 200 {object} models.Demand
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/demands/{id}/discount [put]
func (h *AdminHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	demandID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req DiscountRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	d, err := h.demands.SetDiscount(r.Context(), demandID, *req.Discount)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SyncBank pulls new movements from the bank
// @Summary Run bank statement sync
// @Tags Admin
// @Produce json
// @Security AdminKey
// @Success 200 {object} services.SyncResult
// @Failure 429 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /admin/bank/sync [post]
func (h *AdminHandler) SyncBank(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.Sync(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Reconcile credits stored movements that were not credited yet
// @Summary Reconcile bank movements
// @Tags Admin
// @Produce json
// @Security AdminKey
// @Success 200 {object} object{credited=int}
// @Router /admin/bank/reconcile [post]
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	credited, err := h.sync.Reconcile(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credited": credited})
}

// SetLastID moves the bank's download cursor
// @Summary Set bank last id
// @Description id 0 re-sends the local cursor to the bank
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param request body LastIDRequest true "Movement id"
// @Success 200 {object} object{lastId=int}
// @Failure 502 {object} services.ErrorResponse
// @Router /admin/bank/last-id [post]
func (h *AdminHandler) SetLastID(w http.ResponseWriter, r *http.Request) {
	var req LastIDRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	id, err := h.sync.SetLastID(r.Context(), req.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lastId": id})
}
