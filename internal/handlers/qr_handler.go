package handlers

import (
	"net/http"

	"github.com/doucovani/backend/internal/services"
	"github.com/shopspring/decimal"
)

type TopupHandler struct {
	service *services.TopupService
}

func NewTopupHandler(service *services.TopupService) *TopupHandler {
	return &TopupHandler{service: service}
}

// Instructions returns the bank details and a QR payment code for a top-up
// @Summary Credit top-up instructions
// @Description Account number, variable symbol and a QR Platba code. Without an amount the outstanding debt is suggested.
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Param amount query string false "Amount to pay"
// @Success 200 {object} services.TopupInstructions
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /me/topup [get]
func (h *TopupHandler) Instructions(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}

	amount := decimal.Zero
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
			return
		}
		amount = parsed
	}

	instructions, err := h.service.Instructions(r.Context(), tutorID, amount)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instructions)
}
