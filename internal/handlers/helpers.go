package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
	"github.com/doucovani/backend/internal/services"
	"github.com/doucovani/backend/pkg/fioclient"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1_048_576

// decodeJSON reads a single JSON object into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *services.ValidationHelper, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := v.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid "+name, http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// respondError maps service errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	var (
		eligibility *models.EligibilityError
		bankStatus  *fioclient.StatusError
	)

	switch {
	case errors.As(err, &eligibility):
		services.SendCodedErrorResponse(w, eligibility.Reason.Message(), string(eligibility.Reason), http.StatusUnprocessableEntity)

	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, services.ErrDemandNotVisible):
		services.SendErrorResponse(w, "Not found", http.StatusNotFound, nil)

	case errors.Is(err, models.ErrDemandAlreadyTaken):
		services.SendCodedErrorResponse(w, "This demand has already been taken", string(models.ReasonAlreadyTaken), http.StatusConflict)
	case errors.Is(err, models.ErrDemandNotActive):
		services.SendCodedErrorResponse(w, "This demand is not active", string(models.ReasonNotActive), http.StatusConflict)
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrPhoneTaken),
		errors.Is(err, services.ErrBankTransactionCredited),
		errors.Is(err, repository.ErrVersionConflict):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)

	case errors.Is(err, services.ErrInvalidCredentials):
		services.SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)

	case errors.Is(err, models.ErrInvalidLedgerEntry),
		errors.Is(err, models.ErrSchemeMismatch),
		errors.Is(err, services.ErrInvalidDemand),
		errors.Is(err, services.ErrUnknownCatalogItem),
		errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrInvalidProfile),
		errors.Is(err, services.ErrInvalidPhone),
		errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrCodeExpired):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)

	case repository.IsValueTooLong(err):
		services.SendErrorResponse(w, "Value too long", http.StatusBadRequest, nil)

	case errors.Is(err, services.ErrTooManyAttempts),
		errors.Is(err, fioclient.ErrTooFrequent):
		services.SendErrorResponse(w, err.Error(), http.StatusTooManyRequests, nil)

	case errors.Is(err, services.ErrVerificationOffline):
		services.SendErrorResponse(w, "Service temporarily unavailable", http.StatusServiceUnavailable, nil)

	case errors.As(err, &bankStatus),
		errors.Is(err, fioclient.ErrMalformedStatement):
		log.Printf("[HTTP] Bank API error: %v", err)
		services.SendErrorResponse(w, "Bank API error", http.StatusBadGateway, nil)

	default:
		log.Printf("[HTTP] Internal error: %v", err)
		services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
	}
}
