package handlers

import (
	"net/http"

	mW "github.com/doucovani/backend/internal/middleware"
	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/services"
)

type TutorHandler struct {
	auth      *services.AuthService
	tutors    *services.TutorService
	ledger    *services.LedgerService
	phone     *services.PhoneVerificationService
	validator *services.ValidationHelper
}

func NewTutorHandler(auth *services.AuthService, tutors *services.TutorService, ledger *services.LedgerService, phone *services.PhoneVerificationService) *TutorHandler {
	return &TutorHandler{
		auth:      auth,
		tutors:    tutors,
		ledger:    ledger,
		phone:     phone,
		validator: services.NewValidationHelper(),
	}
}

// PhoneCodeRequest asks for a verification code to be sent by SMS.
type PhoneCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=9,max=20" example:"+420777123456"`
}

// PhoneVerifyRequest confirms a phone number with the received code.
type PhoneVerifyRequest struct {
	Phone string `json:"phone" validate:"required,min=9,max=20" example:"+420777123456"`
	Code  string `json:"code" validate:"required,numeric" example:"123456"`
}

func currentTutor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	tutorID, ok := mW.TutorIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return tutorID, ok
}

// Register creates a tutor account
// @Summary Register tutor
// @Description Create a login and a tutor profile; the response carries the reference code used as the variable symbol of top-ups
// @Tags Tutors
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration details"
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /tutors/register [post]
func (h *TutorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	resp, err := h.auth.Register(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login authenticates a tutor
// @Summary Tutor login
// @Tags Tutors
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Login credentials"
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /tutors/login [post]
func (h *TutorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the bearer token
// @Summary Tutor logout
// @Tags Tutors
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} services.ErrorResponse
// @Router /me/logout [post]
func (h *TutorHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), mW.TokenFromContext(r.Context())); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated tutor
// @Summary Current tutor
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Tutor
// @Failure 401 {object} services.ErrorResponse
// @Router /me [get]
func (h *TutorHandler) Me(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}

	tutor, err := h.tutors.GetProfile(r.Context(), tutorID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tutor)
}

// UpdateProfile replaces the tutor's profile, towns and capabilities
// @Summary Update profile
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.ProfileUpdate true "Profile"
// @Success 200 {object} models.Tutor
// @Failure 400 {object} services.ErrorResponse
// @Router /me/profile [put]
func (h *TutorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}
	var req services.ProfileUpdate
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	tutor, err := h.tutors.UpdateProfile(r.Context(), tutorID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tutor)
}

// UpdateNotifications sets the notice mode per demand class
// @Summary Update notification preferences
// @Tags Tutors
// @Accept json
// @Security BearerAuth
// @Param request body models.NoticePreferences true "Modes 0-6 for any, suited and aimed demands"
// @Success 204
// @Failure 400 {object} services.ErrorResponse
// @Router /me/notifications [put]
func (h *TutorHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}
	var req models.NoticePreferences
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if err := h.tutors.UpdateNotices(r.Context(), tutorID, req); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPhoneCode sends a verification code
// @Summary Request phone verification code
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PhoneCodeRequest true "Phone number"
// @Success 202 {object} object{expiresIn=int}
// @Failure 400 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /me/phone/code [post]
func (h *TutorHandler) RequestPhoneCode(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}
	var req PhoneCodeRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if err := h.phone.RequestCode(r.Context(), tutorID, req.Phone); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"expiresIn": int(h.phone.CodeTTL().Seconds()),
	})
}

// VerifyPhone confirms the phone number
// @Summary Verify phone number
// @Tags Tutors
// @Accept json
// @Security BearerAuth
// @Param request body PhoneVerifyRequest true "Phone and code"
// @Success 204
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /me/phone/verify [post]
func (h *TutorHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}
	var req PhoneVerifyRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if err := h.phone.VerifyCode(r.Context(), tutorID, req.Phone, req.Code); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Ledger lists the tutor's credit movements
// @Summary Credit history
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balance=string,entries=[]models.LedgerEntry}
// @Router /me/ledger [get]
func (h *TutorHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}

	entries, err := h.ledger.Entries(r.Context(), tutorID)
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": services.ProjectBalance(entries),
		"entries": entries,
	})
}

// Subjects lists the subject catalogue
// @Summary List subjects
// @Tags Catalog
// @Produce json
// @Success 200 {array} models.Subject
// @Router /catalog/subjects [get]
func (h *TutorHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.tutors.ListSubjects(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if subjects == nil {
		subjects = []*models.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}
