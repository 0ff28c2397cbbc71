package handlers

import (
	"net/http"

	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type DemandHandler struct {
	service   *services.DemandService
	validator *services.ValidationHelper
}

func NewDemandHandler(service *services.DemandService) *DemandHandler {
	return &DemandHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// DemandRequest is the student's demand form.
type DemandRequest struct {
	SubjectID          int64   `json:"subjectId" validate:"required,gt=0"`
	LevelID            int64   `json:"levelId" validate:"required,gt=0"`
	Lessons            int     `json:"lessons" validate:"gte=0,lte=3"`
	Students           int     `json:"students" validate:"gte=0,lte=3"`
	Towns              []int64 `json:"towns" validate:"required,min=1,dive,gt=0"`
	Targets            []int64 `json:"targets" validate:"omitempty,dive,gt=0"`
	FirstName          string  `json:"firstName" validate:"required,max=100"`
	LastName           string  `json:"lastName" validate:"required,max=100"`
	Email              string  `json:"email" validate:"required,email,max=254"`
	SubjectDescription string  `json:"subjectDescription" validate:"max=300"`
	TimeDescription    string  `json:"timeDescription" validate:"max=300"`
	Commute            bool    `json:"commute"`
	SexRequired        string  `json:"sexRequired" validate:"omitempty,oneof=n f m"`
	Slovak             bool    `json:"slovak"`
}

func (req *DemandRequest) toModel() *models.Demand {
	return &models.Demand{
		SubjectID:          req.SubjectID,
		LevelID:            req.LevelID,
		Lessons:            req.Lessons,
		Students:           req.Students,
		Towns:              req.Towns,
		Targets:            req.Targets,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		SubjectDescription: req.SubjectDescription,
		TimeDescription:    req.TimeDescription,
		Commute:            req.Commute,
		SexRequired:        req.SexRequired,
		Slovak:             req.Slovak,
	}
}

// forTutor hides the student's contact until the tutor has taken the demand.
func forTutor(d *models.Demand, tutorID int64) *models.Demand {
	if d.TakenBy != nil && *d.TakenBy == tutorID {
		return d
	}
	out := *d
	out.LastName = ""
	out.Email = ""
	out.Targets = nil
	return &out
}

// Create posts a new demand
// @Summary Create demand
// @Description Students post a demand; the response carries the private slug for later edits
// @Tags Demands
// @Accept json
// @Produce json
// @Param request body DemandRequest true "Demand"
// @Success 201 {object} object{slug=string,demand=models.Demand}
// @Failure 400 {object} services.ErrorResponse
// @Router /demands [post]
func (h *DemandHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req DemandRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	d, err := h.service.CreateDemand(r.Context(), req.toModel())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"slug":   d.Slug,
		"demand": d,
	})
}

// GetBySlug returns a demand to its author
// @Summary Get demand by slug
// @Tags Demands
// @Produce json
// @Param slug path string true "Private demand slug"
// @Success 200 {object} models.Demand
// @Failure 404 {object} services.ErrorResponse
// @Router /demands/by-slug/{slug} [get]
func (h *DemandHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetDemandBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateBySlug lets the author edit a demand that is not taken yet
// @Summary Update demand by slug
// @Tags Demands
// @Accept json
// @Produce json
// @Param slug path string true "Private demand slug"
// @Param request body DemandRequest true "Demand"
// @Success 200 {object} models.Demand
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /demands/by-slug/{slug} [put]
func (h *DemandHandler) UpdateBySlug(w http.ResponseWriter, r *http.Request) {
	var req DemandRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	d, err := h.service.UpdateDemandBySlug(r.Context(), chi.URLParam(r, "slug"), req.toModel())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// List returns the active demands visible to the tutor
// @Summary List demands
// @Description Suitable demands come first
// @Tags Demands
// @Produce json
// @Security BearerAuth
// @Success 200 {array} services.DemandView
// @Router /demands [get]
func (h *DemandHandler) List(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}

	views, err := h.service.ListVisibleDemands(r.Context(), tutorID)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]*services.DemandView, 0, len(views))
	for _, v := range views {
		out = append(out, &services.DemandView{Demand: forTutor(v.Demand, tutorID), Charge: v.Charge, Suitable: v.Suitable})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get shows one demand with the take preview
// @Summary Demand detail
// @Description Runs a bank sync first so a fresh top-up counts
// @Tags Demands
// @Produce json
// @Security BearerAuth
// @Param id path int true "Demand ID"
// @Success 200 {object} services.TakeCheck
// @Failure 404 {object} services.ErrorResponse
// @Router /demands/{id} [get]
func (h *DemandHandler) Get(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}
	demandID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	check, err := h.service.GetDemandForTutor(r.Context(), tutorID, demandID)
	if err != nil {
		respondError(w, err)
		return
	}
	check.Demand = forTutor(check.Demand, tutorID)
	writeJSON(w, http.StatusOK, check)
}

// Take assigns the demand to the tutor and debits the charge
// @Summary Take demand
// @Tags Demands
// @Produce json
// @Security BearerAuth
// @Param id path int true "Demand ID"
// @Success 200 {object} object{entry=models.LedgerEntry,payLater=bool}
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /demands/{id}/take [post]
func (h *DemandHandler) Take(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}
	demandID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.service.TakeDemand(r.Context(), tutorID, demandID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entry":    entry,
		"payLater": entry.PayLater,
	})
}

// Taken lists the demands the tutor has taken
// @Summary My demands
// @Tags Demands
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Demand
// @Router /me/demands [get]
func (h *DemandHandler) Taken(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := currentTutor(w, r)
	if !ok {
		return
	}

	demands, err := h.service.ListTakenDemands(r.Context(), tutorID)
	if err != nil {
		respondError(w, err)
		return
	}
	if demands == nil {
		demands = []*models.Demand{}
	}
	writeJSON(w, http.StatusOK, demands)
}
