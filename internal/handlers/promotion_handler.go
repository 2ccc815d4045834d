package handlers

import (
	"net/http"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/services"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// PromotionHandler serves the reward-rule catalog endpoints.
type PromotionHandler struct {
	promotions *services.PromotionService
}

func NewPromotionHandler(promotions *services.PromotionService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

// Create handles POST /promotions.
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Type        string   `json:"type"`
		StartTime   string   `json:"startTime"`
		EndTime     string   `json:"endTime"`
		MinSpending *float64 `json:"minSpending"`
		Rate        *float64 `json:"rate"`
		Points      *int     `json:"points"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	startTime, err := parseRFC3339(req.StartTime, "startTime")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	endTime, err := parseRFC3339(req.EndTime, "endTime")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	promotion, err := h.promotions.CreatePromotion(actor, services.CreatePromotionInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		StartTime:   startTime,
		EndTime:     endTime,
		MinSpending: req.MinSpending,
		Rate:        req.Rate,
		Points:      req.Points,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, promotionView(promotion, true))
}

// List handles GET /promotions.
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	started, err := parseBoolQuery(r, "started")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	ended, err := parseBoolQuery(r, "ended")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	promoType := r.URL.Query().Get("type")
	if promoType != "" && !models.ValidPromotionType(promoType) {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "invalid promotion type"))
		return
	}

	filter := repositories.PromotionListFilter{
		Name:    r.URL.Query().Get("name"),
		Type:    promoType,
		Started: started,
		Ended:   ended,
		Page:    page,
		Limit:   limit,
	}

	promotions, count, err := h.promotions.ListPromotions(actor, filter)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	managerLevel := actor.Role.HasClearance(models.RoleManager)
	results := make([]map[string]interface{}, 0, len(promotions))
	for i := range promotions {
		results = append(results, promotionView(&promotions[i], managerLevel))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count, "results": results})
}

// Get handles GET /promotions/{promotionId}.
func (h *PromotionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	promotionID, err := parseIDParam(chi.URLParam(r, "promotionId"), "promotion id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	promotion, err := h.promotions.GetPromotion(actor, promotionID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, promotionView(promotion, actor.Role.HasClearance(models.RoleManager)))
}

// Update handles PATCH /promotions/{promotionId}.
func (h *PromotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	promotionID, err := parseIDParam(chi.URLParam(r, "promotionId"), "promotion id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Type        *string  `json:"type"`
		StartTime   *string  `json:"startTime"`
		EndTime     *string  `json:"endTime"`
		MinSpending *float64 `json:"minSpending"`
		Rate        *float64 `json:"rate"`
		Points      *int     `json:"points"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	input := services.UpdatePromotionInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		MinSpending: req.MinSpending,
		Rate:        req.Rate,
		Points:      req.Points,
	}
	if req.StartTime != nil {
		parsed, err := parseRFC3339(*req.StartTime, "startTime")
		if err != nil {
			WriteError(w, r, err)
			return
		}
		input.StartTime = &parsed
	}
	if req.EndTime != nil {
		parsed, err := parseRFC3339(*req.EndTime, "endTime")
		if err != nil {
			WriteError(w, r, err)
			return
		}
		input.EndTime = &parsed
	}

	promotion, err := h.promotions.UpdatePromotion(actor, promotionID, input)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, promotionView(promotion, true))
}

// Delete handles DELETE /promotions/{promotionId}.
func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	promotionID, err := parseIDParam(chi.URLParam(r, "promotionId"), "promotion id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.promotions.DeletePromotion(actor, promotionID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
