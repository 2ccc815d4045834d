package handlers

import (
	"net/http"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/middleware"
	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/services"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves account registration, profiles and the manager-side
// user administration endpoints.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		WriteError(w, r, errors.New(errors.ErrCodeUnauthorized, "missing bearer token"))
	}
	return user, ok
}

// Register handles POST /users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Utorid string `json:"utorid"`
		Name   string `json:"name"`
		Email  string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.users.Register(actor, req.Utorid, req.Name, req.Email)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         result.User.ID,
		"utorid":     result.User.Utorid,
		"name":       result.User.Name,
		"email":      result.User.Email,
		"verified":   result.User.Verified,
		"expiresAt":  result.ExpiresAt.Format(time.RFC3339),
		"resetToken": result.ResetToken,
	})
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	verified, err := parseBoolQuery(r, "verified")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	activated, err := parseBoolQuery(r, "activated")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	filter := repositories.UserListFilter{
		Name:      r.URL.Query().Get("name"),
		Role:      models.Role(r.URL.Query().Get("role")),
		Verified:  verified,
		Activated: activated,
		Page:      page,
		Limit:     limit,
	}
	if filter.Role != "" && !filter.Role.Valid() {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "invalid role"))
		return
	}

	users, count, err := h.users.ListUsers(actor, filter)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	results := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		results = append(results, userView(&users[i], true))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count, "results": results})
}

// GetMe handles GET /users/me.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, promotions, err := h.users.GetProfile(actor.ID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	view := userView(user, true)
	promoViews := make([]map[string]interface{}, 0, len(promotions))
	for i := range promotions {
		promoViews = append(promoViews, promotionView(&promotions[i], false))
	}
	view["promotions"] = promoViews
	writeJSON(w, http.StatusOK, view)
}

// UpdateMe handles PATCH /users/me.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Birthday *string `json:"birthday"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	input := services.UpdateProfileInput{Name: req.Name, Email: req.Email}
	if req.Birthday != nil {
		parsed, err := time.Parse("2006-01-02", *req.Birthday)
		if err != nil {
			WriteError(w, r, errors.New(errors.ErrCodeValidation, "birthday must be formatted YYYY-MM-DD"))
			return
		}
		input.Birthday = &parsed
	}

	user, err := h.users.UpdateProfile(actor.ID, input)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user, true))
}

// UpdatePassword handles PATCH /users/me/password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Old == "" || req.New == "" {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "old and new passwords are required"))
		return
	}

	if err := h.users.UpdatePassword(actor.ID, req.Old, req.New); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// GetByUtorid handles GET /users/utorid/{utorid}. A short projection used to
// confirm a transfer recipient.
func (h *UserHandler) GetByUtorid(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	utorid := chi.URLParam(r, "utorid")
	if !models.ValidUtorid(utorid) {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "invalid utorid"))
		return
	}

	user, err := h.users.GetUserByUtorid(utorid)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user, false))
}

// Get handles GET /users/{userId}. Cashiers see the short view; managers see
// everything plus the available one-time promotions.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	userID, err := parseIDParam(chi.URLParam(r, "userId"), "user id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	user, promotions, err := h.users.GetProfile(userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	view := userView(user, actor.Role.HasClearance(models.RoleManager))
	promoViews := make([]map[string]interface{}, 0, len(promotions))
	for i := range promotions {
		promoViews = append(promoViews, promotionView(&promotions[i], false))
	}
	view["promotions"] = promoViews
	writeJSON(w, http.StatusOK, view)
}

// Update handles PATCH /users/{userId}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	userID, err := parseIDParam(chi.URLParam(r, "userId"), "user id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req struct {
		Email      *string `json:"email"`
		Verified   *bool   `json:"verified"`
		Suspicious *bool   `json:"suspicious"`
		Role       *string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	input := services.AdminUpdateUserInput{
		Email:      req.Email,
		Verified:   req.Verified,
		Suspicious: req.Suspicious,
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.users.AdminUpdateUser(actor, userID, input)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(user, true))
}
