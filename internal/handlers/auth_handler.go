package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/middleware"
	"github.com/campuspoints/loyalty-backend/internal/services"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// AuthHandler serves token issuance and the password reset flow.
type AuthHandler struct {
	users   *services.UserService
	limiter *middleware.RateLimiter
}

func NewAuthHandler(users *services.UserService, limiter *middleware.RateLimiter) *AuthHandler {
	return &AuthHandler{users: users, limiter: limiter}
}

// IssueToken handles POST /auth/tokens.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Utorid   string `json:"utorid"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Utorid == "" || req.Password == "" {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "utorid and password are required"))
		return
	}

	result, err := h.users.Authenticate(req.Utorid, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
	})
}

// RequestReset handles POST /auth/resets. Requests for the same utorid are
// limited to one per cooldown window.
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Utorid string `json:"utorid"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Utorid == "" {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "utorid is required"))
		return
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if !h.limiter.CheckIPLimit(ip) {
		WriteError(w, r, errors.New(errors.ErrCodeRateLimitExceeded, "too many requests"))
		return
	}
	if !h.limiter.CheckCooldown(req.Utorid) {
		WriteError(w, r, errors.New(errors.ErrCodeRateLimitExceeded, "reset already requested, try again later"))
		return
	}

	result, err := h.users.RequestReset(req.Utorid)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"resetToken": result.ResetToken,
		"expiresAt":  result.ExpiresAt.Format(time.RFC3339),
	})
}

// CompleteReset handles POST /auth/resets/{resetToken}.
func (h *AuthHandler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "resetToken")

	var req struct {
		Utorid   string `json:"utorid"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Utorid == "" || req.Password == "" {
		WriteError(w, r, errors.New(errors.ErrCodeValidation, "utorid and password are required"))
		return
	}

	if err := h.users.ResetPassword(token, req.Utorid, req.Password); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
