package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/campuspoints/loyalty-backend/pkg/logger"
)

var statusByCode = map[string]int{
	errors.ErrCodeValidation:          http.StatusBadRequest,
	errors.ErrCodeInsufficientBalance: http.StatusBadRequest,
	errors.ErrCodeUnauthorized:        http.StatusUnauthorized,
	errors.ErrCodeForbidden:           http.StatusForbidden,
	errors.ErrCodeNotFound:            http.StatusNotFound,
	errors.ErrCodeConflict:            http.StatusConflict,
	errors.ErrCodeAlreadyExists:       http.StatusConflict,
	errors.ErrCodeGone:                http.StatusGone,
	errors.ErrCodeRateLimitExceeded:   http.StatusTooManyRequests,
	errors.ErrCodeInternalError:       http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("Failed to encode response", "error", err)
		}
	}
}

// WriteError maps an application error onto an HTTP status and a JSON body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "internal server error"
	if appErr, isApp := err.(*errors.AppError); isApp && code != errors.ErrCodeInternalError {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.New(errors.ErrCodeValidation, "invalid JSON payload")
	}
	return nil
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page, limit = 1, 10
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New(errors.ErrCodeValidation, "page must be a positive integer")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, errors.New(errors.ErrCodeValidation, "limit must be a positive integer")
		}
	}
	return page, limit, nil
}

func parseBoolQuery(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New(errors.ErrCodeValidation, key+" must be true or false")
	}
	return &value, nil
}

func parseIDParam(raw, name string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New(errors.ErrCodeValidation, "invalid "+name)
	}
	return uint(id), nil
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func userView(u *models.User, full bool) map[string]interface{} {
	view := map[string]interface{}{
		"id":        u.ID,
		"utorid":    u.Utorid,
		"name":      u.Name,
		"points":    u.Points,
		"verified":  u.Verified,
		"avatarUrl": u.AvatarURL,
	}
	if full {
		view["email"] = u.Email
		view["birthday"] = formatTime(u.Birthday)
		view["role"] = u.Role
		view["suspicious"] = u.Suspicious
		view["createdAt"] = u.CreatedAt.Format(time.RFC3339)
		view["lastLogin"] = formatTime(u.LastLogin)
	}
	return view
}

// transactionView shapes a ledger row for the API. Field presence follows
// the transaction type: spent only on purchases, processedBy only on
// redemptions, relatedId wherever a cross-reference exists.
func transactionView(t *models.Transaction) map[string]interface{} {
	view := map[string]interface{}{
		"id":        t.ID,
		"utorid":    t.User.Utorid,
		"type":      t.Type,
		"amount":    t.Amount,
		"remark":    t.Remark,
		"createdBy": t.CreatedBy.Utorid,
		"createdAt": t.CreatedAt.Format(time.RFC3339),
	}

	switch t.Type {
	case models.TxTypePurchase:
		view["spent"] = t.Spent
		view["promotionIds"] = t.PromotionIDs()
		view["suspicious"] = t.Suspicious
	case models.TxTypeAdjustment:
		view["relatedId"] = t.RelatedID
		view["promotionIds"] = t.PromotionIDs()
		view["suspicious"] = t.Suspicious
	case models.TxTypeRedemption:
		view["processed"] = t.Processed
		if t.ProcessedBy != nil {
			view["processedBy"] = t.ProcessedBy.Utorid
		} else {
			view["processedBy"] = nil
		}
		view["redeemed"] = t.Redeemed()
	case models.TxTypeTransfer, models.TxTypeEvent:
		view["relatedId"] = t.RelatedID
		view["suspicious"] = t.Suspicious
	}
	return view
}

func eventView(e *models.Event, managerLevel bool) map[string]interface{} {
	organizers := make([]map[string]interface{}, 0, len(e.Organizers))
	for _, o := range e.Organizers {
		organizers = append(organizers, map[string]interface{}{
			"id":     o.UserID,
			"utorid": o.User.Utorid,
			"name":   o.User.Name,
		})
	}

	view := map[string]interface{}{
		"id":          e.ID,
		"name":        e.Name,
		"description": e.Description,
		"location":    e.Location,
		"startTime":   e.StartTime.Format(time.RFC3339),
		"endTime":     e.EndTime.Format(time.RFC3339),
		"capacity":    e.Capacity,
		"organizers":  organizers,
		"numGuests":   len(e.Guests),
	}

	if managerLevel {
		guests := make([]map[string]interface{}, 0, len(e.Guests))
		for _, g := range e.Guests {
			guests = append(guests, map[string]interface{}{
				"id":     g.UserID,
				"utorid": g.User.Utorid,
				"name":   g.User.Name,
			})
		}
		view["guests"] = guests
		view["pointsRemain"] = e.PointsRemain
		view["pointsAwarded"] = e.PointsAwarded
		view["published"] = e.Published
	}
	return view
}

func promotionView(p *models.Promotion, managerLevel bool) map[string]interface{} {
	view := map[string]interface{}{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"type":        p.Type,
		"endTime":     p.EndTime.Format(time.RFC3339),
		"minSpending": p.MinSpending,
		"rate":        p.Rate,
		"points":      p.Points,
	}
	if managerLevel {
		view["startTime"] = p.StartTime.Format(time.RFC3339)
	}
	return view
}
