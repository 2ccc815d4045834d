package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/services"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// EventHandler serves event lifecycle and registration endpoints.
type EventHandler struct {
	events *services.EventService
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

func parseRFC3339(raw, field string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New(errors.ErrCodeValidation, field+" must be an ISO 8601 timestamp")
	}
	return t, nil
}

// Create handles POST /events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Location    string `json:"location"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		Capacity    *int   `json:"capacity"`
		Points      int    `json:"points"`
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

	event, err := h.events.CreateEvent(actor, services.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   startTime,
		EndTime:     endTime,
		Capacity:    req.Capacity,
		Points:      req.Points,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventView(event, true))
}

// List handles GET /events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
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
	published, err := parseBoolQuery(r, "published")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	filter := repositories.EventListFilter{
		Name:      r.URL.Query().Get("name"),
		Location:  r.URL.Query().Get("location"),
		Started:   started,
		Ended:     ended,
		Published: published,
		Page:      page,
		Limit:     limit,
	}

	events, count, err := h.events.ListEvents(actor, filter)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	managerLevel := actor.Role.HasClearance(models.RoleManager)
	results := make([]map[string]interface{}, 0, len(events))
	for i := range events {
		results = append(results, eventView(&events[i], managerLevel))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count, "results": results})
}

// Get handles GET /events/{eventId}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	event, err := h.events.GetEvent(actor, eventID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	managerLevel := actor.Role.HasClearance(models.RoleManager) || event.IsOrganizer(actor.ID)
	writeJSON(w, http.StatusOK, eventView(event, managerLevel))
}

// Update handles PATCH /events/{eventId}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req struct {
		Name        *string          `json:"name"`
		Description *string          `json:"description"`
		Location    *string          `json:"location"`
		StartTime   *string          `json:"startTime"`
		EndTime     *string          `json:"endTime"`
		Capacity    *json.RawMessage `json:"capacity"`
		Points      *int             `json:"points"`
		Published   *bool            `json:"published"`
	}
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	input := services.UpdateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Points:      req.Points,
		Published:   req.Published,
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
	if req.Capacity != nil {
		input.CapacitySet = true
		if string(*req.Capacity) != "null" {
			var capacity int
			if err := json.Unmarshal(*req.Capacity, &capacity); err != nil {
				WriteError(w, r, errors.New(errors.ErrCodeValidation, "capacity must be an integer or null"))
				return
			}
			input.Capacity = &capacity
		}
	}

	event, err := h.events.UpdateEvent(actor, eventID, input)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventView(event, true))
}

// Delete handles DELETE /events/{eventId}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.events.DeleteEvent(actor, eventID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddOrganizer handles POST /events/{eventId}/organizers.
func (h *EventHandler) AddOrganizer(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

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

	event, err := h.events.AddOrganizer(actor, eventID, req.Utorid)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventView(event, true))
}

// RemoveOrganizer handles DELETE /events/{eventId}/organizers/{userId}.
func (h *EventHandler) RemoveOrganizer(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	userID, err := parseIDParam(chi.URLParam(r, "userId"), "user id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.events.RemoveOrganizer(actor, eventID, userID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddGuest handles POST /events/{eventId}/guests.
func (h *EventHandler) AddGuest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

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

	event, guest, err := h.events.AddGuest(actor, eventID, req.Utorid)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        event.ID,
		"name":      event.Name,
		"location":  event.Location,
		"guestAdded": map[string]interface{}{
			"id":     guest.ID,
			"utorid": guest.Utorid,
			"name":   guest.Name,
		},
		"numGuests": len(event.Guests),
	})
}

// RemoveGuest handles DELETE /events/{eventId}/guests/{userId}.
func (h *EventHandler) RemoveGuest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	userID, err := parseIDParam(chi.URLParam(r, "userId"), "user id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.events.RemoveGuest(actor, eventID, userID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Join handles POST /events/{eventId}/guests/me.
func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	event, err := h.events.JoinEvent(actor, eventID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        event.ID,
		"name":      event.Name,
		"location":  event.Location,
		"guestAdded": map[string]interface{}{
			"id":     actor.ID,
			"utorid": actor.Utorid,
			"name":   actor.Name,
		},
		"numGuests": len(event.Guests),
	})
}

// Leave handles DELETE /events/{eventId}/guests/me.
func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	eventID, err := parseIDParam(chi.URLParam(r, "eventId"), "event id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.events.LeaveEvent(actor, eventID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
