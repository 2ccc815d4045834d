package services

import (
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/security"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
)

// EventService owns event lifecycle and the registration side of the point
// pool: capacity, membership exclusivity and the allocation invariant
// pointsRemain + pointsAwarded == total allocated.
type EventService struct {
	repo     *repositories.EventRepository
	userRepo *repositories.UserRepository
}

func NewEventService(repo *repositories.EventRepository, userRepo *repositories.UserRepository) *EventService {
	return &EventService{repo: repo, userRepo: userRepo}
}

type CreateEventInput struct {
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Capacity    *int
	Points      int
}

func (s *EventService) CreateEvent(actor *models.User, input CreateEventInput) (*models.Event, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	if input.Name == "" || input.Description == "" || input.Location == "" {
		return nil, errors.New(errors.ErrCodeValidation, "missing required fields")
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, errors.New(errors.ErrCodeValidation, "endTime must be after startTime")
	}
	if input.Capacity != nil && *input.Capacity <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "capacity must be positive or null")
	}
	if input.Points <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "points must be a positive integer")
	}

	event := &models.Event{
		Name:          security.SanitizeString(input.Name),
		Description:   security.SanitizeString(input.Description),
		Location:      security.SanitizeString(input.Location),
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		Capacity:      input.Capacity,
		PointsRemain:  input.Points,
		PointsAwarded: 0,
		Published:     false,
	}
	if err := s.repo.CreateEvent(event); err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent returns the event when the actor may see it: managers and
// organizers always, everyone else only once published.
func (s *EventService) GetEvent(actor *models.User, eventID uint) (*models.Event, error) {
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return nil, err
	}

	if !actor.Role.HasClearance(models.RoleManager) && !event.IsOrganizer(actor.ID) && !event.Published {
		return nil, errors.New(errors.ErrCodeForbidden, "event is not published")
	}
	return event, nil
}

func (s *EventService) ListEvents(actor *models.User, filter repositories.EventListFilter) ([]models.Event, int64, error) {
	if filter.Started != nil && filter.Ended != nil {
		return nil, 0, errors.New(errors.ErrCodeValidation, "cannot specify both started and ended filters")
	}
	if !actor.Role.HasClearance(models.RoleManager) {
		filter.PublishedOnly = true
		filter.Published = nil
	}
	return s.repo.ListEvents(filter, time.Now())
}

type UpdateEventInput struct {
	Name        *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
	Capacity    *int
	CapacitySet bool
	Points      *int
	Published   *bool
}

// UpdateEvent applies PATCH semantics. Descriptive fields, start time and
// capacity freeze once the event has started; end time freezes once passed;
// points and published are manager-only.
func (s *EventService) UpdateEvent(actor *models.User, eventID uint, input UpdateEventInput) (*models.Event, error) {
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return nil, err
	}

	isManager := actor.Role.HasClearance(models.RoleManager)
	if !isManager && !event.IsOrganizer(actor.ID) {
		return nil, errors.New(errors.ErrCodeForbidden, "organizer or manager clearance required")
	}

	now := time.Now()
	alreadyStarted := event.Started(now)
	changed := false

	if input.Name != nil {
		if alreadyStarted {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update name after event start")
		}
		event.Name = security.SanitizeString(*input.Name)
		changed = true
	}
	if input.Description != nil {
		if alreadyStarted {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update description after event start")
		}
		event.Description = security.SanitizeString(*input.Description)
		changed = true
	}
	if input.Location != nil {
		if alreadyStarted {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update location after event start")
		}
		event.Location = security.SanitizeString(*input.Location)
		changed = true
	}
	if input.StartTime != nil {
		if alreadyStarted {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update startTime after event start")
		}
		if input.StartTime.Before(now) {
			return nil, errors.New(errors.ErrCodeValidation, "startTime cannot be in the past")
		}
		event.StartTime = *input.StartTime
		changed = true
	}
	if input.EndTime != nil {
		if event.Ended(now) {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update endTime after the event has ended")
		}
		if !input.EndTime.After(event.StartTime) {
			return nil, errors.New(errors.ErrCodeValidation, "endTime must be after startTime")
		}
		event.EndTime = *input.EndTime
		changed = true
	}
	if input.CapacitySet {
		if alreadyStarted {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update capacity after event start")
		}
		if input.Capacity != nil {
			if *input.Capacity <= 0 {
				return nil, errors.New(errors.ErrCodeValidation, "capacity must be positive or null")
			}
			if *input.Capacity < len(event.Guests) {
				return nil, errors.New(errors.ErrCodeConflict, "cannot reduce capacity below current guest count")
			}
		}
		event.Capacity = input.Capacity
		changed = true
	}
	if input.Points != nil {
		if !isManager {
			return nil, errors.New(errors.ErrCodeForbidden, "only managers can update event points")
		}
		if *input.Points <= 0 {
			return nil, errors.New(errors.ErrCodeValidation, "points must be a positive integer")
		}
		if *input.Points < event.PointsAwarded {
			return nil, errors.New(errors.ErrCodeConflict, "cannot reduce total allocated points below points already awarded")
		}
		event.PointsRemain = *input.Points - event.PointsAwarded
		changed = true
	}
	if input.Published != nil {
		if !isManager {
			return nil, errors.New(errors.ErrCodeForbidden, "only managers can publish the event")
		}
		if !*input.Published {
			return nil, errors.New(errors.ErrCodeValidation, "published can only be set to true")
		}
		event.Published = true
		changed = true
	}

	if !changed {
		return nil, errors.New(errors.ErrCodeValidation, "no valid fields to update")
	}

	if err := s.repo.UpdateEvent(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventService) DeleteEvent(actor *models.User, eventID uint) error {
	if !actor.Role.HasClearance(models.RoleManager) {
		return errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return err
	}
	if event.Published {
		return errors.New(errors.ErrCodeConflict, "cannot delete a published event")
	}
	return s.repo.DeleteEvent(event.ID)
}

// AddOrganizer registers a user as organizer. Organizers are exempt from
// capacity but excluded from the guest list.
func (s *EventService) AddOrganizer(actor *models.User, eventID uint, utorid string) (*models.Event, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return nil, err
	}
	if event.Ended(time.Now()) {
		return nil, errors.New(errors.ErrCodeGone, "event has ended")
	}

	user, err := s.userRepo.GetUserByUtorid(utorid)
	if err != nil {
		return nil, err
	}
	if event.IsGuest(user.ID) {
		return nil, errors.New(errors.ErrCodeConflict, "user is registered as a guest")
	}
	if event.IsOrganizer(user.ID) {
		return nil, errors.New(errors.ErrCodeAlreadyExists, "user is already an organizer")
	}

	if err := s.repo.AddOrganizer(event.ID, user.ID); err != nil {
		return nil, err
	}
	return s.repo.GetEventByID(event.ID)
}

func (s *EventService) RemoveOrganizer(actor *models.User, eventID, userID uint) error {
	if !actor.Role.HasClearance(models.RoleManager) {
		return errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	if _, err := s.repo.GetEventByID(eventID); err != nil {
		return err
	}
	return s.repo.RemoveOrganizer(eventID, userID)
}

// AddGuest registers a user on the guest list on behalf of an organizer or
// manager, subject to capacity, end time and organizer exclusivity.
func (s *EventService) AddGuest(actor *models.User, eventID uint, utorid string) (*models.Event, *models.User, error) {
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return nil, nil, err
	}

	isManager := actor.Role.HasClearance(models.RoleManager)
	if !isManager && !event.IsOrganizer(actor.ID) {
		return nil, nil, errors.New(errors.ErrCodeForbidden, "organizer or manager clearance required")
	}
	if !isManager && !event.Published {
		return nil, nil, errors.New(errors.ErrCodeNotFound, "event not found")
	}
	if event.Ended(time.Now()) {
		return nil, nil, errors.New(errors.ErrCodeGone, "event has ended")
	}
	if event.Full() {
		return nil, nil, errors.New(errors.ErrCodeConflict, "event is full")
	}

	user, err := s.userRepo.GetUserByUtorid(utorid)
	if err != nil {
		return nil, nil, err
	}
	if event.IsOrganizer(user.ID) {
		return nil, nil, errors.New(errors.ErrCodeConflict, "user is registered as an organizer")
	}
	if event.IsGuest(user.ID) {
		return nil, nil, errors.New(errors.ErrCodeAlreadyExists, "user is already a guest")
	}

	if err := s.repo.AddGuest(event.ID, user.ID); err != nil {
		return nil, nil, err
	}

	updated, err := s.repo.GetEventByID(event.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, user, nil
}

func (s *EventService) RemoveGuest(actor *models.User, eventID, userID uint) error {
	if !actor.Role.HasClearance(models.RoleManager) {
		return errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return err
	}
	if event.Ended(time.Now()) {
		return errors.New(errors.ErrCodeGone, "event has ended")
	}
	return s.repo.RemoveGuest(eventID, userID)
}

// JoinEvent adds the acting user to the guest list (self-service RSVP).
func (s *EventService) JoinEvent(actor *models.User, eventID uint) (*models.Event, error) {
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return nil, err
	}
	if event.Ended(time.Now()) {
		return nil, errors.New(errors.ErrCodeGone, "event has ended")
	}
	if event.Full() {
		return nil, errors.New(errors.ErrCodeConflict, "event is full")
	}
	if event.IsGuest(actor.ID) {
		return nil, errors.New(errors.ErrCodeAlreadyExists, "user is already on the guest list")
	}
	if event.IsOrganizer(actor.ID) {
		return nil, errors.New(errors.ErrCodeConflict, "user is an organizer and cannot be a guest")
	}

	if err := s.repo.AddGuest(event.ID, actor.ID); err != nil {
		return nil, err
	}
	return s.repo.GetEventByID(event.ID)
}

// LeaveEvent removes the acting user from the guest list.
func (s *EventService) LeaveEvent(actor *models.User, eventID uint) error {
	event, err := s.repo.GetEventByID(eventID)
	if err != nil {
		return err
	}
	if event.Ended(time.Now()) {
		return errors.New(errors.ErrCodeGone, "event has ended")
	}
	return s.repo.RemoveGuest(eventID, actor.ID)
}
