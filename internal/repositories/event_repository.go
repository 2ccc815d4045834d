package repositories

import (
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"gorm.io/gorm"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// CreateEvent creates a new event
func (r *EventRepository) CreateEvent(event *models.Event) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create event")
	}
	return nil
}

// GetEventByID retrieves an event with its membership lists
func (r *EventRepository) GetEventByID(id uint) (*models.Event, error) {
	var event models.Event
	result := r.db.
		Preload("Organizers.User").
		Preload("Guests.User").
		First(&event, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "event not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get event")
	}

	return &event, nil
}

// UpdateEvent persists event field changes
func (r *EventRepository) UpdateEvent(event *models.Event) error {
	result := r.db.Model(&models.Event{}).Where("id = ?", event.ID).
		Select("Name", "Description", "Location", "StartTime", "EndTime",
			"Capacity", "PointsRemain", "PointsAwarded", "Published").
		Updates(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update event")
	}
	return nil
}

// DeleteEvent removes an event and its membership rows
func (r *EventRepository) DeleteEvent(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventOrganizer{}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete event organizers")
		}
		if err := tx.Where("event_id = ?", id).Delete(&models.EventGuest{}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete event guests")
		}
		if err := tx.Delete(&models.Event{}, id).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete event")
		}
		return nil
	})
}

// AddOrganizer inserts a membership row
func (r *EventRepository) AddOrganizer(eventID, userID uint) error {
	row := &models.EventOrganizer{EventID: eventID, UserID: userID}
	if err := r.db.Create(row).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to add organizer")
	}
	return nil
}

// RemoveOrganizer deletes a membership row
func (r *EventRepository) RemoveOrganizer(eventID, userID uint) error {
	result := r.db.Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&models.EventOrganizer{})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to remove organizer")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "user is not an organizer for this event")
	}
	return nil
}

// AddGuest inserts a guest row
func (r *EventRepository) AddGuest(eventID, userID uint) error {
	row := &models.EventGuest{EventID: eventID, UserID: userID}
	if err := r.db.Create(row).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to add guest")
	}
	return nil
}

// RemoveGuest deletes a guest row
func (r *EventRepository) RemoveGuest(eventID, userID uint) error {
	result := r.db.Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&models.EventGuest{})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to remove guest")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "user is not a guest for this event")
	}
	return nil
}

// EventListFilter narrows event listings. PublishedOnly is forced for
// callers below manager clearance.
type EventListFilter struct {
	Name          string
	Location      string
	Started       *bool
	Ended         *bool
	Published     *bool
	PublishedOnly bool
	Page          int
	Limit         int
}

// ListEvents returns a page of events plus the unpaged count.
func (r *EventRepository) ListEvents(filter EventListFilter, now time.Time) ([]models.Event, int64, error) {
	query := r.db.Model(&models.Event{})

	if filter.PublishedOnly {
		query = query.Where("published = ?", true)
	} else if filter.Published != nil {
		query = query.Where("published = ?", *filter.Published)
	}
	if filter.Name != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Name+"%")
	}
	if filter.Location != "" {
		query = query.Where("LOWER(location) LIKE LOWER(?)", "%"+filter.Location+"%")
	}
	if filter.Started != nil {
		if *filter.Started {
			query = query.Where("start_time <= ?", now)
		} else {
			query = query.Where("start_time > ?", now)
		}
	}
	if filter.Ended != nil {
		if *filter.Ended {
			query = query.Where("end_time <= ?", now)
		} else {
			query = query.Where("end_time > ?", now)
		}
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count events")
	}

	var events []models.Event
	err := query.
		Preload("Guests").
		Order("start_time ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&events).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list events")
	}

	return events, count, nil
}
