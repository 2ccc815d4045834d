package services

import (
	"testing"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newEventService(db *gorm.DB) *EventService {
	return NewEventService(repositories.NewEventRepository(db), repositories.NewUserRepository(db))
}

func validEventInput() CreateEventInput {
	return CreateEventInput{
		Name:        "Hack Night",
		Description: "Monthly hack night",
		Location:    "BA 2250",
		StartTime:   time.Now().Add(24 * time.Hour),
		EndTime:     time.Now().Add(28 * time.Hour),
		Points:      500,
	}
}

func TestCreateEvent(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)

	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)

	assert.Equal(t, 500, event.PointsRemain)
	assert.Equal(t, 0, event.PointsAwarded)
	assert.False(t, event.Published)
}

func TestCreateEvent_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	_, err := svc.CreateEvent(regular, validEventInput())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.Code(err))

	input := validEventInput()
	input.EndTime = input.StartTime.Add(-time.Hour)
	_, err = svc.CreateEvent(manager, input)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	input = validEventInput()
	input.Points = 0
	_, err = svc.CreateEvent(manager, input)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	input = validEventInput()
	zero := 0
	input.Capacity = &zero
	_, err = svc.CreateEvent(manager, input)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestGetEvent_Visibility(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)

	_, err = svc.GetEvent(regular, event.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.Code(err))

	_, err = svc.GetEvent(manager, event.ID)
	require.NoError(t, err)

	published := true
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Published: &published})
	require.NoError(t, err)

	_, err = svc.GetEvent(regular, event.ID)
	require.NoError(t, err)
}

func TestUpdateEvent_PublishTrueOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)

	unpublish := false
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Published: &unpublish})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestUpdateEvent_FrozenAfterStart(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)

	// Push the start into the past.
	require.NoError(t, db.Model(&models.Event{}).Where("id = ?", event.ID).
		Update("start_time", time.Now().Add(-time.Hour)).Error)

	name := "Renamed"
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Name: &name})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))

	// End time is still mutable until the event ends.
	newEnd := time.Now().Add(48 * time.Hour)
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{EndTime: &newEnd})
	require.NoError(t, err)
}

func TestUpdateEvent_PointsRespectAwarded(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Event{}).Where("id = ?", event.ID).
		Updates(map[string]interface{}{"points_remain": 200, "points_awarded": 300}).Error)

	tooFew := 250
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Points: &tooFew})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))

	newTotal := 400
	updated, err := svc.UpdateEvent(manager, event.ID, UpdateEventInput{Points: &newTotal})
	require.NoError(t, err)
	assert.Equal(t, 100, updated.PointsRemain)
	assert.Equal(t, 300, updated.PointsAwarded)
}

func TestUpdateEvent_PointsManagerOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	organizer := createTestUser(t, db, "organiz1", models.RoleRegular, 0)

	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)
	_, err = svc.AddOrganizer(manager, event.ID, organizer.Utorid)
	require.NoError(t, err)

	points := 600
	_, err = svc.UpdateEvent(organizer, event.ID, UpdateEventInput{Points: &points})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.Code(err))

	// Organizers can still edit descriptive fields.
	location := "BA 3200"
	_, err = svc.UpdateEvent(organizer, event.ID, UpdateEventInput{Location: &location})
	require.NoError(t, err)
}

func TestDeleteEvent_PublishedRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)

	published := true
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Published: &published})
	require.NoError(t, err)

	err = svc.DeleteEvent(manager, event.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}

func TestGuestCapacityAndExclusivity(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	organizer := createTestUser(t, db, "organiz1", models.RoleRegular, 0)
	guestA := createTestUser(t, db, "guestaa1", models.RoleRegular, 0)
	guestB := createTestUser(t, db, "guestbb1", models.RoleRegular, 0)
	guestC := createTestUser(t, db, "guestcc1", models.RoleRegular, 0)

	input := validEventInput()
	capacity := 2
	input.Capacity = &capacity
	event, err := svc.CreateEvent(manager, input)
	require.NoError(t, err)

	published := true
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Published: &published})
	require.NoError(t, err)

	_, err = svc.AddOrganizer(manager, event.ID, organizer.Utorid)
	require.NoError(t, err)

	// Organizers cannot also be guests.
	_, _, err = svc.AddGuest(manager, event.ID, organizer.Utorid)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))

	_, _, err = svc.AddGuest(manager, event.ID, guestA.Utorid)
	require.NoError(t, err)
	_, _, err = svc.AddGuest(manager, event.ID, guestB.Utorid)
	require.NoError(t, err)

	// Duplicate registration.
	_, _, err = svc.AddGuest(manager, event.ID, guestA.Utorid)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.Code(err))

	// Full.
	_, _, err = svc.AddGuest(manager, event.ID, guestC.Utorid)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))

	// Guests cannot be promoted to organizer while on the guest list.
	_, err = svc.AddOrganizer(manager, event.ID, guestA.Utorid)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}

func TestJoinAndLeaveEvent(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)
	published := true
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Published: &published})
	require.NoError(t, err)

	joined, err := svc.JoinEvent(regular, event.ID)
	require.NoError(t, err)
	assert.True(t, joined.IsGuest(regular.ID))

	_, err = svc.JoinEvent(regular, event.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.Code(err))

	require.NoError(t, svc.LeaveEvent(regular, event.ID))

	after, err := svc.GetEvent(manager, event.ID)
	require.NoError(t, err)
	assert.False(t, after.IsGuest(regular.ID))
}

func TestEndedEventIsGone(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	event, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)
	published := true
	_, err = svc.UpdateEvent(manager, event.ID, UpdateEventInput{Published: &published})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Event{}).Where("id = ?", event.ID).Updates(map[string]interface{}{
		"start_time": time.Now().Add(-2 * time.Hour),
		"end_time":   time.Now().Add(-time.Hour),
	}).Error)

	_, err = svc.JoinEvent(regular, event.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGone, errors.Code(err))

	_, _, err = svc.AddGuest(manager, event.ID, regular.Utorid)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGone, errors.Code(err))

	_, err = svc.AddOrganizer(manager, event.ID, regular.Utorid)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGone, errors.Code(err))
}

func TestListEvents_RegularSeesPublishedOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newEventService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	_, err := svc.CreateEvent(manager, validEventInput())
	require.NoError(t, err)

	input := validEventInput()
	input.Name = "Published Event"
	visible, err := svc.CreateEvent(manager, input)
	require.NoError(t, err)
	published := true
	_, err = svc.UpdateEvent(manager, visible.ID, UpdateEventInput{Published: &published})
	require.NoError(t, err)

	events, count, err := svc.ListEvents(regular, repositories.EventListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, events, 1)
	assert.Equal(t, visible.ID, events[0].ID)

	_, count, err = svc.ListEvents(manager, repositories.EventListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
