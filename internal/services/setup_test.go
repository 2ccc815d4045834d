package services

import (
	"testing"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database. A single connection keeps
// the whole test on one sqlite instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.TransactionPromotion{},
		&models.Event{},
		&models.EventOrganizer{},
		&models.EventGuest{},
		&models.Promotion{},
		&models.UserPromotion{},
	))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, utorid string, role models.Role, points int) *models.User {
	t.Helper()

	user := &models.User{
		Utorid:   utorid,
		Name:     "Test " + utorid,
		Email:    utorid + "@mail.utoronto.ca",
		Role:     role,
		Points:   points,
		Verified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()

	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return &user
}

func createTestEvent(t *testing.T, db *gorm.DB, points int, capacity *int) *models.Event {
	t.Helper()

	event := &models.Event{
		Name:         "Orientation Night",
		Description:  "Welcome event",
		Location:     "BA 1160",
		StartTime:    time.Now().Add(time.Hour),
		EndTime:      time.Now().Add(4 * time.Hour),
		Capacity:     capacity,
		PointsRemain: points,
		Published:    true,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func addGuest(t *testing.T, db *gorm.DB, eventID, userID uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.EventGuest{EventID: eventID, UserID: userID}).Error)
}
