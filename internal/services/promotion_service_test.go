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

func newPromotionService(db *gorm.DB) *PromotionService {
	return NewPromotionService(repositories.NewPromotionRepository(db))
}

func validPromotionInput() CreatePromotionInput {
	rate := 0.25
	return CreatePromotionInput{
		Name:        "Spring sale",
		Description: "Extra points on everything",
		Type:        models.PromotionTypeAutomatic,
		StartTime:   time.Now().Add(time.Hour),
		EndTime:     time.Now().Add(72 * time.Hour),
		Rate:        &rate,
	}
}

func TestCreatePromotion(t *testing.T) {
	db := newTestDB(t)
	svc := newPromotionService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)

	promotion, err := svc.CreatePromotion(manager, validPromotionInput())
	require.NoError(t, err)
	assert.Equal(t, models.PromotionTypeAutomatic, promotion.Type)
	assert.NotZero(t, promotion.ID)
}

func TestCreatePromotion_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := newPromotionService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	_, err := svc.CreatePromotion(regular, validPromotionInput())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.Code(err))

	input := validPromotionInput()
	input.Type = "recurring"
	_, err = svc.CreatePromotion(manager, input)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	input = validPromotionInput()
	input.StartTime = time.Now().Add(-time.Hour)
	_, err = svc.CreatePromotion(manager, input)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	input = validPromotionInput()
	input.EndTime = input.StartTime
	_, err = svc.CreatePromotion(manager, input)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))

	input = validPromotionInput()
	negative := -1.0
	input.MinSpending = &negative
	_, err = svc.CreatePromotion(manager, input)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.Code(err))
}

func TestGetPromotion_RegularVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := newPromotionService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	promotion, err := svc.CreatePromotion(manager, validPromotionInput())
	require.NoError(t, err)

	// Not started yet: hidden from regular users, visible to managers.
	_, err = svc.GetPromotion(regular, promotion.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(err))

	_, err = svc.GetPromotion(manager, promotion.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Promotion{}).Where("id = ?", promotion.ID).
		Update("start_time", time.Now().Add(-time.Minute)).Error)

	_, err = svc.GetPromotion(regular, promotion.ID)
	require.NoError(t, err)
}

func TestListPromotions_RegularExcludesRedeemed(t *testing.T) {
	db := newTestDB(t)
	svc := newPromotionService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	regular := createTestUser(t, db, "regular1", models.RoleRegular, 0)

	points := 50
	input := validPromotionInput()
	input.Name = "One-time bonus"
	input.Type = models.PromotionTypeOneTime
	input.Rate = nil
	input.Points = &points
	oneTime, err := svc.CreatePromotion(manager, input)
	require.NoError(t, err)

	active, err := svc.CreatePromotion(manager, validPromotionInput())
	require.NoError(t, err)

	// Open both windows.
	require.NoError(t, db.Model(&models.Promotion{}).
		Where("id IN ?", []uint{oneTime.ID, active.ID}).
		Update("start_time", time.Now().Add(-time.Minute)).Error)

	promotions, count, err := svc.ListPromotions(regular, repositories.PromotionListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The regular user redeems the one-time promotion.
	require.NoError(t, db.Create(&models.UserPromotion{
		UserID:      regular.ID,
		PromotionID: oneTime.ID,
		Redeemed:    true,
	}).Error)

	promotions, count, err = svc.ListPromotions(regular, repositories.PromotionListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, promotions, 1)
	assert.Equal(t, active.ID, promotions[0].ID)
}

func TestUpdatePromotion_FrozenAfterStart(t *testing.T) {
	db := newTestDB(t)
	svc := newPromotionService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	promotion, err := svc.CreatePromotion(manager, validPromotionInput())
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Promotion{}).Where("id = ?", promotion.ID).
		Update("start_time", time.Now().Add(-time.Minute)).Error)

	name := "Renamed"
	_, err = svc.UpdatePromotion(manager, promotion.ID, UpdatePromotionInput{Name: &name})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))

	// End time stays mutable until the window closes.
	newEnd := time.Now().Add(96 * time.Hour)
	updated, err := svc.UpdatePromotion(manager, promotion.ID, UpdatePromotionInput{EndTime: &newEnd})
	require.NoError(t, err)
	assert.WithinDuration(t, newEnd, updated.EndTime, time.Second)
}

func TestUpdatePromotion_EndTimeFrozenAfterEnd(t *testing.T) {
	db := newTestDB(t)
	svc := newPromotionService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	promotion, err := svc.CreatePromotion(manager, validPromotionInput())
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Promotion{}).Where("id = ?", promotion.ID).Updates(map[string]interface{}{
		"start_time": time.Now().Add(-2 * time.Hour),
		"end_time":   time.Now().Add(-time.Hour),
	}).Error)

	newEnd := time.Now().Add(time.Hour)
	_, err = svc.UpdatePromotion(manager, promotion.ID, UpdatePromotionInput{EndTime: &newEnd})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}

func TestDeletePromotion_OnlyBeforeStart(t *testing.T) {
	db := newTestDB(t)
	svc := newPromotionService(db)

	manager := createTestUser(t, db, "manager1", models.RoleManager, 0)
	promotion, err := svc.CreatePromotion(manager, validPromotionInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeletePromotion(manager, promotion.ID))

	started, err := svc.CreatePromotion(manager, validPromotionInput())
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Promotion{}).Where("id = ?", started.ID).
		Update("start_time", time.Now().Add(-time.Minute)).Error)

	err = svc.DeletePromotion(manager, started.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeForbidden, errors.Code(err))
}
