package repositories

import (
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"gorm.io/gorm"
)

type PromotionRepository struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// CreatePromotion creates a new promotion
func (r *PromotionRepository) CreatePromotion(promotion *models.Promotion) error {
	result := r.db.Create(promotion)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create promotion")
	}
	return nil
}

// GetPromotionByID retrieves a promotion by ID
func (r *PromotionRepository) GetPromotionByID(id uint) (*models.Promotion, error) {
	var promotion models.Promotion
	result := r.db.First(&promotion, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "promotion not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get promotion")
	}

	return &promotion, nil
}

// UpdatePromotion persists promotion field changes
func (r *PromotionRepository) UpdatePromotion(promotion *models.Promotion) error {
	result := r.db.Save(promotion)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update promotion")
	}
	return nil
}

// DeletePromotion removes a promotion
func (r *PromotionRepository) DeletePromotion(id uint) error {
	result := r.db.Delete(&models.Promotion{}, id)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to delete promotion")
	}
	return nil
}

// HasRedeemed reports whether a user has consumed a one-time promotion.
func (r *PromotionRepository) HasRedeemed(userID, promotionID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserPromotion{}).
		Where("user_id = ? AND promotion_id = ? AND redeemed = ?", userID, promotionID, true).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check promotion redemption")
	}
	return count > 0, nil
}

// PromotionListFilter narrows promotion listings. ActiveForUserID restricts
// the listing to currently-active promotions the user has not redeemed,
// which is the only view callers below manager clearance get.
type PromotionListFilter struct {
	Name            string
	Type            string
	Started         *bool
	Ended           *bool
	ActiveForUserID uint
	Page            int
	Limit           int
}

// ListPromotions returns a page of promotions plus the unpaged count.
func (r *PromotionRepository) ListPromotions(filter PromotionListFilter, now time.Time) ([]models.Promotion, int64, error) {
	query := r.db.Model(&models.Promotion{})

	if filter.Name != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Name+"%")
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	if filter.ActiveForUserID != 0 {
		query = query.
			Where("start_time <= ? AND end_time > ?", now, now).
			Where("promotions.id NOT IN (?)",
				r.db.Model(&models.UserPromotion{}).
					Select("promotion_id").
					Where("user_id = ? AND redeemed = ?", filter.ActiveForUserID, true))
	} else {
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
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count promotions")
	}

	var promotions []models.Promotion
	err := query.
		Order("id ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&promotions).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list promotions")
	}

	return promotions, count, nil
}
