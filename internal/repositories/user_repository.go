package repositories

import (
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(user *models.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create user")
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	result := r.db.First(&user, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// GetUserByUtorid retrieves a user by utorid
func (r *UserRepository) GetUserByUtorid(utorid string) (*models.User, error) {
	var user models.User
	result := r.db.Where("utorid = ?", utorid).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// GetUserByResetToken retrieves a user holding an outstanding reset token
func (r *UserRepository) GetUserByResetToken(token string) (*models.User, error) {
	var user models.User
	result := r.db.Where("reset_token = ?", token).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "invalid reset token")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// UserExists checks if a user exists by utorid
func (r *UserRepository) UserExists(utorid string) (bool, error) {
	var count int64
	result := r.db.Model(&models.User{}).Where("utorid = ?", utorid).Count(&count)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check user existence")
	}
	return count > 0, nil
}

// UpdateUser persists user field changes
func (r *UserRepository) UpdateUser(user *models.User) error {
	result := r.db.Save(user)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update user")
	}
	return nil
}

// UserListFilter narrows the manager user listing.
type UserListFilter struct {
	Name      string
	Role      models.Role
	Verified  *bool
	Activated *bool
	Page      int
	Limit     int
}

// ListUsers returns a page of users plus the unpaged match count.
func (r *UserRepository) ListUsers(filter UserListFilter) ([]models.User, int64, error) {
	query := r.db.Model(&models.User{})

	if filter.Name != "" {
		pattern := "%" + filter.Name + "%"
		query = query.Where("utorid LIKE ? OR name LIKE ?", pattern, pattern)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Verified != nil {
		query = query.Where("verified = ?", *filter.Verified)
	}
	if filter.Activated != nil {
		if *filter.Activated {
			query = query.Where("last_login IS NOT NULL")
		} else {
			query = query.Where("last_login IS NULL")
		}
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count users")
	}

	var users []models.User
	err := query.
		Order("id ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list users")
	}

	return users, count, nil
}

// GetUnredeemedOneTimePromotions returns the active one-time promotions a
// user has not yet consumed, for profile responses. A user_promotions row is
// only written when a promotion is consumed, so availability is absence from
// the redeemed set.
func (r *UserRepository) GetUnredeemedOneTimePromotions(userID uint) ([]models.Promotion, error) {
	now := time.Now()
	var promotions []models.Promotion
	err := r.db.Model(&models.Promotion{}).
		Where("type = ? AND start_time <= ? AND end_time > ?", models.PromotionTypeOneTime, now, now).
		Where("promotions.id NOT IN (?)",
			r.db.Model(&models.UserPromotion{}).
				Select("promotion_id").
				Where("user_id = ? AND redeemed = ?", userID, true)).
		Find(&promotions).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user promotions")
	}
	return promotions, nil
}
