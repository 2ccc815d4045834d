package services

import (
	"time"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/security"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
)

// PromotionService owns the reward-rule catalog: creation, the per-field
// freeze windows, role-scoped visibility and pre-start deletion.
type PromotionService struct {
	repo *repositories.PromotionRepository
}

func NewPromotionService(repo *repositories.PromotionRepository) *PromotionService {
	return &PromotionService{repo: repo}
}

type CreatePromotionInput struct {
	Name        string
	Description string
	Type        string
	StartTime   time.Time
	EndTime     time.Time
	MinSpending *float64
	Rate        *float64
	Points      *int
}

func (s *PromotionService) CreatePromotion(actor *models.User, input CreatePromotionInput) (*models.Promotion, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	if input.Name == "" || input.Description == "" {
		return nil, errors.New(errors.ErrCodeValidation, "missing required fields")
	}
	if !models.ValidPromotionType(input.Type) {
		return nil, errors.New(errors.ErrCodeValidation, "invalid promotion type")
	}

	now := time.Now()
	if input.StartTime.Before(now) {
		return nil, errors.New(errors.ErrCodeValidation, "startTime must not be in the past")
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, errors.New(errors.ErrCodeValidation, "endTime must be after startTime")
	}
	if input.MinSpending != nil && *input.MinSpending <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "minSpending must be a positive number")
	}
	if input.Rate != nil && *input.Rate <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "rate must be a positive number")
	}
	if input.Points != nil && *input.Points < 0 {
		return nil, errors.New(errors.ErrCodeValidation, "points must be a non-negative integer")
	}

	promotion := &models.Promotion{
		Name:        security.SanitizeString(input.Name),
		Description: security.SanitizeString(input.Description),
		Type:        input.Type,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		MinSpending: input.MinSpending,
		Rate:        input.Rate,
		Points:      input.Points,
	}
	if err := s.repo.CreatePromotion(promotion); err != nil {
		return nil, err
	}
	return promotion, nil
}

// GetPromotion returns the promotion. Callers below manager clearance only
// see currently-active promotions.
func (s *PromotionService) GetPromotion(actor *models.User, promotionID uint) (*models.Promotion, error) {
	promotion, err := s.repo.GetPromotionByID(promotionID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.HasClearance(models.RoleManager) && !promotion.ActiveAt(time.Now()) {
		return nil, errors.New(errors.ErrCodeNotFound, "promotion not currently active")
	}
	return promotion, nil
}

func (s *PromotionService) ListPromotions(actor *models.User, filter repositories.PromotionListFilter) ([]models.Promotion, int64, error) {
	if actor.Role.HasClearance(models.RoleManager) {
		if filter.Started != nil && filter.Ended != nil {
			return nil, 0, errors.New(errors.ErrCodeValidation, "cannot specify both started and ended filters")
		}
		filter.ActiveForUserID = 0
	} else {
		filter.Started = nil
		filter.Ended = nil
		filter.ActiveForUserID = actor.ID
	}
	return s.repo.ListPromotions(filter, time.Now())
}

type UpdatePromotionInput struct {
	Name        *string
	Description *string
	Type        *string
	StartTime   *time.Time
	EndTime     *time.Time
	MinSpending *float64
	Rate        *float64
	Points      *int
}

// UpdatePromotion applies PATCH semantics. Every field except endTime
// freezes once the window has opened; endTime freezes once it has closed.
func (s *PromotionService) UpdatePromotion(actor *models.User, promotionID uint, input UpdatePromotionInput) (*models.Promotion, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}

	promotion, err := s.repo.GetPromotionByID(promotionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	afterStart := promotion.Started(now)
	afterEnd := promotion.Ended(now)
	changed := false

	if input.Name != nil {
		if afterStart {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update name after the promotion has started")
		}
		promotion.Name = security.SanitizeString(*input.Name)
		changed = true
	}
	if input.Description != nil {
		if afterStart {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update description after the promotion has started")
		}
		promotion.Description = security.SanitizeString(*input.Description)
		changed = true
	}
	if input.Type != nil {
		if afterStart {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update type after the promotion has started")
		}
		if !models.ValidPromotionType(*input.Type) {
			return nil, errors.New(errors.ErrCodeValidation, "invalid promotion type")
		}
		promotion.Type = *input.Type
		changed = true
	}
	if input.StartTime != nil {
		if afterStart {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update startTime after the promotion has started")
		}
		if input.StartTime.Before(now) {
			return nil, errors.New(errors.ErrCodeValidation, "startTime must not be in the past")
		}
		promotion.StartTime = *input.StartTime
		changed = true
	}
	if input.EndTime != nil {
		if afterEnd {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update endTime after the promotion has ended")
		}
		if !input.EndTime.After(promotion.StartTime) {
			return nil, errors.New(errors.ErrCodeValidation, "endTime must be after startTime")
		}
		promotion.EndTime = *input.EndTime
		changed = true
	}
	if input.MinSpending != nil {
		if afterStart {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update minSpending after the promotion has started")
		}
		if *input.MinSpending <= 0 {
			return nil, errors.New(errors.ErrCodeValidation, "minSpending must be a positive number")
		}
		promotion.MinSpending = input.MinSpending
		changed = true
	}
	if input.Rate != nil {
		if afterStart {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update rate after the promotion has started")
		}
		if *input.Rate <= 0 {
			return nil, errors.New(errors.ErrCodeValidation, "rate must be a positive number")
		}
		promotion.Rate = input.Rate
		changed = true
	}
	if input.Points != nil {
		if afterStart {
			return nil, errors.New(errors.ErrCodeConflict, "cannot update points after the promotion has started")
		}
		if *input.Points < 0 {
			return nil, errors.New(errors.ErrCodeValidation, "points must be a non-negative integer")
		}
		promotion.Points = input.Points
		changed = true
	}

	if !changed {
		return nil, errors.New(errors.ErrCodeValidation, "no valid fields to update")
	}

	if err := s.repo.UpdatePromotion(promotion); err != nil {
		return nil, err
	}
	return promotion, nil
}

// DeletePromotion removes a promotion, allowed only before its window opens.
func (s *PromotionService) DeletePromotion(actor *models.User, promotionID uint) error {
	if !actor.Role.HasClearance(models.RoleManager) {
		return errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	promotion, err := s.repo.GetPromotionByID(promotionID)
	if err != nil {
		return err
	}
	if promotion.Started(time.Now()) {
		return errors.New(errors.ErrCodeForbidden, "cannot delete a promotion that has started")
	}
	return s.repo.DeletePromotion(promotion.ID)
}
