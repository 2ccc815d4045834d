package services

import (
	"time"

	"github.com/campuspoints/loyalty-backend/internal/config"
	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/security"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
	"github.com/campuspoints/loyalty-backend/pkg/utils"
	"github.com/google/uuid"
)

const (
	registrationTokenTTL = 7 * 24 * time.Hour
	resetTokenTTL        = time.Hour
)

// UserService owns account lifecycle: registration, authentication,
// password reset and the manager-side profile updates.
type UserService struct {
	repo *repositories.UserRepository
	cfg  *config.Config
}

func NewUserService(repo *repositories.UserRepository, cfg *config.Config) *UserService {
	return &UserService{repo: repo, cfg: cfg}
}

type RegisteredUser struct {
	User       *models.User
	ResetToken string
	ExpiresAt  time.Time
}

// Register creates a regular account with a temporary password and an
// activation reset token.
func (s *UserService) Register(actor *models.User, utorid, name, email string) (*RegisteredUser, error) {
	if !actor.Role.HasClearance(models.RoleCashier) {
		return nil, errors.New(errors.ErrCodeForbidden, "cashier clearance required")
	}
	if !models.ValidUtorid(utorid) {
		return nil, errors.New(errors.ErrCodeValidation, "utorid must be exactly 8 alphanumeric characters")
	}
	if !security.ValidateEmail(email) {
		return nil, errors.New(errors.ErrCodeValidation, "invalid University of Toronto email")
	}
	name = security.SanitizeString(name)
	if len(name) < 1 || len(name) > 50 {
		return nil, errors.New(errors.ErrCodeValidation, "name must be between 1 and 50 characters")
	}

	exists, err := s.repo.UserExists(utorid)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.New(errors.ErrCodeAlreadyExists, "user already exists")
	}

	hashed, err := security.HashPassword(utils.GenerateRandomID(16))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to hash password")
	}

	resetToken := uuid.NewString()
	expiresAt := time.Now().Add(registrationTokenTTL)

	user := &models.User{
		Utorid:            utorid,
		Username:          utorid,
		Name:              name,
		Email:             email,
		Password:          hashed,
		Role:              models.RoleRegular,
		ResetToken:        &resetToken,
		ResetTokenExpires: &expiresAt,
	}
	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}

	return &RegisteredUser{User: user, ResetToken: resetToken, ExpiresAt: expiresAt}, nil
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
}

// Authenticate verifies credentials and issues a bearer token.
func (s *UserService) Authenticate(utorid, password string) (*AuthResult, error) {
	user, err := s.repo.GetUserByUtorid(utorid)
	if err != nil {
		if errors.Code(err) == errors.ErrCodeNotFound {
			return nil, errors.New(errors.ErrCodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	if user.Password == "" || !security.CheckPassword(user.Password, password) {
		return nil, errors.New(errors.ErrCodeUnauthorized, "invalid credentials")
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.repo.UpdateUser(user); err != nil {
		return nil, err
	}

	token, expiresAt, err := security.GenerateJWT(user, s.cfg.JWTSecret, s.cfg.GetTokenTTL())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to sign token")
	}

	return &AuthResult{Token: token, ExpiresAt: expiresAt}, nil
}

type ResetRequest struct {
	ResetToken string
	ExpiresAt  time.Time
}

// RequestReset issues a fresh password-reset token. The per-utorid cooldown
// is enforced by the caller's rate limiter.
func (s *UserService) RequestReset(utorid string) (*ResetRequest, error) {
	user, err := s.repo.GetUserByUtorid(utorid)
	if err != nil {
		return nil, err
	}

	resetToken := uuid.NewString()
	expiresAt := time.Now().Add(resetTokenTTL)
	user.ResetToken = &resetToken
	user.ResetTokenExpires = &expiresAt
	if err := s.repo.UpdateUser(user); err != nil {
		return nil, err
	}

	return &ResetRequest{ResetToken: resetToken, ExpiresAt: expiresAt}, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *UserService) ResetPassword(token, utorid, password string) error {
	if !security.ValidPassword(password) {
		return errors.New(errors.ErrCodeValidation,
			"password must be 8-20 characters with upper, lower, digit and special characters")
	}

	user, err := s.repo.GetUserByResetToken(token)
	if err != nil {
		return err
	}
	if user.ResetTokenExpires == nil || time.Now().After(*user.ResetTokenExpires) {
		return errors.New(errors.ErrCodeGone, "reset token expired")
	}
	if user.Utorid != utorid {
		return errors.New(errors.ErrCodeUnauthorized, "utorid does not match reset token")
	}

	hashed, err := security.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to hash password")
	}

	user.Password = hashed
	user.ResetToken = nil
	user.ResetTokenExpires = nil
	return s.repo.UpdateUser(user)
}

// UpdatePassword changes the acting user's password after verifying the
// old one.
func (s *UserService) UpdatePassword(actorID uint, oldPassword, newPassword string) error {
	if !security.ValidPassword(newPassword) {
		return errors.New(errors.ErrCodeValidation,
			"password must be 8-20 characters with upper, lower, digit and special characters")
	}

	user, err := s.repo.GetUserByID(actorID)
	if err != nil {
		return err
	}
	if !security.CheckPassword(user.Password, oldPassword) {
		return errors.New(errors.ErrCodeForbidden, "current password is incorrect")
	}

	hashed, err := security.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to hash password")
	}
	user.Password = hashed
	return s.repo.UpdateUser(user)
}

type UpdateProfileInput struct {
	Name     *string
	Email    *string
	Birthday *time.Time
}

// UpdateProfile applies self-service profile changes.
func (s *UserService) UpdateProfile(actorID uint, input UpdateProfileInput) (*models.User, error) {
	user, err := s.repo.GetUserByID(actorID)
	if err != nil {
		return nil, err
	}

	changed := false
	if input.Name != nil {
		name := security.SanitizeString(*input.Name)
		if len(name) < 1 || len(name) > 50 {
			return nil, errors.New(errors.ErrCodeValidation, "name must be between 1 and 50 characters")
		}
		user.Name = name
		changed = true
	}
	if input.Email != nil {
		if !security.ValidateEmail(*input.Email) {
			return nil, errors.New(errors.ErrCodeValidation, "invalid University of Toronto email")
		}
		user.Email = *input.Email
		changed = true
	}
	if input.Birthday != nil {
		user.Birthday = input.Birthday
		changed = true
	}

	if !changed {
		return nil, errors.New(errors.ErrCodeValidation, "no valid fields to update")
	}

	if err := s.repo.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

type AdminUpdateUserInput struct {
	Email      *string
	Verified   *bool
	Suspicious *bool
	Role       *models.Role
}

// AdminUpdateUser applies manager-side account changes. Managers may only
// assign regular or cashier; superusers may assign any role. Promoting to
// cashier clears the suspicious flag.
func (s *UserService) AdminUpdateUser(actor *models.User, targetID uint, input AdminUpdateUserInput) (*models.User, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}

	user, err := s.repo.GetUserByID(targetID)
	if err != nil {
		return nil, err
	}

	changed := false
	if input.Email != nil {
		if !security.ValidateEmail(*input.Email) {
			return nil, errors.New(errors.ErrCodeValidation, "invalid University of Toronto email")
		}
		user.Email = *input.Email
		changed = true
	}
	if input.Verified != nil {
		if !*input.Verified {
			return nil, errors.New(errors.ErrCodeValidation, "verified can only be set to true")
		}
		user.Verified = true
		changed = true
	}
	if input.Suspicious != nil {
		user.Suspicious = *input.Suspicious
		changed = true
	}
	if input.Role != nil {
		role := *input.Role
		if !role.Valid() {
			return nil, errors.New(errors.ErrCodeValidation, "invalid role")
		}
		if actor.Role == models.RoleManager && role != models.RoleRegular && role != models.RoleCashier {
			return nil, errors.New(errors.ErrCodeForbidden, "managers can only set role to cashier or regular")
		}
		user.Role = role
		if role == models.RoleCashier {
			user.Suspicious = false
		}
		changed = true
	}

	if !changed {
		return nil, errors.New(errors.ErrCodeValidation, "no valid fields to update")
	}

	if err := s.repo.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetProfile returns a user with the one-time promotions still available
// to them.
func (s *UserService) GetProfile(userID uint) (*models.User, []models.Promotion, error) {
	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		return nil, nil, err
	}
	promotions, err := s.repo.GetUnredeemedOneTimePromotions(userID)
	if err != nil {
		return nil, nil, err
	}
	return user, promotions, nil
}

func (s *UserService) GetUserByUtorid(utorid string) (*models.User, error) {
	return s.repo.GetUserByUtorid(utorid)
}

func (s *UserService) ListUsers(actor *models.User, filter repositories.UserListFilter) ([]models.User, int64, error) {
	if !actor.Role.HasClearance(models.RoleManager) {
		return nil, 0, errors.New(errors.ErrCodeForbidden, "manager clearance required")
	}
	return s.repo.ListUsers(filter)
}
