package database

import (
	"github.com/campuspoints/loyalty-backend/internal/config"
	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/security"
	"github.com/campuspoints/loyalty-backend/pkg/logger"
	"github.com/campuspoints/loyalty-backend/pkg/utils"
	"gorm.io/gorm"
)

// SeedSuperuser bootstraps the first superuser account so that the role
// hierarchy has a root. No-op when the account already exists or when no
// superuser utorid is configured.
func SeedSuperuser(db *gorm.DB, cfg *config.Config) error {
	if cfg.SuperuserID == "" {
		logger.Info("No superuser utorid configured, skipping seed")
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("utorid = ?", cfg.SuperuserID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := utils.GenerateRandomID(16)
	hashed, err := security.HashPassword(password)
	if err != nil {
		return err
	}

	su := &models.User{
		Utorid:   cfg.SuperuserID,
		Username: cfg.SuperuserID,
		Name:     "Superuser",
		Email:    cfg.SuperuserEmail,
		Password: hashed,
		Role:     models.RoleSuperuser,
		Verified: true,
	}
	if err := db.Create(su).Error; err != nil {
		return err
	}

	// Logged once so the operator can capture it; a reset flow rotates it.
	logger.Warn("Seeded superuser account", "utorid", su.Utorid, "password", password)
	return nil
}
