package models

import (
	"regexp"
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of clearance levels. Ordering matters:
// regular < cashier < manager < superuser.
type Role string

const (
	RoleRegular   Role = "regular"
	RoleCashier   Role = "cashier"
	RoleManager   Role = "manager"
	RoleSuperuser Role = "superuser"
)

var roleClearance = map[Role]int{
	RoleRegular:   0,
	RoleCashier:   1,
	RoleManager:   2,
	RoleSuperuser: 3,
}

func (r Role) Valid() bool {
	_, ok := roleClearance[r]
	return ok
}

func (r Role) Clearance() int {
	return roleClearance[r]
}

// HasClearance reports whether r ranks at or above required.
func (r Role) HasClearance(required Role) bool {
	return r.Valid() && required.Valid() && r.Clearance() >= required.Clearance()
}

var utoridPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)

// ValidUtorid reports whether s is exactly 8 alphanumeric characters.
func ValidUtorid(s string) bool {
	return utoridPattern.MatchString(s)
}

type User struct {
	ID                uint       `gorm:"primaryKey"`
	Utorid            string     `gorm:"uniqueIndex;type:varchar(8);not null"`
	Username          string     `gorm:"type:varchar(50)"`
	Name              string     `gorm:"type:varchar(50);not null"`
	Email             string     `gorm:"type:varchar(255);not null"`
	Password          string     `gorm:"type:varchar(255)"`
	Birthday          *time.Time `gorm:"default:NULL"`
	Role              Role       `gorm:"type:varchar(20);default:'regular';not null;index"`
	Points            int        `gorm:"default:0;not null"`
	Verified          bool       `gorm:"default:false;not null"`
	Suspicious        bool       `gorm:"default:false;not null"`
	AvatarURL         string     `gorm:"type:varchar(500)"`
	ResetToken        *string    `gorm:"type:varchar(64);index"`
	ResetTokenExpires *time.Time `gorm:"default:NULL"`
	LastLogin         *time.Time `gorm:"default:NULL"`
	CreatedAt         time.Time  `gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime"`
}

// BeforeSave hook for validation
func (u *User) BeforeSave(tx *gorm.DB) error {
	if !ValidUtorid(u.Utorid) {
		return gorm.ErrInvalidData
	}
	if !u.Role.Valid() {
		return gorm.ErrInvalidData
	}
	return nil
}

func (User) TableName() string {
	return "users"
}
