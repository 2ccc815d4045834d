package models

import (
	"math"
	"time"
)

// Promotion type constants
const (
	PromotionTypeAutomatic = "automatic"
	PromotionTypeOneTime   = "one-time"
)

func ValidPromotionType(t string) bool {
	return t == PromotionTypeAutomatic || t == PromotionTypeOneTime
}

type Promotion struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text;not null"`
	Type        string    `gorm:"type:varchar(20);not null;index"`
	StartTime   time.Time `gorm:"not null;index"`
	EndTime     time.Time `gorm:"not null;index"`
	MinSpending *float64  `gorm:"type:decimal(10,2)"`
	Rate        *float64  `gorm:"type:decimal(10,4)"`
	Points      *int      `gorm:"default:NULL"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (Promotion) TableName() string {
	return "promotions"
}

// ActiveAt reports whether t falls inside the application window
// [StartTime, EndTime).
func (p *Promotion) ActiveAt(t time.Time) bool {
	return !t.Before(p.StartTime) && t.Before(p.EndTime)
}

func (p *Promotion) Started(now time.Time) bool {
	return !now.Before(p.StartTime)
}

func (p *Promotion) Ended(now time.Time) bool {
	return now.After(p.EndTime)
}

// QualifiesSpending reports whether spent meets the minimum-spending bar.
func (p *Promotion) QualifiesSpending(spent float64) bool {
	return p.MinSpending == nil || spent >= *p.MinSpending
}

// Bonus computes the promotion's point contribution for a qualifying
// purchase: rate*spent for automatic promotions, the flat Points value for
// one-time promotions. Zero when the spending bar is not met.
func (p *Promotion) Bonus(spent float64) int {
	if !p.QualifiesSpending(spent) {
		return 0
	}
	switch p.Type {
	case PromotionTypeAutomatic:
		if p.Rate == nil {
			return 0
		}
		return int(math.Round(*p.Rate * spent))
	case PromotionTypeOneTime:
		if p.Points == nil {
			return 0
		}
		return *p.Points
	}
	return 0
}

// UserPromotion tracks per-user one-time redemption state.
type UserPromotion struct {
	UserID      uint      `gorm:"primaryKey;autoIncrement:false"`
	PromotionID uint      `gorm:"primaryKey;autoIncrement:false"`
	Redeemed    bool      `gorm:"default:false;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (UserPromotion) TableName() string {
	return "user_promotions"
}
