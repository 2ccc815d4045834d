package models

import (
	"time"
)

type Event struct {
	ID            uint       `gorm:"primaryKey"`
	Name          string     `gorm:"type:varchar(255);not null"`
	Description   string     `gorm:"type:text;not null"`
	Location      string     `gorm:"type:varchar(255);not null"`
	StartTime     time.Time  `gorm:"not null;index"`
	EndTime       time.Time  `gorm:"not null;index"`
	Capacity      *int       `gorm:"default:NULL"`
	PointsRemain  int        `gorm:"default:0;not null"`
	PointsAwarded int        `gorm:"default:0;not null"`
	Published     bool       `gorm:"default:false;not null"`
	Organizers    []EventOrganizer `gorm:"foreignKey:EventID"`
	Guests        []EventGuest     `gorm:"foreignKey:EventID"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}

func (e *Event) Started(now time.Time) bool {
	return !now.Before(e.StartTime)
}

func (e *Event) Ended(now time.Time) bool {
	return !now.Before(e.EndTime)
}

// TotalPoints is the full allocation: remaining plus already awarded.
func (e *Event) TotalPoints() int {
	return e.PointsRemain + e.PointsAwarded
}

// Full reports whether the guest list has reached capacity.
func (e *Event) Full() bool {
	return e.Capacity != nil && len(e.Guests) >= *e.Capacity
}

func (e *Event) IsOrganizer(userID uint) bool {
	for _, o := range e.Organizers {
		if o.UserID == userID {
			return true
		}
	}
	return false
}

func (e *Event) IsGuest(userID uint) bool {
	for _, g := range e.Guests {
		if g.UserID == userID {
			return true
		}
	}
	return false
}

type EventOrganizer struct {
	EventID   uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (EventOrganizer) TableName() string {
	return "event_organizers"
}

type EventGuest struct {
	EventID   uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (EventGuest) TableName() string {
	return "event_guests"
}
