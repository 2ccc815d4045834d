package models

import (
	"testing"
	"time"
)

func promoWindow(start, end time.Time) Promotion {
	return Promotion{StartTime: start, EndTime: end}
}

func TestPromotionActiveAt(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	p := promoWindow(start, end)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before window", start.Add(-time.Second), false},
		{"at start", start, true},
		{"mid window", start.AddDate(0, 0, 15), true},
		{"at end", end, false},
		{"after end", end.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ActiveAt(tt.at); got != tt.want {
				t.Errorf("ActiveAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestPromotionBonus(t *testing.T) {
	minSpending := 50.0
	rate := 0.5
	points := 100

	tests := []struct {
		name  string
		promo Promotion
		spent float64
		want  int
	}{
		{
			name:  "automatic rate applied",
			promo: Promotion{Type: PromotionTypeAutomatic, Rate: &rate},
			spent: 20.0,
			want:  10,
		},
		{
			name:  "automatic rounds to nearest",
			promo: Promotion{Type: PromotionTypeAutomatic, Rate: &rate},
			spent: 10.9,
			want:  5,
		},
		{
			name:  "one-time flat points",
			promo: Promotion{Type: PromotionTypeOneTime, Points: &points},
			spent: 5.0,
			want:  100,
		},
		{
			name:  "minimum spending unmet",
			promo: Promotion{Type: PromotionTypeOneTime, Points: &points, MinSpending: &minSpending},
			spent: 49.99,
			want:  0,
		},
		{
			name:  "minimum spending met exactly",
			promo: Promotion{Type: PromotionTypeOneTime, Points: &points, MinSpending: &minSpending},
			spent: 50.0,
			want:  100,
		},
		{
			name:  "automatic without rate",
			promo: Promotion{Type: PromotionTypeAutomatic},
			spent: 100.0,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.promo.Bonus(tt.spent); got != tt.want {
				t.Errorf("Bonus(%v) = %d, want %d", tt.spent, got, tt.want)
			}
		})
	}
}

func TestValidPromotionType(t *testing.T) {
	if !ValidPromotionType(PromotionTypeAutomatic) || !ValidPromotionType(PromotionTypeOneTime) {
		t.Error("known promotion types should be valid")
	}
	if ValidPromotionType("recurring") || ValidPromotionType("") {
		t.Error("unknown promotion types should be invalid")
	}
}
