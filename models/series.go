package models

import "time"

// Series is a named recurring program composed of multiple sessions. Read-only
// from this service's perspective; its reward thresholds drive claim
// eligibility.
type Series struct {
	ID        string     `gorm:"primaryKey;size:64" json:"id"`
	Name      string     `gorm:"size:128" json:"name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsActive  bool       `gorm:"index" json:"is_active"`
	Completed bool       `json:"completed"`
	// Rewards holds raw threshold values as administered; always pass through
	// NormalizeRewardThresholds before use.
	Rewards   []int     `gorm:"serializer:json" json:"rewards"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
