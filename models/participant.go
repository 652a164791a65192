package models

import (
	"time"

	"gorm.io/gorm"
)

// AvatarFormLevel records how far one avatar has evolved for a participant.
type AvatarFormLevel struct {
	AvatarID  string `json:"avatarId"`
	FormLevel int    `json:"formLevel"`
}

// Participant is the checking-in identity, mirrored server-side as the durable
// record of the device profile. Experience and last-seen are mutated by
// check-in; avatar fields by evolution; subscriptions and notification fields
// by the profile endpoints.
type Participant struct {
	ID                    string            `gorm:"primaryKey;size:64" json:"id"`
	Nickname              string            `gorm:"size:64" json:"nickname"`
	AgeBand               string            `gorm:"size:16" json:"age_band"`
	TimeZone              string            `gorm:"size:64" json:"time_zone"`
	NotificationsEnabled  bool              `json:"notifications_enabled"`
	ExpoPushToken         string            `gorm:"size:128" json:"-"`
	SubscribedSeriesIDs   []string          `gorm:"serializer:json" json:"subscribed_series_ids"`
	Experience            int               `gorm:"default:0" json:"experience"`
	AvatarID              string            `gorm:"size:32" json:"avatar_id"`
	AvatarFormLevels      []AvatarFormLevel `gorm:"serializer:json" json:"avatar_form_levels"`
	LastEvolvedExperience int               `gorm:"default:-1" json:"last_evolved_experience"`
	LastSeenAt            *time.Time        `json:"last_seen_at"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (p *Participant) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

// FormLevelFor returns the recorded form level for an avatar, defaulting to 1
// for avatars the participant has never evolved.
func (p *Participant) FormLevelFor(avatarID string) int {
	for _, entry := range p.AvatarFormLevels {
		if entry.AvatarID == avatarID {
			if entry.FormLevel > 1 {
				return entry.FormLevel
			}
			return 1
		}
	}
	return 1
}

// SubscribedTo reports whether the participant follows the given series.
func (p *Participant) SubscribedTo(seriesID string) bool {
	for _, id := range p.SubscribedSeriesIDs {
		if id == seriesID {
			return true
		}
	}
	return false
}
