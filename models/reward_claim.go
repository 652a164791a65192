package models

import "time"

// RewardClaim marks one reward threshold as claimed by a participant for a
// series. Claims are monotonic and idempotent: the composite primary key makes
// a repeated claim a no-op rather than a duplicate, which is the only
// concurrency control the claim path needs.
type RewardClaim struct {
	ParticipantID string    `gorm:"primaryKey;size:64" json:"participant_id"`
	SeriesID      string    `gorm:"primaryKey;size:64" json:"series_id"`
	Threshold     int       `gorm:"primaryKey" json:"threshold"`
	ClaimedAt     time.Time `json:"claimed_at"`
}
