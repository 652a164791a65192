package models

import "time"

// AttendanceRecord is the immutable ledger fact: this participant attended
// this session. At most one record may ever exist per (session, participant)
// pair; the deterministic primary key enforces it at the store level.
type AttendanceRecord struct {
	ID            string    `gorm:"primaryKey;size:160" json:"id"`
	ParticipantID string    `gorm:"index;size:64;not null" json:"participant_id"`
	SessionID     string    `gorm:"size:64;not null" json:"session_id"`
	SeriesID      string    `gorm:"index;size:64;not null" json:"series_id"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
}

// AttendanceID builds the deterministic ledger key for a (session,
// participant) pair.
func AttendanceID(sessionID, participantID string) string {
	return sessionID + "_" + participantID
}
