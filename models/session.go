package models

import (
	"errors"
	"time"
)

// Session is one scheduled gathering inside a series. Sessions are created and
// mutated by the admin surface; this service only reads them.
type Session struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	SeriesID       string     `gorm:"index;size:64;not null" json:"series_id"`
	StartAt        *time.Time `json:"start_at"`
	CheckinOpenAt  *time.Time `json:"checkin_open_at"`
	CheckinCloseAt *time.Time `json:"checkin_close_at"`
	Token          string     `gorm:"size:128" json:"-"`
	RotatingToken  string     `gorm:"size:128" json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validation failures for a check-in attempt. The controller maps these onto
// user-facing messages; they never leak store details.
var (
	ErrSeriesMismatch = errors.New("session does not belong to the presented series")
	ErrWindowUnset    = errors.New("check-in window is not set")
	ErrNotOpenYet     = errors.New("check-in window has not opened")
	ErrWindowClosed   = errors.New("check-in window has closed")
	ErrTokenExpired   = errors.New("presented token is not the session's current token")
)

// ValidToken resolves the secret a scanner must present right now. A rotating
// token, when set, supersedes the static one.
func (s *Session) ValidToken() string {
	if s.RotatingToken != "" {
		return s.RotatingToken
	}
	return s.Token
}

// ValidateCheckIn decides whether a presented (seriesID, token) pair is
// admissible against this session at the given instant. The window is a closed
// interval: hitting either boundary exactly is still admissible. Purely
// evaluative; safe to call any number of times.
func (s *Session) ValidateCheckIn(seriesID, token string, now time.Time) error {
	if s.SeriesID != seriesID {
		return ErrSeriesMismatch
	}
	if s.CheckinOpenAt == nil || s.CheckinOpenAt.IsZero() ||
		s.CheckinCloseAt == nil || s.CheckinCloseAt.IsZero() {
		return ErrWindowUnset
	}
	if now.Before(*s.CheckinOpenAt) {
		return ErrNotOpenYet
	}
	if now.After(*s.CheckinCloseAt) {
		return ErrWindowClosed
	}
	valid := s.ValidToken()
	if valid == "" || valid != token {
		return ErrTokenExpired
	}
	return nil
}
