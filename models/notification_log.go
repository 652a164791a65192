package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// NotificationLog is a dispatch receipt. Its existence means "do not resend
// this reminder for this (session, recipient) pair". Written only by the
// reminder dispatcher, for every attempted message, regardless of provider
// outcome.
type NotificationLog struct {
	ID        string    `gorm:"primaryKey;size:200" json:"id"`
	SessionID string    `gorm:"index;size:64;not null" json:"session_id"`
	SeriesID  string    `gorm:"size:64;not null" json:"series_id"`
	TokenHash string    `gorm:"size:32;not null" json:"token_hash"`
	SentAt    time.Time `json:"sent_at"`
}

// HashPushToken derives a short stable digest of a push token so receipts can
// be keyed per recipient without storing the token itself.
func HashPushToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:16]
}

// NotificationLogID builds the dedup key for a reminder receipt.
func NotificationLogID(sessionID, seriesID, pushToken string) string {
	return sessionID + "_" + seriesID + "_" + HashPushToken(pushToken)
}
