package utils

import (
	"encoding/json"
	"strings"
)

// SessionPayload is the decoded shape of a scanned QR code.
type SessionPayload struct {
	SeriesID  string `json:"seriesId"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// ParseSessionPayload decodes a raw QR payload. Two formats are accepted: a
// JSON object with seriesId/sessionId/token fields, or the pipe form
// "seriesId|sessionId|token" (extra trailing segments ignored). Returns nil
// for anything malformed or incomplete.
func ParseSessionPayload(raw string) *SessionPayload {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var parsed SessionPayload
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return nil
		}
		if parsed.SeriesID != "" && parsed.SessionID != "" && parsed.Token != "" {
			return &parsed
		}
		return nil
	}

	parts := strings.Split(trimmed, "|")
	if len(parts) >= 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
		return &SessionPayload{
			SeriesID:  parts[0],
			SessionID: parts[1],
			Token:     parts[2],
		}
	}

	return nil
}
