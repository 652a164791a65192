package models

import (
	"sort"
	"time"
)

// ParticipantStats aggregates a participant's attendance history. Always
// recomputed from the ledger on load, never persisted.
type ParticipantStats struct {
	TotalCheckIns      int    `json:"total_check_ins"`
	CurrentStreak      int    `json:"current_streak"`
	HighestStreak      int    `json:"highest_streak"`
	SeriesParticipated int    `json:"series_participated"`
	LastCheckInDate    string `json:"last_check_in_date,omitempty"`
}

// CalculateTotals returns the check-in count and the most recent check-in
// date, rendered in the given location. Zero records means count 0 and an
// empty date.
func CalculateTotals(records []AttendanceRecord, loc *time.Location) (int, string) {
	if len(records) == 0 {
		return 0, ""
	}
	if loc == nil {
		loc = time.Local
	}
	last := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	return len(records), last.In(loc).Format("2006-01-02")
}

// CalculateSeriesStreak walks a series' completed sessions in chronological
// order and counts consecutive attendance. Sessions that have not started yet
// are excluded; a session with no start time counts as already completed.
// Ties on start time break on session id so the walk is deterministic even
// when sessions were inserted retroactively.
func CalculateSeriesStreak(sessions []Session, attendance []AttendanceRecord, now time.Time) (current, highest int) {
	if len(sessions) == 0 {
		return 0, 0
	}

	attended := make(map[string]struct{}, len(attendance))
	for _, record := range attendance {
		if record.SessionID != "" {
			attended[record.SessionID] = struct{}{}
		}
	}

	completed := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.StartAt == nil || !s.StartAt.After(now) {
			completed = append(completed, s)
		}
	}

	sort.Slice(completed, func(i, j int) bool {
		a, b := startMillis(completed[i]), startMillis(completed[j])
		if a != b {
			return a < b
		}
		return completed[i].ID < completed[j].ID
	})

	for _, s := range completed {
		if _, ok := attended[s.ID]; ok {
			current++
			if current > highest {
				highest = current
			}
		} else {
			current = 0
		}
	}
	return current, highest
}

// CountSeriesParticipated counts distinct series ids in the ledger rows.
func CountSeriesParticipated(records []AttendanceRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.SeriesID != "" {
			seen[r.SeriesID] = struct{}{}
		}
	}
	return len(seen)
}

func startMillis(s Session) int64 {
	if s.StartAt == nil {
		return 0
	}
	return s.StartAt.UnixMilli()
}
