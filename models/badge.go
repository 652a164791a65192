package models

// Badge is a derived achievement; unlocked state is recomputed from stats on
// every load.
type Badge struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

// GetBadges evaluates the badge set against a participant's stats.
func GetBadges(stats ParticipantStats) []Badge {
	return []Badge{
		{
			ID:          "first-checkin",
			Title:       "First Step",
			Description: "First check-in completed",
			Unlocked:    stats.TotalCheckIns >= 1,
		},
		{
			ID:          "five-checkins",
			Title:       "High Five",
			Description: "5 check-ins total",
			Unlocked:    stats.TotalCheckIns >= 5,
		},
		{
			ID:          "three-week-streak",
			Title:       "Steady Streak",
			Description: "3 weeks in a row",
			Unlocked:    stats.CurrentStreak >= 3,
		},
	}
}
