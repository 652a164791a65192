package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/halaqa/passport/models"
)

// seedWeeklySessions creates count completed weekly sessions ending before now.
func seedWeeklySessions(t *testing.T, db *gorm.DB, seriesID string, count int, now time.Time) []string {
	t.Helper()
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("%s-s%d", seriesID, i)
		start := now.AddDate(0, 0, -7*(count-i))
		require.NoError(t, db.Create(&models.Session{ID: id, SeriesID: seriesID, StartAt: &start}).Error)
		ids = append(ids, id)
	}
	return ids
}

func TestGetMyStats(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	engine, _, stats := newEngine(db)
	stats.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	require.NoError(t, db.Create(&models.Series{ID: "ramadan", Name: "Ramadan Nights", IsActive: true}).Error)
	sessions := seedWeeklySessions(t, db, "ramadan", 3, now)
	for i, id := range sessions {
		seedAttendance(t, db, id, "ramadan", "p1", now.AddDate(0, 0, -7*(3-i)))
	}

	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/stats", bearerFor(t, "p1"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	payload := body["data"].(map[string]any)["stats"].(map[string]any)
	assert.EqualValues(t, 3, payload["total_check_ins"])
	assert.EqualValues(t, 3, payload["current_streak"])
	assert.EqualValues(t, 3, payload["highest_streak"])
	assert.EqualValues(t, 1, payload["series_participated"])
	assert.Equal(t, "2026-03-03", payload["last_check_in_date"])
}

func TestGetMyStatsExplicitSeries(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	engine, _, stats := newEngine(db)
	stats.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	require.NoError(t, db.Create(&models.Series{ID: "ramadan", IsActive: true}).Error)
	require.NoError(t, db.Create(&models.Series{ID: "friday"}).Error)

	ramadan := seedWeeklySessions(t, db, "ramadan", 2, now)
	friday := seedWeeklySessions(t, db, "friday", 1, now)
	seedAttendance(t, db, ramadan[0], "ramadan", "p1", now.AddDate(0, 0, -14))
	seedAttendance(t, db, friday[0], "friday", "p1", now.AddDate(0, 0, -7))

	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/stats?seriesId=friday", bearerFor(t, "p1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	payload := body["data"].(map[string]any)["stats"].(map[string]any)
	assert.EqualValues(t, 2, payload["total_check_ins"])
	assert.EqualValues(t, 2, payload["series_participated"])
	assert.EqualValues(t, 1, payload["current_streak"])
}

func TestGetSeriesStreakEndpoint(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	engine, _, stats := newEngine(db)
	stats.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	sessions := seedWeeklySessions(t, db, "ramadan", 4, now)
	// attended the first two, missed the third, attended the last
	seedAttendance(t, db, sessions[0], "ramadan", "p1", now.AddDate(0, 0, -28))
	seedAttendance(t, db, sessions[1], "ramadan", "p1", now.AddDate(0, 0, -21))
	seedAttendance(t, db, sessions[3], "ramadan", "p1", now.AddDate(0, 0, -7))

	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/series/ramadan/streak", bearerFor(t, "p1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["current_streak"])
	assert.EqualValues(t, 2, data["highest_streak"])
	assert.EqualValues(t, 3, data["sessions_attended"])
}

func TestGetMyBadges(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	engine, _, stats := newEngine(db)
	stats.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	seedAttendance(t, db, "S1", "ramadan", "p1", now.AddDate(0, 0, -7))

	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/badges", bearerFor(t, "p1"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	badges := body["data"].(map[string]any)["badges"].([]any)
	require.Len(t, badges, 3)
	first := badges[0].(map[string]any)
	assert.Equal(t, "first-checkin", first["id"])
	assert.Equal(t, true, first["unlocked"])
	second := badges[1].(map[string]any)
	assert.Equal(t, false, second["unlocked"])
}

func TestMySeriesSummaries(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	engine, _, _ := newEngine(db)
	seedParticipant(t, db, "p1")
	require.NoError(t, db.Create(&models.Series{ID: "ramadan", Name: "Ramadan Nights", IsActive: true}).Error)

	seedAttendance(t, db, "S1", "ramadan", "p1", now.AddDate(0, 0, -14))
	seedAttendance(t, db, "S2", "ramadan", "p1", now.AddDate(0, 0, -7))

	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/series", bearerFor(t, "p1"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	series := body["data"].(map[string]any)["series"].([]any)
	require.Len(t, series, 1)
	row := series[0].(map[string]any)
	assert.Equal(t, "ramadan", row["id"])
	assert.Equal(t, "Ramadan Nights", row["name"])
	assert.EqualValues(t, 2, row["sessions_attended"])
	assert.Equal(t, true, row["is_active"])
	assert.NotNil(t, row["last_attended_at"])
}

func TestMySeriesEmpty(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)
	seedParticipant(t, db, "p1")

	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/series", bearerFor(t, "p1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	series := body["data"].(map[string]any)["series"].([]any)
	assert.Empty(t, series)
}
