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

func seedRewardSeries(t *testing.T, db *gorm.DB, thresholds []int) {
	t.Helper()
	require.NoError(t, db.Create(&models.Series{ID: "ramadan", Name: "Ramadan Nights", IsActive: true, Rewards: thresholds}).Error)
}

func TestGetRewardStatusEndpoint(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	seedParticipant(t, db, "p1")
	seedRewardSeries(t, db, []int{3, 5})
	at := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		seedAttendance(t, db, fmt.Sprintf("S%d", i), "ramadan", "p1", at.AddDate(0, 0, 7*i))
	}

	auth := bearerFor(t, "p1")
	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/series/ramadan/rewards", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["sessions_attended"])
	status := data["status"].(map[string]any)
	assert.EqualValues(t, 3, status["target"])
	assert.Equal(t, false, status["can_claim"])
}

func TestGetRewardStatusUnknownSeries(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)
	seedParticipant(t, db, "p1")

	w, _ := doJSON(t, engine, http.MethodGet, "/api/v1/me/series/nope/rewards", bearerFor(t, "p1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClaimRewardIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	seedParticipant(t, db, "p1")
	seedRewardSeries(t, db, []int{3, 5})
	at := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedAttendance(t, db, fmt.Sprintf("S%d", i), "ramadan", "p1", at.AddDate(0, 0, 7*i))
	}

	auth := bearerFor(t, "p1")
	claim := map[string]int{"threshold": 3}

	w, body := doJSON(t, engine, http.MethodPost, "/api/v1/me/series/ramadan/rewards/claim", auth, claim)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{float64(3)}, data["claimed"])
	status := data["status"].(map[string]any)
	assert.EqualValues(t, 5, status["target"])

	// claiming the same threshold again changes nothing
	w, body = doJSON(t, engine, http.MethodPost, "/api/v1/me/series/ramadan/rewards/claim", auth, claim)
	require.Equal(t, http.StatusOK, w.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, []any{float64(3)}, data["claimed"])

	var claims int64
	require.NoError(t, db.Model(&models.RewardClaim{}).Count(&claims).Error)
	assert.EqualValues(t, 1, claims)
}

func TestClaimRewardNotEarned(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	seedParticipant(t, db, "p1")
	seedRewardSeries(t, db, []int{3, 5})
	seedAttendance(t, db, "S0", "ramadan", "p1", time.Now())

	auth := bearerFor(t, "p1")
	w, _ := doJSON(t, engine, http.MethodPost, "/api/v1/me/series/ramadan/rewards/claim", auth, map[string]int{"threshold": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimRewardUnknownThreshold(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	seedParticipant(t, db, "p1")
	seedRewardSeries(t, db, []int{3, 5})
	for i := 0; i < 4; i++ {
		seedAttendance(t, db, fmt.Sprintf("S%d", i), "ramadan", "p1", time.Now())
	}

	auth := bearerFor(t, "p1")
	w, _ := doJSON(t, engine, http.MethodPost, "/api/v1/me/series/ramadan/rewards/claim", auth, map[string]int{"threshold": 4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRewardStatusAbsentWhenSeriesHasNoThresholds(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	seedParticipant(t, db, "p1")
	require.NoError(t, db.Create(&models.Series{ID: "ramadan", Name: "Ramadan Nights"}).Error)

	w, body := doJSON(t, engine, http.MethodGet, "/api/v1/me/series/ramadan/rewards", bearerFor(t, "p1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Nil(t, data["status"])
}
