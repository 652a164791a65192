package controllers

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halaqa/passport/models"
)

func checkInBody(participant, session, series, token string) map[string]string {
	return map[string]string{
		"participantId": participant,
		"sessionId":     session,
		"seriesId":      series,
		"token":         token,
	}
}

func TestCheckInScenario(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

	engine, checkIn, _ := newEngine(db)
	checkIn.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	seedOpenSession(t, db, "S1", "ramadan", "tok-1", now)

	w, body := doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", checkInBody("p1", "S1", "ramadan", "tok-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "Checked in!", body["message"])

	// second scan of the same QR
	w, body = doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", checkInBody("p1", "S1", "ramadan", "tok-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Already checked in.", body["message"])

	// stale token after a rotation
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", "S1").
		Update("rotating_token", "tok-2").Error)
	_, body = doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", checkInBody("p2", "S1", "ramadan", "tok-1"))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "This QR code has expired.", body["message"])
}

func TestCheckInAtMostOnce(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

	engine, checkIn, _ := newEngine(db)
	checkIn.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	seedOpenSession(t, db, "S1", "ramadan", "tok-1", now)

	okCount := 0
	for i := 0; i < 5; i++ {
		_, body := doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", checkInBody("p1", "S1", "ramadan", "tok-1"))
		if body["ok"] == true {
			okCount++
		}
	}
	assert.Equal(t, 1, okCount)

	var records int64
	require.NoError(t, db.Model(&models.AttendanceRecord{}).Count(&records).Error)
	assert.EqualValues(t, 1, records)

	var p models.Participant
	require.NoError(t, db.First(&p, "id = ?", "p1").Error)
	assert.Equal(t, 1, p.Experience)
	require.NotNil(t, p.LastSeenAt)
}

func TestCheckInConcurrentScans(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

	// sqlite takes one writer at a time; cap the pool so racing transactions
	// queue instead of erroring out of the race.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	engine, checkIn, _ := newEngine(db)
	checkIn.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	seedOpenSession(t, db, "S1", "ramadan", "tok-1", now)

	const scans = 8
	results := make(chan string, scans)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, body := doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", checkInBody("p1", "S1", "ramadan", "tok-1"))
			msg, _ := body["message"].(string)
			results <- msg
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	okCount := 0
	for msg := range results {
		switch msg {
		case "Checked in!":
			okCount++
		case "Already checked in.":
		default:
			t.Fatalf("unexpected check-in message %q", msg)
		}
	}
	assert.Equal(t, 1, okCount)

	var records int64
	require.NoError(t, db.Model(&models.AttendanceRecord{}).Count(&records).Error)
	assert.EqualValues(t, 1, records)

	var p models.Participant
	require.NoError(t, db.First(&p, "id = ?", "p1").Error)
	assert.Equal(t, 1, p.Experience)
}

func TestCheckInRejections(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

	engine, checkIn, _ := newEngine(db)
	checkIn.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	seedOpenSession(t, db, "S1", "ramadan", "tok-1", now)

	openLater := now.Add(time.Hour)
	closeLater := now.Add(2 * time.Hour)
	require.NoError(t, db.Create(&models.Session{
		ID: "S2", SeriesID: "ramadan", CheckinOpenAt: &openLater, CheckinCloseAt: &closeLater, Token: "tok-2",
	}).Error)
	require.NoError(t, db.Create(&models.Session{ID: "S3", SeriesID: "ramadan", Token: "tok-3"}).Error)

	cases := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{"missing fields", checkInBody("p1", "", "ramadan", "tok-1"), "Missing check-in details."},
		{"unknown session", checkInBody("p1", "nope", "ramadan", "tok-1"), "Session not found."},
		{"series mismatch", checkInBody("p1", "S1", "friday", "tok-1"), "Session mismatch."},
		{"window unset", checkInBody("p1", "S3", "ramadan", "tok-3"), "Check-in window is not set."},
		{"not open yet", checkInBody("p1", "S2", "ramadan", "tok-2"), "Check-in is not open yet."},
		{"wrong token", checkInBody("p1", "S1", "ramadan", "wrong"), "This QR code has expired."},
		{"unknown participant", checkInBody("ghost", "S1", "ramadan", "tok-1"), "Participant not found."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", tc.body)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tc.message, body["message"])
		})
	}
}

func TestCheckInClosedWindow(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

	engine, checkIn, _ := newEngine(db)
	seedParticipant(t, db, "p1")
	seedOpenSession(t, db, "S1", "ramadan", "tok-1", now)

	checkIn.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, body := doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", checkInBody("p1", "S1", "ramadan", "tok-1"))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Check-in is closed.", body["message"])

	// a rejection writes nothing
	var records int64
	require.NoError(t, db.Model(&models.AttendanceRecord{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestCheckInFailureLeavesExperienceUntouched(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

	engine, checkIn, _ := newEngine(db)
	checkIn.now = func() time.Time { return now }
	seedOpenSession(t, db, "S1", "ramadan", "tok-1", now)

	// unknown participant: the transaction rolls the ledger insert back
	_, body := doJSON(t, engine, http.MethodPost, "/api/v1/checkin", "", checkInBody("ghost", "S1", "ramadan", "tok-1"))
	assert.Equal(t, "Participant not found.", body["message"])

	var records int64
	require.NoError(t, db.Model(&models.AttendanceRecord{}).Count(&records).Error)
	assert.Zero(t, records)
}

func TestScanCheckInPayloadForms(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

	engine, checkIn, _ := newEngine(db)
	checkIn.now = func() time.Time { return now }

	seedParticipant(t, db, "p1")
	seedParticipant(t, db, "p2")
	seedOpenSession(t, db, "S1", "ramadan", "tok-1", now)

	_, body := doJSON(t, engine, http.MethodPost, "/api/v1/checkin/scan", "", map[string]string{
		"participantId": "p1",
		"payload":       "ramadan|S1|tok-1",
	})
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "Checked in!", body["message"])

	_, body = doJSON(t, engine, http.MethodPost, "/api/v1/checkin/scan", "", map[string]string{
		"participantId": "p2",
		"payload":       `{"seriesId":"ramadan","sessionId":"S1","token":"tok-1"}`,
	})
	assert.Equal(t, true, body["ok"])

	_, body = doJSON(t, engine, http.MethodPost, "/api/v1/checkin/scan", "", map[string]string{
		"participantId": "p1",
		"payload":       "garbage",
	})
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Missing check-in details.", body["message"])
}
