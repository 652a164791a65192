package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halaqa/passport/models"
)

func TestRegisterIssuesToken(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	w, body := doJSON(t, engine, http.MethodPost, "/api/v1/participants", "", map[string]string{
		"nickname": "Amina",
		"ageBand":  "9-12",
		"timeZone": "Europe/London",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := body["data"].(map[string]any)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	participant := data["participant"].(map[string]any)
	id, _ := participant["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Amina", participant["nickname"])

	// token works against /me
	w, body = doJSON(t, engine, http.MethodGet, "/api/v1/me", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := body["data"].(map[string]any)["participant"].(map[string]any)
	assert.Equal(t, id, me["id"])
}

func TestRegisterIsIdempotentPerID(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	first := map[string]string{"participantId": "device-1", "nickname": "Amina"}
	w, _ := doJSON(t, engine, http.MethodPost, "/api/v1/participants", "", first)
	require.Equal(t, http.StatusOK, w.Code)

	// reinstall with a different nickname keeps the existing profile
	second := map[string]string{"participantId": "device-1", "nickname": "SomeoneElse"}
	w, body := doJSON(t, engine, http.MethodPost, "/api/v1/participants", "", second)
	require.Equal(t, http.StatusOK, w.Code)
	participant := body["data"].(map[string]any)["participant"].(map[string]any)
	assert.Equal(t, "Amina", participant["nickname"])

	var count int64
	require.NoError(t, db.Model(&models.Participant{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterSanitizesNickname(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	w, body := doJSON(t, engine, http.MethodPost, "/api/v1/participants", "", map[string]string{
		"nickname": "<b>Amina</b>",
	})
	require.Equal(t, http.StatusOK, w.Code)
	participant := body["data"].(map[string]any)["participant"].(map[string]any)
	assert.Equal(t, "Amina", participant["nickname"])

	w, _ = doJSON(t, engine, http.MethodPost, "/api/v1/participants", "", map[string]string{
		"nickname": "<script></script>",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)

	w, _ := doJSON(t, engine, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, engine, http.MethodGet, "/api/v1/me", "Bearer garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, engine, http.MethodGet, "/api/v1/me", "Basic abc", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfilePartialPatch(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)
	seedParticipant(t, db, "p1")
	auth := bearerFor(t, "p1")

	w, body := doJSON(t, engine, http.MethodPatch, "/api/v1/me/profile", auth, map[string]string{
		"avatarId": "plant-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	participant := body["data"].(map[string]any)["participant"].(map[string]any)
	assert.Equal(t, "plant-1", participant["avatar_id"])
	// untouched field survives
	assert.Equal(t, "p1", participant["nickname"])

	w, _ = doJSON(t, engine, http.MethodPatch, "/api/v1/me/profile", auth, map[string]string{
		"avatarId": "dragon-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, engine, http.MethodPatch, "/api/v1/me/profile", auth, map[string]string{
		"timeZone": "Mars/Olympus",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, engine, http.MethodPatch, "/api/v1/me/profile", auth, map[string]string{
		"timeZone": "America/New_York",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotificationToggle(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)
	seedParticipant(t, db, "p1")
	auth := bearerFor(t, "p1")

	w, _ := doJSON(t, engine, http.MethodPost, "/api/v1/me/notifications/enable", auth, map[string]string{
		"pushToken": "not-an-expo-token",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, engine, http.MethodPost, "/api/v1/me/notifications/enable", auth, map[string]string{
		"pushToken": "ExponentPushToken[aaaa]",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var p models.Participant
	require.NoError(t, db.First(&p, "id = ?", "p1").Error)
	assert.True(t, p.NotificationsEnabled)
	assert.Equal(t, "ExponentPushToken[aaaa]", p.ExpoPushToken)

	w, _ = doJSON(t, engine, http.MethodPost, "/api/v1/me/notifications/disable", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&p, "id = ?", "p1").Error)
	assert.False(t, p.NotificationsEnabled)
	assert.Empty(t, p.ExpoPushToken)
}

func TestSubscribeUnionsSeries(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db)
	seedParticipant(t, db, "p1")
	require.NoError(t, db.Create(&models.Series{ID: "ramadan", Name: "Ramadan Nights"}).Error)
	auth := bearerFor(t, "p1")

	w, _ := doJSON(t, engine, http.MethodPost, "/api/v1/me/series/ramadan/subscribe", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// duplicate subscribe stays a no-op
	w, _ = doJSON(t, engine, http.MethodPost, "/api/v1/me/series/ramadan/subscribe", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p models.Participant
	require.NoError(t, db.First(&p, "id = ?", "p1").Error)
	assert.Equal(t, []string{"ramadan"}, p.SubscribedSeriesIDs)

	w, _ = doJSON(t, engine, http.MethodPost, "/api/v1/me/series/unknown/subscribe", auth, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
