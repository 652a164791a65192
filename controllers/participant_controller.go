package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/halaqa/passport/models"
	"github.com/halaqa/passport/utils"
)

// ParticipantController manages the server-side mirror of device profiles:
// registration, partial profile patches, notification opt-in, and series
// subscriptions.
type ParticipantController struct {
	db *gorm.DB
}

// NewParticipantController creates a new controller instance.
func NewParticipantController(db *gorm.DB) *ParticipantController {
	return &ParticipantController{db: db}
}

const deviceTokenTTL = 365 * 24 * time.Hour

// Register creates (or re-adopts) a participant profile and issues the device
// token used by all /me endpoints. Registration is idempotent per id so a
// reinstalled app can reclaim its profile.
func (p *ParticipantController) Register(ctx *gin.Context) {
	var req struct {
		ParticipantID string `json:"participantId"`
		Nickname      string `json:"nickname" binding:"required,min=1"`
		AgeBand       string `json:"ageBand"`
		TimeZone      string `json:"timeZone"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	nickname := utils.Sanitize(strings.TrimSpace(req.Nickname))
	if nickname == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "nickname cannot be empty")
		return
	}

	id := strings.TrimSpace(req.ParticipantID)
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	participant := models.Participant{
		ID:                    id,
		Nickname:              nickname,
		AgeBand:               req.AgeBand,
		TimeZone:              req.TimeZone,
		LastEvolvedExperience: -1,
		LastSeenAt:            &now,
	}
	if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&participant).Error; err != nil {
		utils.Sugar.Errorf("participant registration failed id=%s err=%v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to register participant")
		return
	}
	// An existing row wins over the request body; re-read so the response
	// reflects the durable profile.
	if err := p.db.First(&participant, "id = ?", id).Error; err != nil {
		utils.Sugar.Errorf("participant re-read failed id=%s err=%v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to register participant")
		return
	}

	token, err := utils.GenerateToken(id, deviceTokenTTL)
	if err != nil {
		utils.Sugar.Errorf("device token issue failed id=%s err=%v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to issue device token")
		return
	}

	utils.Success(ctx, gin.H{
		"participant": participant,
		"token":       token,
	})
}

// Me returns the authenticated participant's profile and refreshes last-seen.
func (p *ParticipantController) Me(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var participant models.Participant
	if err := p.db.First(&participant, "id = ?", pid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "participant not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load participant")
		return
	}

	now := time.Now()
	_ = p.db.Model(&participant).UpdateColumn("last_seen_at", now).Error

	utils.Success(ctx, gin.H{"participant": participant})
}

// UpdateProfile applies a partial patch: only fields present in the request
// are written, each as a field-level upsert.
func (p *ParticipantController) UpdateProfile(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Nickname *string `json:"nickname"`
		AgeBand  *string `json:"ageBand"`
		TimeZone *string `json:"timeZone"`
		AvatarID *string `json:"avatarId"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	updates := map[string]interface{}{"last_seen_at": time.Now()}
	if req.Nickname != nil {
		nickname := utils.Sanitize(strings.TrimSpace(*req.Nickname))
		if nickname == "" {
			utils.Error(ctx, http.StatusBadRequest, 40023, "nickname cannot be empty")
			return
		}
		updates["nickname"] = nickname
	}
	if req.AgeBand != nil {
		updates["age_band"] = *req.AgeBand
	}
	if req.TimeZone != nil {
		if *req.TimeZone != "" {
			if _, err := time.LoadLocation(*req.TimeZone); err != nil {
				utils.Error(ctx, http.StatusBadRequest, 40024, "unknown time zone")
				return
			}
		}
		updates["time_zone"] = *req.TimeZone
	}
	if req.AvatarID != nil {
		if models.AvatarByID(*req.AvatarID) == nil {
			utils.Error(ctx, http.StatusBadRequest, 40025, "unknown avatar")
			return
		}
		updates["avatar_id"] = *req.AvatarID
	}

	res := p.db.Model(&models.Participant{}).Where("id = ?", pid).Updates(updates)
	if res.Error != nil {
		utils.Sugar.Errorf("profile update failed id=%s err=%v", pid, res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40410, "participant not found")
		return
	}

	var participant models.Participant
	if err := p.db.First(&participant, "id = ?", pid).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}
	utils.Success(ctx, gin.H{"participant": participant})
}

// EnableNotifications stores the device push token and opts the participant
// into reminders.
func (p *ParticipantController) EnableNotifications(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		PushToken string `json:"pushToken" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, "invalid request payload")
		return
	}
	if !utils.IsValidExpoPushToken(req.PushToken) {
		utils.Error(ctx, http.StatusBadRequest, 40027, "invalid push token")
		return
	}

	res := p.db.Model(&models.Participant{}).Where("id = ?", pid).
		UpdateColumns(map[string]interface{}{
			"expo_push_token":       req.PushToken,
			"notifications_enabled": true,
			"last_seen_at":          time.Now(),
		})
	if res.Error != nil {
		utils.Sugar.Errorf("enable notifications failed id=%s err=%v", pid, res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to update notifications")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40410, "participant not found")
		return
	}
	utils.Success(ctx, gin.H{"notifications_enabled": true})
}

// DisableNotifications drops the push token and opts out.
func (p *ParticipantController) DisableNotifications(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res := p.db.Model(&models.Participant{}).Where("id = ?", pid).
		UpdateColumns(map[string]interface{}{
			"expo_push_token":       "",
			"notifications_enabled": false,
			"last_seen_at":          time.Now(),
		})
	if res.Error != nil {
		utils.Sugar.Errorf("disable notifications failed id=%s err=%v", pid, res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to update notifications")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40410, "participant not found")
		return
	}
	utils.Success(ctx, gin.H{"notifications_enabled": false})
}

// Subscribe unions the series into the participant's subscription list. The
// union runs inside a transaction so a duplicate subscribe stays a no-op.
func (p *ParticipantController) Subscribe(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	seriesID := ctx.Param("seriesId")

	var series models.Series
	if err := p.db.First(&series, "id = ?", seriesID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "series not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to load series")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var participant models.Participant
		if err := tx.First(&participant, "id = ?", pid).Error; err != nil {
			return err
		}
		if participant.SubscribedTo(seriesID) {
			return nil
		}
		now := time.Now()
		return tx.Model(&participant).
			Select("SubscribedSeriesIDs", "LastSeenAt").
			Updates(models.Participant{
				SubscribedSeriesIDs: append(participant.SubscribedSeriesIDs, seriesID),
				LastSeenAt:          &now,
			}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "participant not found")
			return
		}
		utils.Sugar.Errorf("series subscribe failed id=%s series=%s err=%v", pid, seriesID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to subscribe")
		return
	}

	utils.Success(ctx, gin.H{"subscribed": true, "series_id": seriesID})
}
