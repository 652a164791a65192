package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/halaqa/passport/config"
	"github.com/halaqa/passport/models"
	"github.com/halaqa/passport/utils"
)

// AvatarController serves avatar level progression and participant-initiated
// evolution.
type AvatarController struct {
	db *gorm.DB
}

// NewAvatarController creates a new controller instance.
func NewAvatarController(db *gorm.DB) *AvatarController {
	return &AvatarController{db: db}
}

func levelCurve() models.LevelCurve {
	cfg := config.Get()
	return models.LevelCurve{
		Thresholds: cfg.AvatarLevelThresholds,
		ExtraStep:  cfg.AvatarExtraLevelStep,
	}
}

// GetAvatar returns the participant's avatar, form level, level progress, and
// whether an evolution is available right now.
func (a *AvatarController) GetAvatar(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	participant, experience, err := a.loadWithExperience(pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "participant not found")
			return
		}
		utils.Sugar.Errorf("avatar load failed participant=%s err=%v", pid, err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to load avatar")
		return
	}

	avatar := models.AvatarByID(participant.AvatarID)
	formLevel := 0
	canEvolve := false
	if avatar != nil {
		formLevel = participant.FormLevelFor(avatar.ID)
		canEvolve = models.CanEvolve(participant, avatar, experience)
	}

	utils.Success(ctx, gin.H{
		"avatar":     avatar,
		"form_level": formLevel,
		"can_evolve": canEvolve,
		"progress":   levelCurve().Progress(experience),
		"catalog":    models.Avatars,
	})
}

// Evolve advances the participant's current avatar exactly one form and
// writes the experience watermark alongside it, so another evolution needs
// fresh check-ins.
func (a *AvatarController) Evolve(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		var participant models.Participant
		if err := tx.First(&participant, "id = ?", pid).Error; err != nil {
			return err
		}

		experience, err := a.effectiveExperience(tx, &participant)
		if err != nil {
			return err
		}

		avatar := models.AvatarByID(participant.AvatarID)
		if avatar == nil {
			return errNoAvatarSelected
		}
		if !models.CanEvolve(&participant, avatar, experience) {
			return errCannotEvolveYet
		}

		currentForm := participant.FormLevelFor(avatar.ID)
		nextForm := currentForm + 1
		if nextForm > avatar.Forms {
			return errCannotEvolveYet
		}

		nextLevels := make([]models.AvatarFormLevel, 0, len(participant.AvatarFormLevels)+1)
		replaced := false
		for _, entry := range participant.AvatarFormLevels {
			if entry.AvatarID == avatar.ID {
				entry.FormLevel = nextForm
				replaced = true
			}
			nextLevels = append(nextLevels, entry)
		}
		if !replaced {
			nextLevels = append(nextLevels, models.AvatarFormLevel{AvatarID: avatar.ID, FormLevel: nextForm})
		}

		now := time.Now()
		// Guard on the watermark so a doubled tap cannot skip a form.
		res := tx.Model(&models.Participant{}).
			Where("id = ? AND last_evolved_experience = ?", pid, participant.LastEvolvedExperience).
			Select("AvatarFormLevels", "LastEvolvedExperience", "LastSeenAt").
			Updates(models.Participant{
				AvatarFormLevels:      nextLevels,
				LastEvolvedExperience: experience,
				LastSeenAt:            &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCannotEvolveYet
		}
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.Error(ctx, http.StatusNotFound, 40410, "participant not found")
		case errors.Is(err, errNoAvatarSelected):
			utils.Error(ctx, http.StatusBadRequest, 40060, "no avatar selected")
		case errors.Is(err, errCannotEvolveYet):
			utils.Error(ctx, http.StatusBadRequest, 40061, "avatar cannot evolve yet")
		default:
			utils.Sugar.Errorf("avatar evolve failed participant=%s err=%v", pid, err)
			utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to evolve avatar")
		}
		return
	}

	a.GetAvatar(ctx)
}

var (
	errNoAvatarSelected = errors.New("no avatar selected")
	errCannotEvolveYet  = errors.New("avatar cannot evolve yet")
)

func (a *AvatarController) loadWithExperience(pid string) (*models.Participant, int, error) {
	var participant models.Participant
	if err := a.db.First(&participant, "id = ?", pid).Error; err != nil {
		return nil, 0, err
	}
	experience, err := a.effectiveExperience(a.db, &participant)
	if err != nil {
		return nil, 0, err
	}
	return &participant, experience, nil
}

// effectiveExperience prefers the explicit counter but falls back to the
// ledger count for profiles that predate the counter.
func (a *AvatarController) effectiveExperience(tx *gorm.DB, participant *models.Participant) (int, error) {
	if participant.Experience > 0 {
		return participant.Experience, nil
	}
	var total int64
	if err := tx.Model(&models.AttendanceRecord{}).
		Where("participant_id = ?", participant.ID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}
