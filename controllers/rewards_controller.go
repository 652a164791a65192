package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/halaqa/passport/models"
	"github.com/halaqa/passport/utils"
)

// RewardsController exposes per-series reward eligibility and the claim
// ledger. Claims are idempotent: the composite key on reward_claims makes a
// repeated claim a no-op.
type RewardsController struct {
	db *gorm.DB
}

// NewRewardsController creates a new controller instance.
func NewRewardsController(db *gorm.DB) *RewardsController {
	return &RewardsController{db: db}
}

// GetRewardStatus reports the next claimable threshold for a series.
func (r *RewardsController) GetRewardStatus(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	seriesID := ctx.Param("seriesId")

	series, attended, claimed, err := r.loadRewardInputs(pid, seriesID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "series not found")
			return
		}
		utils.Sugar.Errorf("reward status load failed participant=%s series=%s err=%v", pid, seriesID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load reward status")
		return
	}

	utils.Success(ctx, gin.H{
		"series_id":         seriesID,
		"sessions_attended": attended,
		"claimed":           claimed,
		"status":            models.GetRewardStatus(series.Rewards, claimed, attended),
	})
}

// ClaimReward appends one threshold to the participant's claim ledger for the
// series. Claiming an already-claimed threshold succeeds without duplicating.
func (r *RewardsController) ClaimReward(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	seriesID := ctx.Param("seriesId")

	var req struct {
		Threshold int `json:"threshold" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}

	series, attended, _, err := r.loadRewardInputs(pid, seriesID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "series not found")
			return
		}
		utils.Sugar.Errorf("reward claim load failed participant=%s series=%s err=%v", pid, seriesID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to load reward status")
		return
	}

	thresholds := models.NormalizeRewardThresholds(series.Rewards)
	valid := false
	for _, t := range thresholds {
		if t == req.Threshold {
			valid = true
			break
		}
	}
	if !valid {
		utils.Error(ctx, http.StatusBadRequest, 40051, "unknown reward threshold")
		return
	}
	if attended < req.Threshold {
		utils.Error(ctx, http.StatusBadRequest, 40052, "reward not earned yet")
		return
	}

	now := time.Now()
	err = r.db.Transaction(func(tx *gorm.DB) error {
		claim := models.RewardClaim{
			ParticipantID: pid,
			SeriesID:      seriesID,
			Threshold:     req.Threshold,
			ClaimedAt:     now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&claim).Error; err != nil {
			return err
		}
		return tx.Model(&models.Participant{}).
			Where("id = ?", pid).
			UpdateColumn("last_seen_at", now).Error
	})
	if err != nil {
		utils.Sugar.Errorf("reward claim write failed participant=%s series=%s threshold=%d err=%v",
			pid, seriesID, req.Threshold, err)
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to claim reward")
		return
	}

	_, attended, claimed, err := r.loadRewardInputs(pid, seriesID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to reload reward status")
		return
	}

	utils.Success(ctx, gin.H{
		"series_id":         seriesID,
		"sessions_attended": attended,
		"claimed":           claimed,
		"status":            models.GetRewardStatus(series.Rewards, claimed, attended),
	})
}

func (r *RewardsController) loadRewardInputs(pid, seriesID string) (*models.Series, int, []int, error) {
	var series models.Series
	if err := r.db.First(&series, "id = ?", seriesID).Error; err != nil {
		return nil, 0, nil, err
	}

	var attended int64
	if err := r.db.Model(&models.AttendanceRecord{}).
		Where("participant_id = ? AND series_id = ?", pid, seriesID).
		Count(&attended).Error; err != nil {
		return nil, 0, nil, err
	}

	var claims []models.RewardClaim
	if err := r.db.Where("participant_id = ? AND series_id = ?", pid, seriesID).
		Order("threshold ASC").
		Find(&claims).Error; err != nil {
		return nil, 0, nil, err
	}
	claimed := make([]int, 0, len(claims))
	for _, c := range claims {
		claimed = append(claimed, c.Threshold)
	}

	return &series, int(attended), claimed, nil
}
