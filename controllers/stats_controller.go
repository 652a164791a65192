package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/halaqa/passport/models"
	"github.com/halaqa/passport/utils"
)

// StatsController derives passport statistics from the attendance ledger and
// session calendar. Everything here is recomputed per request; nothing is
// persisted.
type StatsController struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db, now: time.Now}
}

// GetMyStats returns totals, series participation, and the streak for the
// requested series (falling back to the active series when none is given).
func (s *StatsController) GetMyStats(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var records []models.AttendanceRecord
	if err := s.db.Where("participant_id = ?", pid).Find(&records).Error; err != nil {
		utils.Sugar.Errorf("attendance query failed participant=%s err=%v", pid, err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load attendance")
		return
	}

	loc := s.participantLocation(pid)
	total, lastDate := models.CalculateTotals(records, loc)

	stats := models.ParticipantStats{
		TotalCheckIns:      total,
		SeriesParticipated: models.CountSeriesParticipated(records),
		LastCheckInDate:    lastDate,
	}

	seriesID := ctx.Query("seriesId")
	if seriesID == "" {
		var active models.Series
		if err := s.db.Where("is_active = ?", true).First(&active).Error; err == nil {
			seriesID = active.ID
		}
	}
	if seriesID != "" {
		current, highest, err := s.seriesStreak(pid, seriesID, records)
		if err != nil {
			utils.Sugar.Errorf("streak query failed participant=%s series=%s err=%v", pid, seriesID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to compute streak")
			return
		}
		stats.CurrentStreak = current
		stats.HighestStreak = highest
	}

	utils.Success(ctx, gin.H{"stats": stats})
}

// GetSeriesStreak returns the streak walk for one series.
func (s *StatsController) GetSeriesStreak(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	seriesID := ctx.Param("seriesId")

	var records []models.AttendanceRecord
	if err := s.db.Where("participant_id = ? AND series_id = ?", pid, seriesID).Find(&records).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load attendance")
		return
	}

	current, highest, err := s.seriesStreak(pid, seriesID, records)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to compute streak")
		return
	}

	utils.Success(ctx, gin.H{
		"series_id":         seriesID,
		"current_streak":    current,
		"highest_streak":    highest,
		"sessions_attended": len(records),
	})
}

// GetMyBadges evaluates the badge set from current stats.
func (s *StatsController) GetMyBadges(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var records []models.AttendanceRecord
	if err := s.db.Where("participant_id = ?", pid).Find(&records).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load attendance")
		return
	}

	total, lastDate := models.CalculateTotals(records, s.participantLocation(pid))
	stats := models.ParticipantStats{
		TotalCheckIns:      total,
		SeriesParticipated: models.CountSeriesParticipated(records),
		LastCheckInDate:    lastDate,
	}
	var active models.Series
	if err := s.db.Where("is_active = ?", true).First(&active).Error; err == nil {
		if current, highest, err := s.seriesStreak(pid, active.ID, records); err == nil {
			stats.CurrentStreak = current
			stats.HighestStreak = highest
		}
	}

	utils.Success(ctx, gin.H{"badges": models.GetBadges(stats)})
}

func (s *StatsController) seriesStreak(pid, seriesID string, records []models.AttendanceRecord) (int, int, error) {
	var sessions []models.Session
	if err := s.db.Where("series_id = ?", seriesID).Find(&sessions).Error; err != nil {
		return 0, 0, err
	}

	seriesRecords := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if r.SeriesID == seriesID {
			seriesRecords = append(seriesRecords, r)
		}
	}

	current, highest := models.CalculateSeriesStreak(sessions, seriesRecords, s.now())
	return current, highest, nil
}

func (s *StatsController) participantLocation(pid string) *time.Location {
	var participant models.Participant
	if err := s.db.First(&participant, "id = ?", pid).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Sugar.Debugf("participant lookup failed id=%s err=%v", pid, err)
		}
		return time.UTC
	}
	if participant.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(participant.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
