package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/halaqa/passport/models"
	"github.com/halaqa/passport/utils"
)

// SeriesController serves series metadata and per-participant series
// summaries for the passport screen.
type SeriesController struct {
	db *gorm.DB
}

// NewSeriesController creates a new controller instance.
func NewSeriesController(db *gorm.DB) *SeriesController {
	return &SeriesController{db: db}
}

// SeriesSummary is one row of the passport's series list.
type SeriesSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SessionsAttended int    `json:"sessions_attended"`
	LastAttendedAt   *int64 `json:"last_attended_at"`
	IsActive         bool   `json:"is_active"`
	IsCompleted      bool   `json:"is_completed"`
}

// ListActiveSeries returns currently active series. Series metadata is
// administered externally and read-heavy, so the response is cached briefly.
func (s *SeriesController) ListActiveSeries(ctx *gin.Context) {
	const cacheKey = "cache:series:active"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var series []models.Series
	if err := s.db.Where("is_active = ?", true).Order("name ASC").Find(&series).Error; err != nil {
		utils.Sugar.Errorf("active series query failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to load series")
		return
	}

	body := utils.JSONResponse{Code: 0, Message: "success", Data: gin.H{"series": series}}
	ctx.JSON(http.StatusOK, body)
	utils.CacheSetJSON(cacheKey, body, 5*time.Minute)
}

// MySeries returns a summary per series the participant has attended.
func (s *SeriesController) MySeries(ctx *gin.Context) {
	pid, ok := getParticipantID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var records []models.AttendanceRecord
	if err := s.db.Where("participant_id = ?", pid).Find(&records).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to load attendance")
		return
	}

	counts := make(map[string]int)
	lastAttended := make(map[string]time.Time)
	ids := make([]string, 0)
	for _, r := range records {
		if r.SeriesID == "" {
			continue
		}
		if counts[r.SeriesID] == 0 {
			ids = append(ids, r.SeriesID)
		}
		counts[r.SeriesID]++
		if r.Timestamp.After(lastAttended[r.SeriesID]) {
			lastAttended[r.SeriesID] = r.Timestamp
		}
	}

	if len(ids) == 0 {
		utils.Success(ctx, gin.H{"series": []SeriesSummary{}})
		return
	}

	var seriesRows []models.Series
	if err := s.db.Where("id IN ?", ids).Find(&seriesRows).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to load series")
		return
	}
	byID := make(map[string]models.Series, len(seriesRows))
	for _, row := range seriesRows {
		byID[row.ID] = row
	}

	summaries := make([]SeriesSummary, 0, len(ids))
	for _, id := range ids {
		summary := SeriesSummary{
			ID:               id,
			Name:             id,
			SessionsAttended: counts[id],
		}
		if row, ok := byID[id]; ok {
			if row.Name != "" {
				summary.Name = row.Name
			}
			summary.IsActive = row.IsActive
			summary.IsCompleted = row.Completed
		}
		if t, ok := lastAttended[id]; ok && !t.IsZero() {
			millis := t.UnixMilli()
			summary.LastAttendedAt = &millis
		}
		summaries = append(summaries, summary)
	}

	utils.Success(ctx, gin.H{"series": summaries})
}
