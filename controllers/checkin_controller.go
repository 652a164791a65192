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

// CheckInController exposes the check-in callable: the one write path into the
// attendance ledger. Every outcome, business rejection or infrastructure
// fault, is reported as {ok, message}; nothing below this boundary leaks an
// unhandled error to the scanner.
type CheckInController struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCheckInController creates a new controller instance.
func NewCheckInController(db *gorm.DB) *CheckInController {
	return &CheckInController{db: db, now: time.Now}
}

// CheckInResult is the uniform response shape of the check-in callable.
type CheckInResult struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message"`
}

type checkInRequest struct {
	ParticipantID string `json:"participantId"`
	SessionID     string `json:"sessionId"`
	SeriesID      string `json:"seriesId"`
	Token         string `json:"token"`
}

var (
	errAlreadyCheckedIn    = errors.New("already checked in")
	errParticipantNotFound = errors.New("participant not found")
)

// CheckIn handles a scanned QR check-in attempt.
func (c *CheckInController) CheckIn(ctx *gin.Context) {
	var req checkInRequest
	_ = ctx.ShouldBindJSON(&req)
	ctx.JSON(http.StatusOK, c.perform(req))
}

// ScanCheckIn accepts the raw QR payload (JSON or pipe form) and performs the
// same check-in; malformed payloads are rejected before any store access.
func (c *CheckInController) ScanCheckIn(ctx *gin.Context) {
	var req struct {
		ParticipantID string `json:"participantId"`
		Payload       string `json:"payload"`
	}
	_ = ctx.ShouldBindJSON(&req)

	payload := utils.ParseSessionPayload(req.Payload)
	if req.ParticipantID == "" || payload == nil {
		ctx.JSON(http.StatusOK, CheckInResult{Ok: false, Message: "Missing check-in details."})
		return
	}

	ctx.JSON(http.StatusOK, c.perform(checkInRequest{
		ParticipantID: req.ParticipantID,
		SessionID:     payload.SessionID,
		SeriesID:      payload.SeriesID,
		Token:         payload.Token,
	}))
}

func (c *CheckInController) perform(req checkInRequest) CheckInResult {
	if req.ParticipantID == "" || req.SessionID == "" || req.SeriesID == "" || req.Token == "" {
		return CheckInResult{Ok: false, Message: "Missing check-in details."}
	}

	var session models.Session
	if err := c.db.First(&session, "id = ?", req.SessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CheckInResult{Ok: false, Message: "Session not found."}
		}
		utils.Sugar.Errorf("check-in session lookup failed session=%s err=%v", req.SessionID, err)
		return CheckInResult{Ok: false, Message: "Check-in failed. Please try again."}
	}

	if err := session.ValidateCheckIn(req.SeriesID, req.Token, c.now()); err != nil {
		switch {
		case errors.Is(err, models.ErrSeriesMismatch):
			return CheckInResult{Ok: false, Message: "Session mismatch."}
		case errors.Is(err, models.ErrWindowUnset):
			return CheckInResult{Ok: false, Message: "Check-in window is not set."}
		case errors.Is(err, models.ErrNotOpenYet):
			return CheckInResult{Ok: false, Message: "Check-in is not open yet."}
		case errors.Is(err, models.ErrWindowClosed):
			return CheckInResult{Ok: false, Message: "Check-in is closed."}
		default:
			return CheckInResult{Ok: false, Message: "This QR code has expired."}
		}
	}

	if err := c.recordAttendance(req); err != nil {
		switch {
		case errors.Is(err, errAlreadyCheckedIn):
			return CheckInResult{Ok: false, Message: "Already checked in."}
		case errors.Is(err, errParticipantNotFound):
			return CheckInResult{Ok: false, Message: "Participant not found."}
		default:
			utils.Sugar.Errorf("check-in ledger write failed session=%s participant=%s err=%v",
				req.SessionID, req.ParticipantID, err)
			return CheckInResult{Ok: false, Message: "Check-in failed. Please try again."}
		}
	}

	return CheckInResult{Ok: true, Message: "Checked in!"}
}

// recordAttendance appends the ledger fact exactly once. The existence check,
// the insert, and the experience increment share one transaction; the
// deterministic primary key is the backstop when two scans race past the
// read.
func (c *CheckInController) recordAttendance(req checkInRequest) error {
	recordID := models.AttendanceID(req.SessionID, req.ParticipantID)
	reward := config.Get().ExperiencePerCheckIn
	now := c.now()

	return c.db.Transaction(func(tx *gorm.DB) error {
		var existing models.AttendanceRecord
		err := tx.Take(&existing, "id = ?", recordID).Error
		if err == nil {
			return errAlreadyCheckedIn
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		record := models.AttendanceRecord{
			ID:            recordID,
			ParticipantID: req.ParticipantID,
			SessionID:     req.SessionID,
			SeriesID:      req.SeriesID,
			Timestamp:     now,
		}
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadyCheckedIn
			}
			return err
		}

		res := tx.Model(&models.Participant{}).
			Where("id = ?", req.ParticipantID).
			UpdateColumns(map[string]interface{}{
				"experience":   gorm.Expr("experience + ?", reward),
				"last_seen_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errParticipantNotFound
		}
		return nil
	})
}
