package utils

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/halaqa/passport/models"
)

// ReminderDispatcher selects sessions opening soon, fans reminders out to
// opted-in subscribers through the push provider, and writes notification-log
// receipts so the next run never re-notifies the same (session, recipient)
// pair. Receipts are written for every attempted message, not only delivered
// ones: idempotent suppression is preferred over guaranteed delivery.
type ReminderDispatcher struct {
	db        *gorm.DB
	sender    PushSender
	lookahead time.Duration
	batchSize int
}

// DispatchSummary reports what one run did; used for logging and tests.
type DispatchSummary struct {
	Sessions  int
	Queued    int
	Delivered int
	Failed    int
	Skipped   int
}

// NewReminderDispatcher wires a dispatcher against an explicit store and
// provider so tests can substitute doubles.
func NewReminderDispatcher(db *gorm.DB, sender PushSender, lookahead time.Duration, batchSize int) *ReminderDispatcher {
	if lookahead <= 0 {
		lookahead = 5 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReminderDispatcher{db: db, sender: sender, lookahead: lookahead, batchSize: batchSize}
}

type pendingReminder struct {
	message PushMessage
	receipt models.NotificationLog
}

// Run executes one dispatch pass anchored at the given instant.
func (d *ReminderDispatcher) Run(ctx context.Context, now time.Time) (DispatchSummary, error) {
	var summary DispatchSummary

	windowEnd := now.Add(d.lookahead)
	var sessions []models.Session
	if err := d.db.WithContext(ctx).
		Where("start_at >= ? AND start_at < ?", now, windowEnd).
		Order("start_at ASC").
		Find(&sessions).Error; err != nil {
		return summary, fmt.Errorf("query upcoming sessions: %w", err)
	}
	summary.Sessions = len(sessions)
	if len(sessions) == 0 {
		return summary, nil
	}

	var recipients []models.Participant
	if err := d.db.WithContext(ctx).
		Where("notifications_enabled = ?", true).
		Find(&recipients).Error; err != nil {
		return summary, fmt.Errorf("query opted-in participants: %w", err)
	}

	sessionIDs := make([]string, 0, len(sessions))
	for _, s := range sessions {
		sessionIDs = append(sessionIDs, s.ID)
	}
	var existing []models.NotificationLog
	if err := d.db.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Find(&existing).Error; err != nil {
		return summary, fmt.Errorf("query notification receipts: %w", err)
	}
	alreadySent := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		alreadySent[e.ID] = struct{}{}
	}

	// Run-local caches only; nothing here is promoted across runs.
	seriesNames := make(map[string]string)
	queuedThisRun := make(map[string]struct{})

	var pending []pendingReminder
	for _, session := range sessions {
		seriesName := d.seriesName(ctx, seriesNames, session.SeriesID)

		for i := range recipients {
			recipient := &recipients[i]
			if !recipient.SubscribedTo(session.SeriesID) {
				continue
			}
			if !IsValidExpoPushToken(recipient.ExpoPushToken) {
				summary.Skipped++
				continue
			}

			receiptID := models.NotificationLogID(session.ID, session.SeriesID, recipient.ExpoPushToken)
			if _, sent := alreadySent[receiptID]; sent {
				summary.Skipped++
				continue
			}
			// One reminder per (series, device) per run even when several
			// sessions of the series fall inside the window.
			runKey := session.SeriesID + "|" + models.HashPushToken(recipient.ExpoPushToken)
			if _, queued := queuedThisRun[runKey]; queued {
				summary.Skipped++
				continue
			}
			queuedThisRun[runKey] = struct{}{}

			pending = append(pending, pendingReminder{
				message: formatReminder(seriesName, &session, recipient),
				receipt: models.NotificationLog{
					ID:        receiptID,
					SessionID: session.ID,
					SeriesID:  session.SeriesID,
					TokenHash: models.HashPushToken(recipient.ExpoPushToken),
					SentAt:    now,
				},
			})
		}
	}
	summary.Queued = len(pending)
	if len(pending) == 0 {
		return summary, nil
	}

	messages := make([]PushMessage, len(pending))
	for i, p := range pending {
		messages[i] = p.message
	}

	for _, chunk := range ChunkPushMessages(messages, d.batchSize) {
		tickets, err := d.sender.Send(ctx, chunk)
		if err != nil {
			// Partial provider failure is expected; remaining chunks still go out.
			summary.Failed += len(chunk)
			if Sugar != nil {
				Sugar.Warnf("reminder push chunk failed size=%d err=%v", len(chunk), err)
			}
			continue
		}
		// The provider may return fewer tickets than messages; a message
		// without a ticket counts as delivered since no error was reported.
		delivered := len(chunk)
		for i, ticket := range tickets {
			if i >= len(chunk) {
				break
			}
			if ticket.Status != "" && ticket.Status != "ok" {
				delivered--
				summary.Failed++
				if Sugar != nil {
					Sugar.Warnf("reminder push ticket error status=%s msg=%s", ticket.Status, ticket.Message)
				}
			}
		}
		summary.Delivered += delivered
	}

	receipts := make([]models.NotificationLog, len(pending))
	for i, p := range pending {
		receipts[i] = p.receipt
	}
	if err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(receipts, 200).Error; err != nil {
		return summary, fmt.Errorf("write notification receipts: %w", err)
	}

	return summary, nil
}

func (d *ReminderDispatcher) seriesName(ctx context.Context, cache map[string]string, seriesID string) string {
	if name, ok := cache[seriesID]; ok {
		return name
	}
	name := "Halaqa"
	var series models.Series
	if err := d.db.WithContext(ctx).First(&series, "id = ?", seriesID).Error; err == nil && series.Name != "" {
		name = series.Name
	}
	cache[seriesID] = name
	return name
}

func formatReminder(seriesName string, session *models.Session, recipient *models.Participant) PushMessage {
	body := fmt.Sprintf("%s is starting soon. See you there!", seriesName)
	if session.StartAt != nil && !session.StartAt.IsZero() {
		loc, err := time.LoadLocation(recipient.TimeZone)
		if err != nil || recipient.TimeZone == "" {
			loc = time.UTC
		}
		body = fmt.Sprintf("%s starts at %s. See you there!", seriesName, session.StartAt.In(loc).Format("Mon 3:04 PM"))
	}
	return PushMessage{
		To:    recipient.ExpoPushToken,
		Title: seriesName,
		Body:  body,
		Data: map[string]string{
			"sessionId": session.ID,
			"seriesId":  session.SeriesID,
		},
	}
}

// StartReminderDispatcher launches a background goroutine that runs the
// dispatcher on a fixed interval. Best-effort: a failed run is logged and the
// next tick tries again; receipts keep reruns idempotent.
func StartReminderDispatcher(d *ReminderDispatcher, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			summary, err := d.Run(ctx, time.Now())
			cancel()
			if err != nil {
				if Sugar != nil {
					Sugar.Errorf("reminder dispatch run failed: %v", err)
				}
				continue
			}
			if Sugar != nil && summary.Queued > 0 {
				Sugar.Infof("reminder dispatch: sessions=%d queued=%d delivered=%d failed=%d skipped=%d",
					summary.Sessions, summary.Queued, summary.Delivered, summary.Failed, summary.Skipped)
			}
		}
	}()
}
