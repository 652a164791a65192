package main

import (
	"time"

	"github.com/halaqa/passport/config"
	"github.com/halaqa/passport/models"
	"github.com/halaqa/passport/routes"
	"github.com/halaqa/passport/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.Series{},
		&models.Session{},
		&models.Participant{},
		&models.AttendanceRecord{},
		&models.RewardClaim{},
		&models.NotificationLog{},
	)

	r := routes.SetupRouter(db)

	// Scheduled reminder fan-out (best-effort; receipts keep reruns idempotent)
	dispatcher := utils.NewReminderDispatcher(
		db,
		utils.NewExpoPushClient(cfg.PushURL),
		time.Duration(cfg.ReminderLookaheadHours)*time.Hour,
		cfg.PushBatchSize,
	)
	utils.StartReminderDispatcher(dispatcher, time.Duration(cfg.ReminderIntervalMinutes)*time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
