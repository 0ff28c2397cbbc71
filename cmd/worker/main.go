// Command worker runs the scheduled jobs: bank statement sync, reconciliation
// of unmatched payments, the daily digest and pay-later reminders.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doucovani/backend/internal/audit"
	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/database"
	"github.com/doucovani/backend/internal/repository"
	"github.com/doucovani/backend/internal/services"
	"github.com/doucovani/backend/internal/worker"
	"github.com/doucovani/backend/pkg/fioclient"
	"github.com/doucovani/backend/pkg/rabbitmq"
	"github.com/spf13/viper"
)

const jobTimeout = 5 * time.Minute

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	db := database.InitDatabase(ctx)
	defer db.Close()

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := rabbitmq.NewPublisher(cfg.RabbitMQURL)
	defer publisher.Close()

	store := repository.NewPostgresStore(db)
	bank := fioclient.NewClient(cfg.Bank.APIURL, cfg.Bank.Token, cfg.Bank.RequestTimeout)

	ledgerService := services.NewLedgerService(store, audit.NewLogger())
	notificationService := services.NewNotificationService(store, publisher, cfg)
	syncService := services.NewSyncService(store, bank, ledgerService, notificationService, redisClient, cfg)

	jobs := worker.NewJobs(syncService, notificationService, jobTimeout)
	scheduler := worker.NewScheduler(jobs, cfg.Worker)
	if scheduler.Register() == 0 {
		log.Fatal("No jobs scheduled, check the WORKER_* schedules")
	}

	scheduler.Start()
	log.Println("[WORKER] Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[WORKER] Shutdown signal received, stopping scheduler")
	<-scheduler.Stop().Done()
	log.Println("[WORKER] Scheduler stopped")
}
