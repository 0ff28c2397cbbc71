package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doucovani/backend/docs"
	"github.com/doucovani/backend/internal/audit"
	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/database"
	"github.com/doucovani/backend/internal/handlers"
	mW "github.com/doucovani/backend/internal/middleware"
	"github.com/doucovani/backend/internal/repository"
	"github.com/doucovani/backend/internal/services"
	"github.com/doucovani/backend/pkg/fioclient"
	"github.com/doucovani/backend/pkg/rabbitmq"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Tutoring Marketplace API
// @version 1.0
// @description Tutor credit ledger, demand allocation and bank statement sync
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey AdminKey
// @in header
// @name X-Admin-Key

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Tutoring Marketplace API"
	docs.SwaggerInfo.Description = "Tutor credit ledger, demand allocation and bank statement sync"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	ctx := context.Background()

	// Initialize services
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
	demandService := services.NewDemandService(store, ledgerService, notificationService, syncService, cfg)
	authService := services.NewAuthService(store, redisClient)
	tutorService := services.NewTutorService(store)
	phoneService := services.NewPhoneVerificationService(redisClient, store, notificationService, cfg)
	topupService := services.NewTopupService(store, cfg)

	tutorHandler := handlers.NewTutorHandler(authService, tutorService, ledgerService, phoneService)
	demandHandler := handlers.NewDemandHandler(demandService)
	topupHandler := handlers.NewTopupHandler(topupService)
	adminHandler := handlers.NewAdminHandler(ledgerService, tutorService, demandService, syncService)

	if cfg.AdminAPIKey == "" {
		log.Println("Warning: ADMIN_API_KEY is not set, admin routes are disabled")
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/tutors/register", tutorHandler.Register)
		r.Post("/tutors/login", tutorHandler.Login)
		r.Get("/catalog/subjects", tutorHandler.Subjects)
		r.Post("/demands", demandHandler.Create)
		r.Get("/demands/by-slug/{slug}", demandHandler.GetBySlug)
		r.Put("/demands/by-slug/{slug}", demandHandler.UpdateBySlug)

		// Tutor endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(authService))

			r.Get("/demands", demandHandler.List)
			r.Get("/demands/{id}", demandHandler.Get)
			r.Post("/demands/{id}/take", demandHandler.Take)

			r.Get("/me", tutorHandler.Me)
			r.Post("/me/logout", tutorHandler.Logout)
			r.Get("/me/demands", demandHandler.Taken)
			r.Get("/me/ledger", tutorHandler.Ledger)
			r.Get("/me/topup", topupHandler.Instructions)
			r.Put("/me/profile", tutorHandler.UpdateProfile)
			r.Put("/me/notifications", tutorHandler.UpdateNotifications)
			r.Post("/me/phone/code", tutorHandler.RequestPhoneCode)
			r.Post("/me/phone/verify", tutorHandler.VerifyPhone)
		})

		// Back office
		r.Route("/admin", func(r chi.Router) {
			r.Use(mW.AdminKey(cfg.AdminAPIKey))

			r.Post("/tutors/{id}/returns", adminHandler.Return)
			r.Get("/tutors/{id}/ledger/verify", adminHandler.VerifyLedger)
			r.Put("/tutors/{id}/active", adminHandler.SetActive)
			r.Put("/demands/{id}/status", adminHandler.SetDemandStatus)
			r.Put("/demands/{id}/discount", adminHandler.SetDiscount)
			r.Post("/bank/sync", adminHandler.SyncBank)
			r.Post("/bank/reconcile", adminHandler.Reconcile)
			r.Post("/bank/last-id", adminHandler.SetLastID)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
