package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	bookingapi "ms-booking/internal/booking/api"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/booking/qr"
	rediswrap "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/dispatch"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/reporting"
	reportingapi "ms-booking/internal/reporting/api"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL Setup ---
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open Postgres: %v", err))
	}
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	log.Info("DATABASE", "Postgres connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	// --- Migrations ---
	migrationOpts := migrations.DefaultOptions()
	if _, err := os.Stat(migrationOpts.MigrationsDir); err == nil {
		runner := migrations.NewRunner(bunDB, migrationOpts)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	} else {
		log.Warn("DATABASE", "Migrations directory missing, creating tables directly")
		if err := bookingdb.Migrate(bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Table creation failed: %v", err))
		}
	}
	if os.Getenv("SEED_DEV_DATA") == "true" {
		bookingdb.SeedDev(bunDB)
		log.Info("DATABASE", "Dev data seeded")
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	log.Info("REDIS", "Redis connection successful")

	// --- Kafka Setup ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.BookingEvents}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents)
		defer producer.Close()
	} else {
		log.Warn("KAFKA", "Kafka disabled or in mock mode, booking events will not be streamed")
	}

	// --- Initialize Dependencies ---
	dbLayer := &bookingdb.DB{Bun: bunDB}
	eventLock := rediswrap.NewRedis(redisClient)
	eventLock.TTL = cfg.Lock.TTL

	var publisher dispatch.Publisher
	if producer != nil {
		publisher = producer
	}
	dispatcher := dispatch.NewDispatcher(dbLayer, publisher, log)

	service := booking.NewService(dbLayer, eventLock, dispatcher, log)
	service.LockAttempts = cfg.Lock.MaxAttempts
	service.LockRetryDelay = cfg.Lock.RetryDelay

	passes := qr.NewPassGenerator(cfg.Auth.JWTSecret)

	bookingHandler := &bookingapi.Handler{
		BookingService: service,
		Notifications:  dbLayer,
		Passes:         passes,
	}
	reportingHandler := &reportingapi.Handler{
		ReportingService: reporting.NewService(bunDB),
	}

	// --- Booking event consumer (activity feed into the service log) ---
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents, cfg.Kafka.GroupID)
		defer consumer.Close()
		go consumer.Start(consumerCtx, func(event models.BookingEvent) {
			log.LogKafka(event.Action, cfg.Kafka.Topics.BookingEvents,
				fmt.Sprintf("booking %s status %s", event.BookingID, event.Status))
		})
	}

	// --- Setup Router ---
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer, cfg.Auth.JWTSecret))

		r.Post("/bookings", bookingHandler.CreateBooking)
		r.Get("/bookings/{bookingID}", bookingHandler.GetBooking)
		r.Post("/bookings/{bookingID}/cancel", bookingHandler.CancelBooking)
		r.Get("/bookings/{bookingID}/pass", bookingHandler.CheckInPass)
		r.Get("/my-bookings", bookingHandler.MyBookings)
		r.Get("/my-notifications", bookingHandler.MyNotifications)
		r.Post("/notifications/{notificationID}/read", bookingHandler.MarkNotificationRead)

		r.Get("/reports/events/{eventID}", reportingHandler.EventReport)
		r.Get("/reports/dashboard", reportingHandler.Dashboard)
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("🚀 Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received. Cleaning up...")

	stopConsumer()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("SERVER", "✅ Server exited gracefully")
}
