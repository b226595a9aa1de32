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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/audit"
	"ms-booking/internal/auth"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/clock"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/payment"
	handlers "ms-booking/internal/payment/handler"
	"ms-booking/internal/payment/storage"
	"ms-booking/internal/settings"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Payment Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	paymentStore, err := storage.NewPostgreSQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Payment storage init failed: %v", err))
	}
	defer paymentStore.Close()

	clk := clock.System()
	auditService := audit.NewService(&audit.DB{Bun: bunDB}, clk, log)
	settingsStore := settings.NewStore(bunDB, cfg.Payments, log)
	dbLayer := &bookingdb.DB{Bun: bunDB}

	paymentService := payment.NewService(paymentStore, dbLayer, settingsStore, auditService, clk, log, cfg.Stripe)
	handler := handlers.NewPaymentHandler(paymentService, log)

	engine := gin.Default()

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// The Stripe webhook authenticates by signature, everything else by
	// a verified bearer token.
	handler.RegisterWebhook(engine)
	api := engine.Group("/api/v1")
	api.Use(auth.GinMiddleware(cfg.Auth.OIDCIssuer))
	handler.Routes(api)

	port := os.Getenv("PAYMENT_PORT")
	if port == "" {
		port = ":8085"
	}

	server := &http.Server{
		Addr:         port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Payment Service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Payment Service shutdown complete")
	}
}
