package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	webAdapter "ops-backend/internal/adapters/web"
	"ops-backend/internal/app"
	"ops-backend/internal/core"
	"ops-backend/internal/db"
	"ops-backend/internal/logger"
)

func main() {
	_ = godotenv.Load()

	if err := logger.Setup(logger.FromEnv()); err != nil {
		panic("logger setup: " + err.Error())
	}
	log := logger.WithComponent("server")

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	ledger := core.NewLedger(pool)
	invoices := core.NewInvoiceService(pool, ledger)
	payments := core.NewPaymentService(pool, ledger)
	recon := core.NewReconService(pool)
	parties := core.NewPartyService(pool)
	reporting := core.NewReportingService(pool)

	svc := app.NewAppService(ledger, invoices, payments, recon, parties, reporting)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	jwtSecret := os.Getenv("JWT_SECRET")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
