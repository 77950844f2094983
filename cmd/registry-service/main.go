package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/catalog"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/consent"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/didauth"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/payment"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/registry"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/config"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/monitoring"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting data registry service")

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CreateSchema(ctx); err != nil {
		log.WithError(err).Fatal("Failed to create database schema")
	}

	contentStore, err := storage.NewLevelDBStore(cfg.Storage.Path, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open content store")
	}
	defer contentStore.Close()

	metrics := monitoring.NewMetricsCollector("registry-service")
	health := monitoring.NewHealthManager("registry-service", "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
	health.RegisterChecker("content_store", monitoring.NewContentStoreHealthChecker(contentStore))

	// Domain wiring, leaf-first
	authority := didauth.New(didauth.NewRepository(db, log), log)
	if cfg.Registry.AdminDID != "" {
		if err := authority.Bootstrap(ctx, cfg.Registry.AdminDID, cfg.Registry.AdminAddress); err != nil {
			log.WithError(err).Fatal("Failed to bootstrap admin DID")
		}
	}

	consents := consent.New(consent.NewRepository(db, log), authority, log)
	records := catalog.New(catalog.NewRepository(db, log), consents, authority, authority, log)

	unitPrice, err := cfg.Registry.UnitPriceAmount()
	if err != nil {
		log.WithError(err).Fatal("Invalid unit price")
	}
	minimumWithdraw, err := cfg.Registry.MinimumWithdraw()
	if err != nil {
		log.WithError(err).Fatal("Invalid minimum withdrawal amount")
	}

	// In-process token bridge; swap for a chain-backed bridge when one
	// is deployed alongside the service.
	tokens := payment.NewMemoryToken(cfg.Registry.EscrowAccount)

	payments := payment.New(payment.NewPostgresStore(db), tokens, authority, consents, cfg.Registry.EscrowAccount, payment.Params{
		UnitPrice:       unitPrice,
		ServiceFeeBps:   cfg.Registry.ServiceFeeBps,
		MinimumWithdraw: minimumWithdraw,
	}, log)

	coordinator := registry.NewCoordinator(authority, consents, records, payments, registry.NewPostgresGrantStore(db), log, metrics)
	handlers := registry.NewHandlers(coordinator, authority, authority, consents, records, payments, contentStore, log)

	service := registry.NewService(&registry.ServiceConfig{
		Port:         strconv.Itoa(cfg.Server.Port),
		JWTSecret:    cfg.JWT.SecretKey,
		JWTIssuer:    cfg.JWT.Issuer,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		RateLimit:    cfg.Server.RateLimit,
		RatePeriod:   time.Minute,
	}, handlers, health, metrics, log)

	go func() {
		if err := service.Start(); err != nil {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shut down gracefully")
	}
	log.Info("Data registry service stopped")
}
