// File: cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-mechanic/internal/config"
	"github.com/iyunix/go-mechanic/internal/domain"
	"github.com/iyunix/go-mechanic/internal/handlers"
	"github.com/iyunix/go-mechanic/internal/ratelimit"
	diagnosisrepo "github.com/iyunix/go-mechanic/internal/repository/diagnosis"
	"github.com/iyunix/go-mechanic/internal/services"
	"github.com/iyunix/go-mechanic/internal/services/diagnosis"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rateLimitConfigs(cfg *config.Config) map[ratelimit.Tier]*ratelimit.Config {
	tier := func(t config.RateTier) *ratelimit.Config {
		return &ratelimit.Config{WindowSize: t.Window, MaxAttempts: t.MaxRequests, CleanupPeriod: time.Hour}
	}
	return map[ratelimit.Tier]*ratelimit.Config{
		ratelimit.TierGuest:         tier(cfg.GuestRate),
		ratelimit.TierAuthenticated: tier(cfg.AuthenticatedRate),
		ratelimit.TierPremium:       tier(cfg.PremiumRate),
	}
}

func main() {
	cfg := config.Load()
	logger := services.NewLogger("go_mechanic")

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}

	if err := db.AutoMigrate(&domain.DiagnosisRecord{}); err != nil {
		log.Fatalf("DB Migration Error: %v", err)
	}

	// --- Repositories ---
	diagnosisRepo := diagnosisrepo.NewDiagnosisRepository(db, logger)

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	// --- Services ---
	settings := cfg.DiagnosisSettings()
	factory, err := diagnosis.NewFactory(settings, diagnosis.DefaultRegistry(), logger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize provider factory: %v", err)
	}

	diagnosisService, err := services.NewDiagnosisService(factory, settings, diagnosisRepo, metrics, logger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Diagnosis Service: %v", err)
	}

	limiter := ratelimit.NewTieredLimiter(rateLimitConfigs(cfg))
	defer limiter.Close()

	// --- Router Setup ---
	r := handlers.NewRouter(handlers.RouterDeps{
		Diagnoses: handlers.NewDiagnosisHandler(diagnosisService, logger),
		Providers: handlers.NewProviderHandler(factory, logger),
		Limiter:   limiter,
		JWTSecret: []byte(cfg.JWTSecretKey),
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:    logger,
	})
	r.Use(corsMiddleware)

	// --- Server Configuration ---
	port := ":8080"
	if cfg.ServerPort != "" {
		port = ":" + cfg.ServerPort
	}
	srv := &http.Server{
		Addr:              port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server starting",
		"port", port,
		"environment", cfg.Environment,
		"default_provider", factory.DefaultProvider(),
		"fallback_order", cfg.FallbackOrder,
		"cache_enabled", cfg.CacheEnabled)

	// --- Start Server in Goroutine ---
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped")
}
