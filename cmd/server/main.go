package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civitax/engine/internal/config"
	"github.com/civitax/engine/internal/database"
	"github.com/civitax/engine/internal/handlers"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/middleware"
	"github.com/civitax/engine/internal/repository"
	"github.com/civitax/engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Monetary values render as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting Civitax calculation engine", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Metrics registry with process and Go runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewHTTPMetrics(registry)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.Metrics(httpMetrics))

	// Register health check and metrics routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Initialize repository and service layers
	rateRepo := repository.NewRateRepository(db)
	penaltyRepo := repository.NewPenaltyRepository(db)
	abatementRepo := repository.NewAbatementRepository(db)
	nolRepo := repository.NewNOLRepository(db)

	rateService := services.NewRateService(rateRepo, log)
	interestService := services.NewInterestService(rateService, log)
	penaltyService := services.NewPenaltyService(penaltyRepo, rateService, cfg.Tax, log)
	estimatedService := services.NewEstimatedTaxService(rateService, cfg.Tax, log)
	abatementService := services.NewAbatementService(abatementRepo, penaltyRepo, cfg.Tax, log)
	nolService := services.NewNOLService(nolRepo, cfg.Tax, log)
	apportionmentService := services.NewApportionmentService(log)

	// Initialize handlers
	interestHandler := handlers.NewInterestHandler(interestService)
	penaltyHandler := handlers.NewPenaltyHandler(penaltyService)
	estimatedHandler := handlers.NewEstimatedTaxHandler(estimatedService)
	abatementHandler := handlers.NewAbatementHandler(abatementService)
	nolHandler := handlers.NewNOLHandler(nolService)
	apportionmentHandler := handlers.NewApportionmentHandler(apportionmentService)

	// Register API routes
	api := router.Group("/api")
	{
		penalties := api.Group("/penalties")
		{
			penalties.POST("/calculate", penaltyHandler.Calculate)
			penalties.GET("/return/:returnId", penaltyHandler.ListByReturn)
		}

		interest := api.Group("/interest")
		{
			interest.POST("/calculate", interestHandler.Calculate)
		}

		estimated := api.Group("/estimated-tax")
		{
			estimated.POST("/evaluate-safe-harbor", estimatedHandler.EvaluateSafeHarbor)
			estimated.POST("/calculate-penalty", estimatedHandler.CalculatePenalty)
		}

		abatements := api.Group("/abatements")
		{
			abatements.POST("", abatementHandler.Submit)
			abatements.GET("/:id", abatementHandler.Get)
			abatements.PATCH("/:id/review", abatementHandler.Review)
			abatements.PATCH("/:id/withdraw", abatementHandler.Withdraw)
		}

		nol := api.Group("/nol")
		{
			nol.GET("/schedule/:businessId/vintages/:taxYear", nolHandler.Vintages)
			nol.GET("/alerts/:businessId", nolHandler.Alerts)
			nol.POST("/:businessId/vintages", nolHandler.AddVintage)
			nol.POST("/:businessId/apply-deduction", nolHandler.ApplyDeduction)
			nol.POST("/:businessId/vintages/:vintageId/carryback", nolHandler.ElectCarryback)
		}

		apportionment := api.Group("/apportionment")
		{
			apportionment.POST("/calculate", apportionmentHandler.Calculate)
			apportionment.POST("/compare", apportionmentHandler.Compare)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
