package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/motorbid/auction-api/internal/auction"
	"github.com/motorbid/auction-api/internal/auth"
	"github.com/motorbid/auction-api/internal/bidding"
	"github.com/motorbid/auction-api/internal/config"
	"github.com/motorbid/auction-api/internal/database"
	"github.com/motorbid/auction-api/internal/deposit"
	"github.com/motorbid/auction-api/internal/payment"
	"github.com/motorbid/auction-api/internal/settlement"
	"github.com/motorbid/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction API server with graceful shutdown
// support. It sets up the database, the payment gateway client, all domain
// services, the settlement sweep, and the API routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	gateway := payment.NewClient(
		cfg.GatewayURL,
		cfg.GatewayAPIKey,
		cfg.GatewayWebhookSecret,
		cfg.GatewayTimeout,
	)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if !cfg.IsProduction() {
		authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
		for _, creds := range auth.DemoBidders {
			authService.RegisterAPICredentials(creds.APIKey, creds.APISecret)
		}
	}

	auctionService := auction.NewService(db)
	auctionHandlers := auction.NewGinHandlers(auctionService)

	depositService := deposit.NewService(db, gateway, cfg)
	depositHandlers := deposit.NewGinHandlers(depositService, gateway)

	biddingService := bidding.NewService(db, depositService)
	biddingHandlers := bidding.NewGinHandlers(biddingService)

	settlementService := settlement.NewService(db, biddingService, depositService)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Create and start the settlement sweep
	sweep := settlement.NewProcessor(settlementService, cfg.SweepInterval)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweep.Start(sweepCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, authHandlers, auctionHandlers, biddingHandlers, depositHandlers, settlementHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop the sweep before the HTTP server so no settlement starts mid-shutdown
	sweepCancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Auction routes: Public browsing, JWT-protected selling and bidding
// - Webhook route: Gateway notifications, authenticated by payload signature
// - Internal routes: Protected by the shared sweep secret
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	depositHandlers *deposit.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	jwtSecret := []byte(cfg.JWTSecret)

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Auction routes
		auctions := v1.Group("/auctions")
		{
			auctions.GET("", auctionHandlers.ListAuctionsHandler())
			auctions.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctions.GET("/:auction_id/bids", biddingHandlers.BidHistoryHandler())

			authed := auctions.Group("")
			authed.Use(middleware.JWTAuth(jwtSecret))
			{
				authed.POST("", auctionHandlers.CreateAuctionHandler())
				authed.POST("/:auction_id/bids", biddingHandlers.PlaceBidHandler())
				authed.GET("/:auction_id/deposit", depositHandlers.CheckDepositStatusHandler())
				authed.POST("/:auction_id/deposit", depositHandlers.CreateDepositHandler())
			}
		}

		// Gateway webhook, authenticated by HMAC signature on the payload
		v1.POST("/webhooks/payment", depositHandlers.PaymentWebhookHandler())

		// Internal routes for the sweep and operators
		internal := v1.Group("/internal")
		internal.Use(middleware.SweepAuth(cfg.SweepSecret))
		{
			internal.POST("/auctions/:auction_id/approve", auctionHandlers.ApproveAuctionHandler())
			internal.POST("/settlement/:auction_id", settlementHandlers.EndAuctionHandler())
		}
	}
}
