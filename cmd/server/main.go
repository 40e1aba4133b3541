package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamesfinder/backend/internal/app"
	"gamesfinder/backend/internal/auth"
	"gamesfinder/backend/internal/config"
	"gamesfinder/backend/internal/database"
	"gamesfinder/backend/internal/handler"
	"gamesfinder/backend/internal/hub"
	"gamesfinder/backend/internal/jobs"
	"gamesfinder/backend/internal/logging"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "gamesfinder/backend/docs"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           GamesFinder API
// @version         1.0
// @description     Game catalog and price aggregation across Steam and Instant Gaming.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig
	logger := logging.Setup(os.Stdout, cfg.LogLevel)

	// Connect to the database
	database.Connect(cfg.DatabaseURL)

	pipeline := app.NewPipeline(cfg, database.DB, logger)
	events := hub.NewHub()
	queue := jobs.NewQueue(cfg.CrawlWorkers, cfg.CrawlQueueSize, events, logger)
	crawls := handler.NewCrawlHandler(queue, events,
		handler.Observed(pipeline.Steam),
		handler.Observed(pipeline.InstantGaming),
		pipeline.Index,
		logger,
	)

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.RegisterUser)
			authRoutes.POST("/login", handler.LoginUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", handler.GetMe)
			userRoutes.GET("/me/wishlist", handler.GetWishlist)
		}

		// Game routes (public, wishlist flags when authenticated)
		gameRoutes := apiV1.Group("/games")
		gameRoutes.Use(auth.OptionalAuthMiddleware())
		{
			gameRoutes.GET("", handler.GetGames)
			gameRoutes.GET("/count", handler.CountGames) // Must be before /:id
			gameRoutes.GET("/unprocessed", handler.GetUnprocessedGames)
			gameRoutes.GET("/app/:appId", handler.GetGameByAppID)
			gameRoutes.POST("/missing", handler.FindMissingGames)
			gameRoutes.GET("/:id", handler.GetGameByID)
			gameRoutes.POST("/:id/wishlist", auth.AuthMiddleware(), handler.ToggleWishlist)
		}

		// Crawl routes (protected)
		crawlRoutes := apiV1.Group("/crawl")
		crawlRoutes.Use(auth.AuthMiddleware())
		{
			crawlRoutes.POST("/steam", crawls.CrawlSteam)
			crawlRoutes.POST("/instant-gaming", crawls.CrawlInstantGaming)
			crawlRoutes.POST("/instant-gaming/prices", crawls.CrawlInstantGamingPrices)
			crawlRoutes.GET("/jobs/:id", crawls.GetJob)
			crawlRoutes.GET("/jobs/:id/events", crawls.StreamJob)
		}

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminRoutes.POST("/crawl/instant-gaming/all", crawls.CrawlInstantGamingAll)
			adminRoutes.POST("/crawl/steam/all", crawls.CrawlSteamAll)

			applist := adminRoutes.Group("/applist")
			{
				applist.POST("", crawls.RefreshAppList)
				applist.GET("", crawls.GetAppListMetadata)
				applist.GET("/suggest", crawls.SuggestApps)
			}

			adminRoutes.DELETE("/games/:id", handler.DeleteGame)
		}
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		fmt.Printf("Server is running on %s\n", cfg.HTTPAddr)
		fmt.Printf("Swagger UI is available at http://localhost%s/swagger/index.html\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
	// Running crawls flush what they fetched before the workers exit.
	queue.Close()
}
