package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/fixitnow/fixitnow-api/api/swagger"
	"github.com/fixitnow/fixitnow-api/internal/handler"
	"github.com/fixitnow/fixitnow-api/internal/middleware"
	"github.com/fixitnow/fixitnow-api/internal/models"
	"github.com/fixitnow/fixitnow-api/internal/repository"
	"github.com/fixitnow/fixitnow-api/internal/service"
	"github.com/fixitnow/fixitnow-api/pkg/cache"
	"github.com/fixitnow/fixitnow-api/pkg/config"
	"github.com/fixitnow/fixitnow-api/pkg/database"
	"github.com/fixitnow/fixitnow-api/pkg/logger"
	corsmiddleware "github.com/fixitnow/fixitnow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fixitnow/fixitnow-api/pkg/middleware/requestid"
)

// @title FixItNow API
// @version 1.0.0
// @description Service request brokering platform
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis backs token revocation and the stats cache. Without it revocation
	// falls back to the in-process store, which does not survive restarts and
	// is not shared between replicas.
	var revocations repository.TokenRevocationStore
	var statsCache *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, using in-memory revocation store", "error", err)
		revocations = repository.NewMemoryRevocationStore()
	} else {
		defer redisClient.Close() //nolint:errcheck
		revocations = repository.NewRedisRevocationStore(redisClient, cfg.Sessions.KeyPrefix)
		statsCache = repository.NewCacheRepository(redisClient, logr)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	listingRepo := repository.NewListingRepository(db)

	authService := service.NewAuthService(userRepo, revocations, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		Issuer:             cfg.JWT.Issuer,
		RevocationTTLFloor: cfg.Sessions.RevocationTTLFloor,
	})
	requestService := service.NewRequestService(requestRepo, userRepo, validate, logr)
	userService := service.NewUserService(userRepo, logr)
	listingService := service.NewListingService(listingRepo, userRepo, validate, logr)

	var cacheForStats service.StatsCache
	if statsCache != nil {
		cacheForStats = statsCache
	}
	statsService := service.NewStatsService(requestRepo, userRepo, cacheForStats, logr, service.StatsConfig{
		TopProvidersLimit: cfg.Stats.TopProvidersLimit,
		OverviewCacheTTL:  cfg.Stats.OverviewCacheTTL,
	})
	metricsService := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authService)
	requestHandler := handler.NewRequestHandler(requestService)
	userHandler := handler.NewUserHandler(userService)
	listingHandler := handler.NewListingHandler(listingService)
	statsHandler := handler.NewStatsHandler(statsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	requests := authed.Group("/requests")
	{
		requests.POST("", middleware.RequireRoles(models.RoleRequester), requestHandler.Create)
		requests.GET("", middleware.RequireRoles(models.RoleAdmin), requestHandler.List)
		requests.GET("/mine", middleware.RequireRoles(models.RoleRequester), requestHandler.Mine)
		requests.GET("/unassigned", middleware.RequireRoles(models.RoleProvider, models.RoleAdmin), requestHandler.Unassigned)
		requests.GET("/assigned", middleware.RequireRoles(models.RoleProvider), requestHandler.Assigned)
		requests.GET("/accepted", middleware.RequireRoles(models.RoleProvider), requestHandler.Accepted)
		requests.GET("/completed", middleware.RequireRoles(models.RoleProvider), requestHandler.Completed)
		requests.GET("/:id", requestHandler.Get)
		requests.POST("/:id/accept", middleware.RequireRoles(models.RoleProvider), requestHandler.Accept)
		requests.PATCH("/:id/status", requestHandler.UpdateStatus)
		requests.PATCH("/:id", requestHandler.Update)
		requests.DELETE("/:id", requestHandler.Delete)
		requests.POST("/:id/review", middleware.RequireRoles(models.RoleRequester), requestHandler.Review)
	}

	users := authed.Group("/users")
	{
		users.GET("/providers", userHandler.ListProviders)
		users.GET("/requesters", middleware.RequireRoles(models.RoleAdmin), userHandler.ListRequesters)
		users.GET("/:id", userHandler.Get)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	listings := authed.Group("/listings")
	{
		listings.POST("", middleware.RequireRoles(models.RoleProvider), listingHandler.Create)
		listings.GET("", listingHandler.List)
		listings.GET("/mine", middleware.RequireRoles(models.RoleProvider), listingHandler.Mine)
		listings.GET("/:id", listingHandler.Get)
		listings.PATCH("/:id/rating", middleware.RequireRoles(models.RoleAdmin), listingHandler.UpdateRating)
		listings.DELETE("/:id", listingHandler.Delete)
	}

	stats := authed.Group("/stats")
	{
		stats.GET("/providers/:id", statsHandler.ProviderStats)
		stats.GET("/providers/:id/completed-count", statsHandler.CompletedCount)
		stats.GET("/providers/:id/average-rating", statsHandler.AverageRating)
		stats.GET("/providers/:id/total-budget", statsHandler.TotalBudget)
		stats.GET("/top-providers", statsHandler.TopProviders)
		stats.GET("/overview", middleware.RequireRoles(models.RoleAdmin), statsHandler.Overview)
		if cfg.Reports.Enabled {
			stats.GET("/reports/requests", middleware.RequireRoles(models.RoleAdmin), statsHandler.Report)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
