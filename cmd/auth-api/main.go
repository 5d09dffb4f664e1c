package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/wavechat-auth-api/api/swagger"
	"github.com/noah-isme/wavechat-auth-api/internal/handler"
	"github.com/noah-isme/wavechat-auth-api/internal/middleware"
	"github.com/noah-isme/wavechat-auth-api/internal/repository"
	"github.com/noah-isme/wavechat-auth-api/internal/service"
	"github.com/noah-isme/wavechat-auth-api/internal/token"
	"github.com/noah-isme/wavechat-auth-api/pkg/cache"
	"github.com/noah-isme/wavechat-auth-api/pkg/config"
	"github.com/noah-isme/wavechat-auth-api/pkg/database"
	"github.com/noah-isme/wavechat-auth-api/pkg/jobs"
	"github.com/noah-isme/wavechat-auth-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/wavechat-auth-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/wavechat-auth-api/pkg/middleware/requestid"
)

// @title WaveChat Auth API
// @version 0.1.0
// @description Session and identity service for the WaveChat platform
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// The session cache is best-effort: verification falls back to the
	// database when Redis is unavailable.
	var sessionRepo *repository.SessionKeyRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, session cache disabled", "error", err)
		sessionRepo = repository.NewSessionKeyRepository(db, nil, cfg.Session.CacheTTL, logr)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		sessionRepo = repository.NewSessionKeyRepository(db, cacheRepo, cfg.Session.CacheTTL, logr)
	}

	userRepo := repository.NewUserRepository(db)
	bootstrapRepo := repository.NewBootstrapRepository(db)

	signer := token.NewSigner(token.SignerConfig{
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
	})
	keys := token.NewKeyPairGenerator(cfg.Token.RSAKeyBits)

	metricsSvc := service.NewMetricsService()
	identitySvc := service.NewIdentityProviderService(cfg.OAuth, logr)
	bootstrapSvc := service.NewBootstrapService(bootstrapRepo, jobs.QueueConfig{
		Workers:    cfg.Bootstrap.Workers,
		MaxRetries: cfg.Bootstrap.MaxRetries,
		RetryDelay: cfg.Bootstrap.RetryDelay,
		Logger:     logr,
	}, logr)
	bootstrapSvc.Start(context.Background())
	defer bootstrapSvc.Stop()

	validate := validator.New()
	authSvc := service.NewAuthService(userRepo, sessionRepo, keys, signer, identitySvc, bootstrapSvc, metricsSvc, validate, logr, service.AuthConfig{
		BcryptCost: cfg.Password.BcryptCost,
	})
	authHandler := handler.NewAuthHandler(authSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

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

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.SignUp)
		auth.POST("/login", authHandler.Login)
		auth.POST("/oauth/:provider", authHandler.OAuthLogin)
		auth.POST("/refresh", authHandler.Refresh)

		protected := auth.Group("")
		protected.Use(middleware.Session(sessionRepo, signer))
		protected.POST("/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
