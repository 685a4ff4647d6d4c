package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcRouter "github.com/dtroode/identity-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/identity-server/internal/api/grpc/server"
	"github.com/dtroode/identity-server/internal/api/http/handler"
	httpRouter "github.com/dtroode/identity-server/internal/api/http/router"
	httpServer "github.com/dtroode/identity-server/internal/api/http/server"
	"github.com/dtroode/identity-server/internal/config"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/repository/memory"
	"github.com/dtroode/identity-server/internal/repository/postgres"
	"github.com/dtroode/identity-server/internal/security"
	"github.com/dtroode/identity-server/internal/server"
	"github.com/dtroode/identity-server/internal/service"
	"github.com/dtroode/identity-server/internal/token"
	"github.com/dtroode/identity-server/internal/worker"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	if cfg.UsesDevSecret() {
		logger.Warn("JWT_SECRET is unset, signing tokens with the public development secret")
	}

	var (
		userRepo         model.UserStore
		refreshTokenRepo model.RefreshTokenRepository
		pinger           handler.Pinger
	)
	if cfg.Database.DSN != "" {
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to initialize storage", "error", err)
		}
		defer db.Close()

		userRepo = postgres.NewUserRepository(db)
		refreshTokenRepo = postgres.NewRefreshTokenRepository(db)
		pinger = db
	} else {
		logger.Warn("DATABASE_DSN is empty, using in-memory storage")
		userRepo = memory.NewUserRepository()
		refreshTokenRepo = memory.NewRefreshTokenRepository()
	}

	tokenManager, err := token.NewJWT(cfg.JWT.Secret)
	if err != nil {
		logger.Fatal("failed to initialize token codec", "error", err)
	}

	var throttle service.Throttle
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		throttle = service.NewRedisThrottle(redisClient, cfg.Throttle.MaxAttempts, cfg.Throttle.Window, logger)
	}

	refreshTokens := service.NewRefreshTokens(refreshTokenRepo, cfg.JWT.RefreshTTL, cfg.Database.Timeout, logger)
	verifier := service.NewPasswordVerifier(userRepo, logger)
	authService := service.NewAuth(userRepo, verifier, tokenManager, refreshTokens, throttle, cfg.JWT.AccessTTL, cfg.Database.Timeout, logger)
	userService := service.NewUsers(userRepo, logger)

	if cfg.Seed.AdminEmail != "" {
		if err := userService.SeedAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
			logger.Fatal("failed to seed administrator", "error", err)
		}
	}

	ctxMgr := security.NewContextManager()
	authenticator := security.NewAuthenticator(tokenManager, userRepo, ctxMgr, cfg.Database.Timeout, logger)

	health := handler.NewHealth(pinger, cfg.Database.Timeout, logger)
	engine := httpRouter.New(authService, userService, authenticator, ctxMgr, health, logger).Register()
	httpSrv := httpServer.NewHTTPServer(engine, cfg.HTTP.Addr)

	gr := grpcRouter.New(authService, authenticator, ctxMgr, logger)
	gs := gr.Register()
	reflection.Register(gs)
	grpcSrv := grpcServer.NewGRPCServer(gs, fmt.Sprintf(":%s", cfg.GRPC.Port))

	cleanup := worker.NewCleanup(refreshTokens, cfg.Cleanup.Retention, cfg.Cleanup.Interval, cfg.Cleanup.InitialDelay, cfg.Database.Timeout, logger)
	cleanup.Start()

	var wg sync.WaitGroup
	start := func(s model.Server, sl model.SecurityLayer) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}()
	}
	start(httpSrv, server.NewPlainListener())
	start(grpcSrv, server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName))

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")
	gr.Health().SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for _, s := range []model.Server{httpSrv, grpcSrv} {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}
	cleanup.Stop()

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
