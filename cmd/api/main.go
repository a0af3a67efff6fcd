package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"emoji-restful-api/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	// A missing signing secret is fatal: no login could ever succeed.
	tokens, err := core.NewTokenService(cfg.Secret, core.WithTokenLeeway(cfg.TokenLeeway))
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	// Gorilla cookie store carries only the opaque session id.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	userRepo := core.NewPgUserRepository(db)
	emojiRepo := core.NewPgEmojiRepository(db)
	authService := core.NewRepositoryAuthService(userRepo)
	sessionStore := core.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	gateway := core.NewAuthGateway(authService, tokens, sessionStore)

	if cfg.SeedEnabled {
		doc, err := core.LoadSeedFile(cfg.SeedPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("seed file %s not found; skipping", cfg.SeedPath)
		case err != nil:
			log.Fatalf("failed to read seed file: %v", err)
		default:
			if err := core.Seed(ctx, doc, authService, userRepo, emojiRepo); err != nil {
				log.Fatalf("seed failed: %v", err)
			}
		}
	}

	probes := map[string]core.HealthProbe{
		"postgres": db.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}
	router := core.NewRouter(cfg, store, gateway, authService, emojiRepo, probes)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
