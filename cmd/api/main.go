package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"coursehub/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.InitSchema(ctx, db); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}

	// The catalog cache is optional; without Redis every list hits postgres.
	var cache *core.CatalogCache
	if cfg.RedisURL != "" {
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		cache = core.NewCatalogCache(redisClient, time.Duration(cfg.CatalogCacheTTLSeconds)*time.Second)
	}

	principalRepo := core.NewPgPrincipalRepository(db)
	courseRepo := core.NewPgCourseRepository(db)
	tokens := core.NewTokenIssuer([]byte(cfg.JWTSecret))

	var assertions core.AssertionVerifier
	if cfg.GoogleClientID != "" {
		googleVerifier, err := core.NewGoogleVerifier(ctx, cfg.GoogleIssuerURL, cfg.GoogleClientID)
		if err != nil {
			log.Fatalf("failed to set up google sign-in: %v", err)
		}
		assertions = googleVerifier
	} else {
		log.Printf("GOOGLE_CLIENT_ID not set; google sign-in disabled")
		assertions = core.DisabledAssertionVerifier{}
	}

	authService := core.NewAuthService(principalRepo, tokens, assertions)

	if err := core.BootstrapAdmin(ctx, principalRepo, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, tokens, authService, courseRepo, cache)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
