package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-auth-core/internal/config"
	"github.com/go-auth-core/internal/infrastructure/cache"
	"github.com/go-auth-core/internal/infrastructure/dynamo"
	"github.com/go-auth-core/internal/infrastructure/google"
	jwtinfra "github.com/go-auth-core/internal/infrastructure/jwt"
	kafkabus "github.com/go-auth-core/internal/infrastructure/kafka"
	transporthttp "github.com/go-auth-core/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	// Session blacklist cache. Revocation cannot take effect without it, so a
	// missing Redis is a startup failure, not a warning.
	redisClient, err := cache.NewClient(cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	blacklist := cache.NewStore(redisClient)

	publisher := kafkabus.NewPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("WARN: closing kafka publisher: %v", err)
		}
	}()

	deps := &transporthttp.Deps{
		AccountRepo:       dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts),
		SessionRepo:       dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		OtpRepo:           dynamo.NewOtpRepo(dynamoClient, cfg.DynamoTables.Otps),
		ExternalLoginRepo: dynamo.NewExternalLoginRepo(dynamoClient, cfg.DynamoTables.ExternalLogins),
		Blacklist:         blacklist,
		Publisher:         publisher,
		JWTProvider:       jwtProvider,
		GoogleVerifier:    google.NewVerifier(cfg.GoogleClientID),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
