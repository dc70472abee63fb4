package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/wallet-service/internal/api"
	"github.com/honeynil/wallet-service/internal/config"
	"github.com/honeynil/wallet-service/internal/handler"
	"github.com/honeynil/wallet-service/internal/infrastructure/auth"
	"github.com/honeynil/wallet-service/internal/infrastructure/kafka"
	"github.com/honeynil/wallet-service/internal/infrastructure/redis"
	"github.com/honeynil/wallet-service/internal/observability"
	core "github.com/honeynil/wallet-service/internal/repository/postgres"
	service "github.com/honeynil/wallet-service/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	shutdown := observability.Setup("wallet-service")
	defer shutdown(context.Background())

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	userRepo := core.NewPostgresUserRepository(db)
	accountRepo := core.NewPostgresAccountRepository(db)
	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()
	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers)
	defer kafkaProducer.Close()
	issuer := auth.NewTokenIssuer(cfg.JWTSecret)

	svc := service.NewUserService(userRepo, accountRepo, redisClient, kafkaProducer, issuer, nil)
	h := handler.NewHandler(svc)
	router := api.SetupRouter(h, issuer)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
