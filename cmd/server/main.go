package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-engine/internal/api"
	"github.com/ignite/campaign-engine/internal/campaign"
	"github.com/ignite/campaign-engine/internal/config"
	"github.com/ignite/campaign-engine/internal/mailer"
	"github.com/ignite/campaign-engine/internal/repository/postgres"
	"github.com/ignite/campaign-engine/internal/template"
	"github.com/ignite/campaign-engine/internal/webhook"
	"github.com/ignite/campaign-engine/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("[Server] Failed to connect to database: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("[Server] Invalid redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("[Server] Redis unavailable, falling back to advisory locks: %v", err)
			redisClient = nil
		}
	}

	store := postgres.NewCampaignStore(db)
	leads := postgres.NewLeadStore(db)
	resolver := campaign.NewResolver(leads)
	templates := template.NewEngine()

	var sender mailer.Sender
	if cfg.SES.Enabled {
		sesSender, err := mailer.NewSESSender(context.Background(), mailer.SESOptions{
			Region:    cfg.SES.Region,
			AccessKey: cfg.SES.AccessKey,
			SecretKey: cfg.SES.SecretKey,
		})
		if err != nil {
			log.Fatalf("[Server] Failed to create SES sender: %v", err)
		}
		sender = sesSender
	} else {
		log.Printf("[Server] SES disabled, using dry-run sender")
		sender = mailer.LogSender{}
	}

	dispatcher := worker.NewDispatcher(store, resolver, sender, templates)
	dispatcher.SetSendDelay(cfg.Dispatch.SendInterval())

	notifier := webhook.NewNotifier(cfg.Webhook.URL)
	scheduler := worker.NewScheduler(store, notifier)
	scheduler.SetDB(db)
	if redisClient != nil {
		scheduler.SetRedisClient(redisClient)
	}
	scheduler.SetPollInterval(cfg.Dispatch.SchedulerPoll())

	cleanup := worker.NewCleanup(store)
	cleanup.SetInterval(cfg.Dispatch.CleanupInterval())
	cleanup.SetStallTimeout(cfg.Dispatch.StallTimeout())

	if err := scheduler.Start(); err != nil {
		log.Fatalf("[Server] Failed to start scheduler: %v", err)
	}
	if err := cleanup.Start(); err != nil {
		log.Fatalf("[Server] Failed to start cleanup: %v", err)
	}

	server := api.NewServer(store, dispatcher, scheduler, cleanup)
	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("[Server] Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] HTTP server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[Server] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] HTTP shutdown error: %v", err)
	}

	scheduler.Stop()
	cleanup.Stop()
	// Let in-flight campaign sends finish; they are never cancelled mid-run.
	dispatcher.Wait()

	log.Printf("[Server] Shutdown complete")
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
