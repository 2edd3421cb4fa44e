package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ticketchief/checkout-gateway/internal/checkout"
	"github.com/ticketchief/checkout-gateway/internal/client"
	"github.com/ticketchief/checkout-gateway/internal/config"
	"github.com/ticketchief/checkout-gateway/internal/database"
	"github.com/ticketchief/checkout-gateway/internal/handler"
	"github.com/ticketchief/checkout-gateway/internal/middleware"
	"github.com/ticketchief/checkout-gateway/internal/repository"
	"github.com/ticketchief/checkout-gateway/internal/router"
	"github.com/ticketchief/checkout-gateway/internal/seatmap"
	queue_publisher "github.com/ticketchief/checkout-gateway/internal/service"
	"github.com/ticketchief/checkout-gateway/internal/session"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	// Backend service clients.
	identity := client.NewIdentityClient(cfg.IdentityURL, cfg.HTTPTimeout)
	events := client.NewEventsClient(cfg.EventsURL, cfg.HTTPTimeout)
	orders := client.NewOrdersClient(cfg.OrdersURL, cfg.HTTPTimeout)
	payments := client.NewPaymentsClient(cfg.PaymentsURL, cfg.HTTPTimeout)

	// Optional checkout journal.  The gateway runs without it.
	var journal *repository.JournalRepo
	if cfg.JournalEnabled() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("journal database: %v", err)
		}
		journal = repository.NewJournalRepo(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := journal.EnsureSchema(ctx); err != nil {
			log.Fatalf("journal schema: %v", err)
		}
		cancel()
	} else {
		log.Printf("WARN: DB_HOST/DB_NAME not set, checkout journal disabled")
	}

	// Optional Redis for rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("WARN: redis not configured or unreachable, rate limiting disabled")
	}
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// One synchronizer and one coordinator per shopper session.
	sessions := session.NewManager(func(userID string) (*seatmap.Synchronizer, *checkout.Coordinator) {
		syncer := seatmap.NewSynchronizer(events)
		opts := []checkout.Option{
			checkout.WithPublisher(queue_publisher.PublishCheckoutCompleted),
		}
		if journal != nil {
			opts = append(opts, checkout.WithJournal(journal))
		}
		coord := checkout.New(userID, events, orders, payments, syncer, opts...)
		return syncer, coord
	}, cfg.SessionTTL)
	defer sessions.Close()

	h := handler.NewCheckoutHandler(sessions, identity, journal)

	e := echo.New()
	router.RegisterRoutes(e, h, cfg.JWTSecret, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
