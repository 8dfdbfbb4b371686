package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/tour-booking-api/internal/config"
	"github.com/iliyamo/tour-booking-api/internal/database"
	"github.com/iliyamo/tour-booking-api/internal/handler"
	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/mail"
	"github.com/iliyamo/tour-booking-api/internal/payment"
	"github.com/iliyamo/tour-booking-api/internal/queue"
	"github.com/iliyamo/tour-booking-api/internal/repository"
	"github.com/iliyamo/tour-booking-api/internal/router"
	"github.com/iliyamo/tour-booking-api/internal/token"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db, cfg.BcryptCost)
	tours := repository.NewTourRepo(db)
	reviews := repository.NewReviewRepo(db)
	bookings := repository.NewBookingRepo(db)

	issuer := token.NewIssuer(cfg)
	notifier := queue.NewPublisher()

	var stripe *payment.StripeClient
	if cfg.StripeSecretKey != "" {
		stripe = payment.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	}
	var chapa *payment.ChapaClient
	if cfg.ChapaSecretKey != "" {
		chapa = payment.NewChapaClient(cfg.ChapaSecretKey)
	}

	// The consumer is the only long-lived background goroutine; it owns its
	// own reconnect loop.
	go func() {
		if err := queue.StartNotificationConsumer(mail.New(cfg)); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.HTTPErrorHandler = httperr.Handler(cfg.Env)

	router.Register(e, router.Deps{
		DB:     db,
		Redis:  rdb,
		Issuer: issuer,
		Users:  users,

		Auth:     handler.NewAuthHandler(users, issuer, notifier, cfg.FrontendURL),
		Bookings: handler.NewBookingHandler(bookings, tours, users, stripe, chapa, notifier, cfg.FrontendURL),

		UserResource:    handler.NewUserResource(users),
		TourResource:    handler.NewTourResource(tours),
		ReviewResource:  handler.NewReviewResource(reviews),
		BookingResource: handler.NewBookingResource(bookings),

		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
