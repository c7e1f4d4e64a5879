package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv" // Loads .env files into the process environment
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/minhvu/cinema-booking/internal/config"
	"github.com/minhvu/cinema-booking/internal/database"
	"github.com/minhvu/cinema-booking/internal/handler"
	"github.com/minhvu/cinema-booking/internal/payment"
	"github.com/minhvu/cinema-booking/internal/queue"
	"github.com/minhvu/cinema-booking/internal/repository"
	"github.com/minhvu/cinema-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; deployments set real environment variables

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the rate limiter on session creation and the catalog
	// response cache. A nil client disables both features gracefully.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and catalog cache disabled")
	}

	screeningRepo := repository.NewScreeningRepo(db)
	comboRepo := repository.NewComboRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	sessionRepo := repository.NewSessionRepo(db)

	gateway := payment.NewGateway(payment.Config{
		PayURL:       cfg.PayURL,
		ReturnURL:    cfg.PayReturnURL,
		MerchantCode: cfg.PayMerchantCode,
		Secret:       cfg.PaySecret,
	})

	publisher := queue.NewPublisher(cfg.AMQPURL)

	bookingCfg := handler.BookingConfig{
		HoldTTL:         cfg.HoldTTL,
		PointValueCents: cfg.PointValueCents,
	}
	bookingHandler := handler.NewBookingHandler(bookingCfg, sessionRepo, screeningRepo, comboRepo, customerRepo, gateway, publisher)
	catalogHandler := handler.NewCatalogHandler(screeningRepo, sessionRepo, comboRepo, customerRepo)

	e := echo.New()
	e.Use(echomw.Recover()) // never let a handler panic kill the server
	e.Use(echomw.Logger())

	router.Register(e, router.Deps{
		Booking:   bookingHandler,
		Catalog:   catalogHandler,
		Redis:     rdb,
		JWTSecret: cfg.JWTSecret,
	})

	// Background consumer appends confirmed bookings to logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(cfg.AMQPURL); err != nil {
			log.Printf("booking-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
