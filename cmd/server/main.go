package main // Entry point package

import (
    "log" // Logging library

    "github.com/joho/godotenv"    // .env loader for local development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/bus-ticket-booking/internal/booking"
    "github.com/iliyamo/bus-ticket-booking/internal/config"
    "github.com/iliyamo/bus-ticket-booking/internal/database"
    "github.com/iliyamo/bus-ticket-booking/internal/fleet"
    "github.com/iliyamo/bus-ticket-booking/internal/handler"
    "github.com/iliyamo/bus-ticket-booking/internal/queue"
    "github.com/iliyamo/bus-ticket-booking/internal/repository"
    "github.com/iliyamo/bus-ticket-booking/internal/router"
)

func main() {
    _ = godotenv.Load() // load .env when present; real env vars win
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    tickets := repository.NewTicketRepo(db)
    inventory := fleet.NewClient(cfg.FleetBaseURL, cfg.FleetTimeout)
    coordinator := booking.NewService(tickets, inventory)

    rdb := config.NewRedisClient() // nil disables rate limiting and caching
    if rdb == nil {
        log.Println("redis unavailable; rate limiting and response cache disabled")
    }

    h := handler.NewTicketHandler(coordinator, tickets, config.LoadCacheConfig(), rdb)

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterTickets(e, h, cfg.JWTSecret, rdb)

    // Background consumer that appends ticket events to logs/ticket.log.
    go func() {
        if err := queue.StartTicketConsumer(); err != nil {
            log.Printf("ticket consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
