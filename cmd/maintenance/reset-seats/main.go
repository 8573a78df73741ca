package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/config"
	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/smarttransit/booking-engine/internal/services"
)

func main() {
	var (
		dbURLFlag      string
		driverFlag     string
		travelOptionID int64
		seatNo         string
		redisAddr      string
		lockTimeout    time.Duration
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&driverFlag, "driver", "pgx", "database driver: pgx or postgres")
	flag.Int64Var(&travelOptionID, "travel-option", 0, "travel option whose seats are reset (required)")
	flag.StringVar(&seatNo, "seat", "", "reset a single seat instead of the whole travel option")
	flag.StringVar(&redisAddr, "redis-addr", "", "redis address of the seat map cache to invalidate (optional)")
	flag.DurationVar(&lockTimeout, "lock-timeout", 5*time.Second, "how long to wait for seat row locks")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	if travelOptionID <= 0 {
		log.Fatal("-travel-option is required")
	}

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	// Build minimal database config without loading full app config
	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		Driver:             driverFlag,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	inventory := database.NewSeatInventoryRepository(db, lockTimeout)

	before, err := inventory.GetSummary(ctx, travelOptionID)
	if err != nil {
		log.Fatalf("failed to read seat summary: %v", err)
	}
	printSummary("Before reset", before)

	var target *string
	if seatNo != "" {
		target = &seatNo
	}
	count, err := inventory.ResetSeats(ctx, travelOptionID, target)
	if err != nil {
		log.Fatalf("failed to reset seats: %v", err)
	}
	fmt.Printf("Reset %d seat(s) on travel option %d\n", count, travelOptionID)

	if redisAddr != "" {
		logger := logrus.New()
		client := database.NewRedisClient(config.RedisConfig{Enabled: true, Addr: redisAddr, DialTimeout: 2 * time.Second}, logger)
		if client != nil {
			services.NewSeatMapCache(client, 0, logger).Invalidate(ctx, travelOptionID)
			client.Close()
			fmt.Println("Seat map cache invalidated")
		}
	}

	after, err := inventory.GetSummary(ctx, travelOptionID)
	if err != nil {
		log.Fatalf("failed to read seat summary: %v", err)
	}
	printSummary("After reset", after)
}

func printSummary(title string, s *models.SeatSummary) {
	fmt.Printf("%s:\n", title)
	fmt.Printf("  total:     %d\n", s.TotalSeats)
	fmt.Printf("  available: %d\n", s.AvailableSeats)
	fmt.Printf("  held:      %d\n", s.HeldSeats)
	fmt.Printf("  booked:    %d\n", s.BookedSeats)
}
