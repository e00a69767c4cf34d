package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"banappeals/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Operator CLI for working the review queue from a shell when the web
// panel is unavailable. Connects straight to the database.
func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewService(db, nil) // No redis needed for admin CLI

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <stats|approve|reject> [args]")
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "stats":
		stats, err := storageSvc.GetStats()
		if err != nil {
			log.Fatalf("Error loading stats: %v", err)
		}
		fmt.Printf("total: %d\npending: %d\naccepted: %d\nrejected: %d\n",
			stats.Total, stats.Pending, stats.Accepted, stats.Rejected)
	case "approve", "reject":
		if len(os.Args) != 4 {
			fmt.Printf("Usage: admin %s <appeal_id> <reviewer_discord_id>\n", command)
			os.Exit(1)
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			fmt.Println("Invalid appeal id. Please provide an integer.")
			os.Exit(1)
		}
		reviewerID, err := strconv.ParseInt(os.Args[3], 10, 64)
		if err != nil {
			fmt.Println("Invalid reviewer id. Please provide an integer.")
			os.Exit(1)
		}
		approve := command == "approve"
		if err := storageSvc.UpdateAppealStatus(uint(id), approve, reviewerID); err != nil {
			log.Fatalf("Error updating appeal %d: %v", id, err)
		}
		outcome := "rejected"
		if approve {
			outcome = "approved"
		}
		fmt.Printf("Appeal %d has been %s.\n", id, outcome)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
