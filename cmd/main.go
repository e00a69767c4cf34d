package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"banappeals/backend/internal/api/handler"
	"banappeals/backend/internal/appeal"
	"banappeals/backend/internal/config"
	"banappeals/backend/internal/discord"
	"banappeals/backend/internal/ipcheck"
	"banappeals/backend/internal/logger"
	"banappeals/backend/internal/models"
	"banappeals/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	// TranslateError turns the unique-index violation on discord_id into
	// gorm.ErrDuplicatedKey, which the appeal service relies on.
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.Appeal{},
		&models.Reviewer{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Ban Appeals Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	configPath := flag.String("config", "config.yml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewService(db, rdb)

	botClient := discord.NewClient(cfg.Discord)
	oauth := discord.NewOAuth(cfg.Discord)

	var checker ipcheck.Checker
	if cfg.IPCheck.Enabled {
		checker = ipcheck.NewClient(cfg.IPCheck)
	}

	appeals := appeal.NewService(s, botClient, checker, cfg.Submissions)

	r := gin.Default()
	r.LoadHTMLGlob("web/templates/*.htm")

	h := handler.NewHandler(cfg, s, appeals, botClient, oauth)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.Server.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
