package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/config"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/fingerprint"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/driver"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/events"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s: %v. Using defaults", cfgPath, err)
		cfg = config.Default()
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	d, err := driver.NewNeo4jDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database, lg)
	if err != nil {
		lg.Fatal("graph connection failed", "uri", cfg.Graph.URI, "error", err)
	}
	ctx := context.Background()
	defer d.Close(ctx)
	if err := d.BuildIndices(ctx); err != nil {
		lg.Warn("index build incomplete", "error", err)
	}

	registryClient := redis.NewClient(&redis.Options{
		Addr: cfg.Registry.RedisAddr,
		DB:   cfg.Registry.RedisDB,
	})
	store := fingerprint.NewRedisStore(registryClient, cfg.Registry.KeyPrefix)
	registry := fingerprint.NewRegistry(store, cfg.Registry.RetentionDays, lg)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.RedisAddr != "" {
		eventsClient := redis.NewClient(&redis.Options{Addr: cfg.Events.RedisAddr})
		publisher = events.NewRedisPublisher(eventsClient, cfg.Events.Channel, lg)
	}

	ingestor := core.NewIngestor(cfg, d, registry, publisher, lg)
	srv := server.NewServer(ingestor, d, lg)
	r := srv.SetupRouter()

	lg.Info("starting server", "port", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		lg.Fatal("server exited", "error", err)
	}
}

func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("GRAPH_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		cfg.Graph.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("GRAPH_DATABASE"); v != "" {
		cfg.Graph.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Registry.RedisAddr = v
		if cfg.Events.RedisAddr != "" {
			cfg.Events.RedisAddr = v
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
}
