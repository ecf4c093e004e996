package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/buzzposter/buzzposter/internal/admission"
	"github.com/buzzposter/buzzposter/internal/auth/apikey"
	"github.com/buzzposter/buzzposter/internal/auth/late"
	"github.com/buzzposter/buzzposter/internal/auth/quota"
	"github.com/buzzposter/buzzposter/internal/config"
	"github.com/buzzposter/buzzposter/internal/content"
	"github.com/buzzposter/buzzposter/internal/db"
	"github.com/buzzposter/buzzposter/internal/mcpserver"
	"github.com/buzzposter/buzzposter/internal/metrics"
	"github.com/buzzposter/buzzposter/internal/server"
	"github.com/buzzposter/buzzposter/internal/tools"
	"github.com/buzzposter/buzzposter/internal/version"
	"github.com/joho/godotenv"
)

func main() {
	flagConfig := flag.String("config", os.Getenv("BUZZPOSTER_CONFIG"), "path to YAML config file")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Init(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := metrics.Register(nil); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	tokenManager := late.NewManager(database, cfg)
	facade := admission.New(database)

	registry := tools.NewRegistry()
	builtins := tools.Builtin(tools.Deps{
		Tokens:    tokenManager,
		Source:    content.NewNewsAPI(cfg.News.APIKey),
		Publisher: tokenManager,
	})
	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			log.Fatalf("Failed to register tool: %v", err)
		}
	}
	if err := registry.Validate(); err != nil {
		log.Fatalf("Invalid tool registry: %v", err)
	}

	router := server.NewRouter(server.Deps{
		Cfg:     cfg,
		DB:      database,
		Auth:    apikey.New(database),
		Tokens:  tokenManager,
		Limiter: quota.New(database),
		MCP:     mcpserver.New(facade, registry),
	})

	log.Printf("🚀 BuzzPoster %s listening on %s (base URL %s)",
		version.Version, cfg.Server.Addr, cfg.Server.BaseURL)
	if err := http.ListenAndServe(cfg.Server.Addr, router); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
