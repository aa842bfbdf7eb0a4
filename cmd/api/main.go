package main

import (
	"log"

	"github.com/joho/godotenv"

	"metriscope/adapters/llm"
	"metriscope/adapters/postgres"
	"metriscope/app"
	"metriscope/internal/api"
	"metriscope/internal/config"
	"metriscope/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] invalid configuration: %v", err)
	}

	var enhancer ports.Enhancer
	if cfg.Enhancer.Enabled {
		if cfg.Enhancer.APIKey != "" {
			enhancer = llm.NewOpenAIEnhancer(llm.Config{
				BaseURL: cfg.Enhancer.BaseURL,
				APIKey:  cfg.Enhancer.APIKey,
				Model:   cfg.Enhancer.Model,
				Timeout: cfg.Enhancer.Timeout,
			})
			log.Printf("[main] text enhancement enabled via %s", cfg.Enhancer.Model)
		} else {
			enhancer = llm.NewHeuristicEnhancer()
			log.Printf("[main] text enhancement enabled with the offline rewriter")
		}
	}

	var archive ports.ReportArchive
	if cfg.Archive.DSN != "" {
		pg, err := postgres.NewArchive(cfg.Archive.DSN)
		if err != nil {
			log.Fatalf("[main] archive unavailable: %v", err)
		}
		defer pg.Close()
		archive = pg
	}

	service := app.NewAnalysisService(cfg.Analysis, enhancer, archive)
	server := api.NewServer(cfg.Server, service, archive)
	if err := server.Start(); err != nil {
		log.Fatalf("[main] server stopped: %v", err)
	}
}
