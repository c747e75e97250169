package main

import (
	"fmt"
	"log"

	"stock-trader/internal/config"
	"stock-trader/internal/database"
	"stock-trader/internal/quote"
	"stock-trader/internal/router"
)

func main() {
	// load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.Quote.APIKey == "" {
		log.Fatal("quote api key not set (quote.api_key / STS_QUOTE_API_KEY)")
	}

	// init database
	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	// run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// quote collaborator
	quotes := quote.NewClient(cfg.Quote)

	// setup router
	r := router.SetupRouter(cfg, db, quotes)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
