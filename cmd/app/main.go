package main

import (
	"flag"
	"log"
	"os"

	"AlphaDesk/internal/di"
	"AlphaDesk/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	runErr := app.Run()
	cleanup()
	if runErr != nil {
		log.Printf("app error: %v", runErr)
		os.Exit(1)
	}
}
