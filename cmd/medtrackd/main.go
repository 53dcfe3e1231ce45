package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/medtrack/medtrackd/internal/app"
	"github.com/medtrack/medtrackd/internal/config"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("medtrackd version %s\n", version)
			return
		}
	}

	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting medtrackd", zap.String("version", version))

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	application, err := app.New(cfg, logger, version)
	if err != nil {
		logger.Fatal("Failed to initialize app", zap.Error(err))
	}

	application.RunServer()
}
