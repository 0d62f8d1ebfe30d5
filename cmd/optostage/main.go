package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joaquim-mph/optostage/internal/config"
	"github.com/joaquim-mph/optostage/internal/logging"
	"github.com/joaquim-mph/optostage/internal/orchestrator"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("OPTOSTAGE_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else {
			configFile = "config/optostage.yaml"
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	summary, err := orchestrator.Run(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Error("orchestration failed")
		os.Exit(1)
	}

	fmt.Printf("ok=%d skipped=%d reject=%d\n", summary.OK, summary.Skipped, summary.Reject)
}
