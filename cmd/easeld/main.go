package main

import (
	"flag"
	"fmt"
	"os"

	"easel/internal/bridge"
	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/observability"
	"easel/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to server config (defaults apply when empty)")
	flag.Parse()

	logging.ConfigureRuntime("easeld")
	observability.RegisterMetrics()

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "easeld: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	hub := bridge.NewHub(cfg.DefaultChannel, cfg.CommandTimeout())
	if err := server.New(cfg, hub).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "easeld: %v\n", err)
		os.Exit(1)
	}
}
