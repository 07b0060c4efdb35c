package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/vttlabs/lorekeeper/internal/client/cli"
	"github.com/vttlabs/lorekeeper/internal/client/config"
	"github.com/vttlabs/lorekeeper/internal/logging"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
