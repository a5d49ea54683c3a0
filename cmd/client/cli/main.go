package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/guardline/guardline-cli/internal/client/cli"
	"github.com/guardline/guardline-cli/internal/client/config"
	"github.com/guardline/guardline-cli/internal/logging"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
