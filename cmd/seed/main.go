// Command seed inserts missing diagnosis labels into the catalog. Labels come from a
// .yaml/.yml or .xlsx file given with -file, or from the built-in catalog.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/medical-intake/internal/bootstrap"
	"github.com/kirillkom/medical-intake/internal/config"
	"github.com/kirillkom/medical-intake/internal/infrastructure/catalogfile"
	"github.com/kirillkom/medical-intake/internal/observability/logging"
)

func main() {
	file := flag.String("file", "", "path to a .yaml/.yml or .xlsx catalog file")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("seed", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var labels []string
	if *file != "" {
		loaded, err := catalogfile.Load(*file)
		if err != nil {
			logger.Error("catalog_file_failed", "file", *file, "error", err)
			os.Exit(1)
		}
		labels = loaded
		logger.Info("catalog_file_loaded", "file", *file, "labels", len(labels))
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "seed"})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	result, err := app.Catalog.Seed(ctx, labels)
	if err != nil {
		logger.Error("catalog_seed_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog_seeded", "count", result.Count, "inserted", result.Inserted)
}
