package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/medical-intake/internal/adapters/mcp"
	"github.com/kirillkom/medical-intake/internal/bootstrap"
	"github.com/kirillkom/medical-intake/internal/config"
	"github.com/kirillkom/medical-intake/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Service: "mcp"})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer("medical-intake", "1.0.0", mcpadapter.NewHandlers(app.Intake, app.Catalog, cfg.MCPUserID))
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
