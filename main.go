package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx := context.Background()

	var analyzer Analyzer
	if cfg.GCP.ProjectID != "" {
		gemini, err := NewGeminiClient(ctx, cfg.GCP)
		if err != nil {
			return fmt.Errorf("init gemini: %w", err)
		}
		defer gemini.Close()
		analyzer = gemini
		logger.Info("gemini client ready", "project", cfg.GCP.ProjectID, "region", cfg.GCP.Region, "model", cfg.GCP.Model)
	} else {
		logger.Info("GCP_PROJECT_ID not set, photo import disabled")
	}

	templates, err := BuiltinTemplates()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	srv := NewServer(cfg, NewStore(), templates, analyzer, logger)
	defer srv.Close()

	logger.Info("server listening", "addr", "http://localhost:"+cfg.Port, "templates", len(templates))
	return http.ListenAndServe(":"+cfg.Port, srv)
}
