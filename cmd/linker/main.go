// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// linker serves entity resolution over HTTP.
//
// Usage:
//
//	linker [-config linker.yaml] [-port 5000] [-log-file /var/log/linker.log] [-debug]
//
// Endpoints are listed on linker.RegisterRoutes; Prometheus metrics are on
// /metrics. A .env file in the working directory is loaded first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	linker "github.com/AleutianAI/EntityLink/services/linker"
	"github.com/AleutianAI/EntityLink/services/linker/bootstrap"
	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML file overriding the embedded defaults")
	port := flag.Int("port", 0, "Port to listen on (overrides server.port)")
	logFile := flag.String("log-file", "", "Also write JSON logs to this file, rotated")
	debug := flag.Bool("debug", false, "Enable debug logging and gin debug mode")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "linker: loading .env: %v\n", err)
	}

	logger, logCloser := bootstrap.NewLogger(bootstrap.LogOptions{File: *logFile, Debug: *debug})
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(*configPath, *port, *debug, logger); err != nil {
		logger.Error("linker stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, port int, debug bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFile(ctx, configPath)
	} else {
		cfg, err = config.GetConfig(ctx)
	}
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.Options{Global: true})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	stack, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		Logger:        logger,
		MeterProvider: tel.MeterProvider,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("closing linker resources", slog.String("error", err.Error()))
		}
	}()

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	if debug {
		router.Use(gin.Logger())
	}

	handlers := linker.NewHandlers(stack.Linker, stack.Resolver.Backend(), cfg.Server.MaxBatchSize)
	linker.RegisterRoutes(router, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting linker server",
			slog.String("address", srv.Addr),
			slog.String("backend", stack.Resolver.Backend()),
			slog.String("language", cfg.Language),
			slog.Bool("cache", stack.Cached()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down linker server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
