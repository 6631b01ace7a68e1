// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command enrich starts the Summit Enrich API server.
//
// Summit Enrich fills dashboard columns in bulk with LLM-derived answers:
//   - Batched completion calls (15 records per prompt)
//   - Two-tier model escalation for ambiguous yes/no answers
//   - Optional grounding against a reference organization dataset
//   - Per-record failure isolation (one bad record never sinks a run)
//
// Usage:
//
//	go run ./cmd/enrich
//	go run ./cmd/enrich -port 9090
//	go run ./cmd/enrich -config enrich.yaml
//
// With OpenAI:
//
//	LLM_PROVIDER=openai OPENAI_API_KEY=sk-... go run ./cmd/enrich
//
// With Anthropic and a completion cache:
//
//	LLM_PROVIDER=anthropic ANTHROPIC_API_KEY=... ENRICH_CACHE_DIR=~/.summit/cache/enrich go run ./cmd/enrich
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/enrich/health
//
//	# Enrich a boolean column
//	curl -X POST http://localhost:8080/v1/enrich/run \
//	  -H "Content-Type: application/json" \
//	  -d '{"items": [{"id": "a-1", "name": "Mercy Health"}],
//	       "prompt_template": "Does {{name}} operate in Ohio?",
//	       "column_name": "in_ohio", "column_type": "boolean"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AleutianAI/summit/services/enrich"
	"github.com/AleutianAI/summit/services/enrich/reference"
	"github.com/AleutianAI/summit/services/llm"
	"github.com/AleutianAI/summit/services/llm/cache"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	configPath := flag.String("config", "enrich.yaml", "Path to the service config file")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so enrichment spans join the caller's
	// distributed trace.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	shutdownTracing := setupTracing()
	defer shutdownTracing()

	cfg, err := enrich.LoadServiceConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client, err := llm.NewClientFromEnv()
	if err != nil {
		slog.Error("Failed to create completion client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Completion client ready", slog.String("model", client.Model()))

	// Completion cache: graceful degradation. If the cache directory is
	// unset or Badger cannot open it, enrichment runs uncached.
	var cacheStore cache.Store
	if cfg.CacheDir != "" {
		store, err := cache.OpenBadgerStore(cfg.CacheDir, cfg.CacheTTL(), slog.Default())
		if err != nil {
			slog.Warn("Completion cache unavailable, caching disabled",
				slog.String("path", cfg.CacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			cacheStore = store
			slog.Info("Completion cache opened", slog.String("path", cfg.CacheDir))
		}
	}
	client = cache.NewCachedClient(client, cacheStore, slog.Default())
	client = llm.NewRateLimitedClient(client, cfg.RateLimitRPS)

	opts := []enrich.EngineOption{enrich.WithLogger(slog.Default())}
	if cfg.ReferencePath != "" {
		opts = append(opts, enrich.WithDirectory(reference.NewFileDirectory(cfg.ReferencePath)))
		slog.Info("Reference directory configured", slog.String("path", cfg.ReferencePath))
	}

	svc := enrich.NewService(cfg, client, opts...)
	handlers := enrich.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("summit-enrich"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	enrich.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, cfg.ReferencePath != "", cacheStore != nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Summit Enrich server")
		if cacheStore != nil {
			if err := cacheStore.Close(); err != nil {
				slog.Warn("Failed to close completion cache", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Summit Enrich server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupTracing installs an OTLP trace exporter when an endpoint is
// configured. Without OTEL_EXPORTER_OTLP_ENDPOINT, spans stay no-op and
// only the propagator is active.
//
// Outputs:
//   - func(): Shutdown hook flushing pending spans. Never nil.
func setupTracing() func() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func() {}
	}

	ctx := context.Background()
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		slog.Warn("OTLP exporter unavailable, tracing disabled",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return func() {}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("summit-enrich"),
		)),
	)
	otel.SetTracerProvider(provider)
	slog.Info("OTLP tracing enabled", slog.String("endpoint", endpoint))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Tracer provider shutdown failed", slog.String("error", err.Error()))
		}
	}
}

func printBanner(port int, grounding, caching bool) {
	groundingStatus := "DISABLED (set ENRICH_REFERENCE_PATH to enable)"
	if grounding {
		groundingStatus = "ENABLED"
	}
	cacheStatus := "DISABLED (set ENRICH_CACHE_DIR to enable)"
	if caching {
		cacheStatus = "ENABLED"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      SUMMIT ENRICH SERVER                         ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Bulk LLM enrichment for dashboard columns.                       ║
║  Grounding: %-50s ║
║  Cache:     %-50s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/enrich/health             │  ║
║  │                                                             │  ║
║  │ # Enrich a column                                           │  ║
║  │ curl -X POST http://localhost:%d/v1/enrich/run \      │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"items": [...], "prompt_template": "...",            │  ║
║  │        "column_name": "...", "column_type": "boolean"}'     │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── POST /v1/enrich/run                                          ║
║  ├── GET  /v1/enrich/health, /v1/enrich/ready                     ║
║  └── GET  /metrics                                                ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, groundingStatus, cacheStatus, port, port)
}
