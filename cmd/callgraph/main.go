//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Command callgraph serves a call graph engine over HTTP and, optionally,
// A2A.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	a2a "trpc.group/trpc-go/trpc-a2a-go/server"

	"trpc.group/trpc-go/trpc-callgraph-go/config"
	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/server"
	a2aserver "trpc.group/trpc-go/trpc-callgraph-go/server/a2a"
	"trpc.group/trpc-go/trpc-callgraph-go/telemetry"
)

var configPath = flag.String("config", "", "Path of the YAML configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.SetFormat(cfg.Log.Format)
	log.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Errorf("callgraph: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Meters are bound when the engine is created, so exporters start first.
	cleanTelemetry, err := telemetry.Start(ctx, telemetry.Config{
		Traces:          cfg.Telemetry.Traces,
		Metrics:         cfg.Telemetry.Metrics,
		Protocol:        cfg.Telemetry.Protocol,
		TracesEndpoint:  cfg.Telemetry.Endpoint,
		MetricsEndpoint: cfg.Telemetry.Endpoint,
		ServiceName:     cfg.Telemetry.ServiceName,
		SampleRatio:     cfg.Telemetry.SampleRatio,
	})
	defer func() {
		if err := cleanTelemetry(); err != nil {
			log.Warnf("Failed to stop telemetry: %v", err)
		}
	}()
	if err != nil {
		return err
	}

	e, closeEngine, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeEngine(); err != nil {
			log.Warnf("Failed to close engine: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(e, server.WithKeepAlive(cfg.Server.KeepAlive)).Handler(),
	}
	errCh := make(chan error, 2)
	go func() {
		log.Infof("Serving HTTP on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var a2aSrv *a2a.A2AServer
	if cfg.Server.A2AAddr != "" {
		a2aSrv, err = a2aserver.New(e,
			a2aserver.WithHost(cfg.Server.A2AAddr),
			a2aserver.WithEntry(cfg.Engine.Entry),
		)
		if err != nil {
			return errors.Join(err, srv.Close())
		}
		go func() {
			log.Infof("Serving A2A on %s", cfg.Server.A2AAddr)
			if err := a2aSrv.Start(cfg.Server.A2AAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Infof("Shutting down")
	case err = <-errCh:
		log.Errorf("Listener failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	errs := []error{err, srv.Shutdown(shutdownCtx)}
	if a2aSrv != nil {
		errs = append(errs, a2aSrv.Stop(shutdownCtx))
	}
	return errors.Join(errs...)
}
