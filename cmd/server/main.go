// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the media pipeline worker.
//
// The worker runs one video job at a time behind a Gin HTTP server. Every
// operation is a synchronous POST whose response carries the finished
// artifact; a newer media request preempts the running one. The same
// pipeline requests can also arrive on a Pub/Sub subscription.
//
// The main function loads the configuration, sets up logging and telemetry,
// initializes the application state and serves until it receives SIGINT or
// SIGTERM. On shutdown the running job is preempted so no engine outlives the
// server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/api"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/telemetry"
)

func main() {
	config := GetConfig()

	telemetry.SetupLogging(config.Application.LogLevel, config.Application.LogFile)
	slog.Info("Logging initialized", "level", config.Application.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized", "export", config.Application.EnableTelemetry)

	if err := InitState(ctx); err != nil {
		slog.Error("Failed to initialize state", "error", err)
		log.Fatal(err)
	}
	defer state.cloud.Close()
	slog.Info("Initialized State", "scratch_dir", state.deps.Scratch.Dir, "transcriber", config.Analysis.Transcriber)

	r := api.NewRouter(state.service, api.Info{
		Service:          config.Application.Name,
		TranscriberReady: state.deps.TranscriberReady,
		Metrics:          state.metrics.Handler(),
	})

	// Jobs answer synchronously and can run for minutes, so only reading the
	// request is bounded.
	srv := &http.Server{
		Addr:              ":" + config.Application.Port,
		Handler:           r,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			cancel()
		}
	}()
	slog.Info("Server Ready", "port", config.Application.Port)

	SetupListeners(ctx, state.cloud)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("Shutdown Server ...")

	// Stop the running engine first; its request then answers Preempted and
	// the server can drain.
	state.service.Reset(context.Background())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}
	cancel()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Telemetry Shutdown Failed", "error", err)
	}

	log.Println("Server exiting")
}
