// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main contains the setup and initialization logic for the application's state.
// This file is responsible for creating and managing a centralized state manager
// that holds all shared dependencies: the configuration, the Google Cloud
// clients, the job slot and the job service every route calls.
//
// Functions:
//   - SetupOS: Configures the environment variables the configuration loader reads.
//   - GetConfig: Loads the configuration from TOML files exactly once.
//   - InitState: Creates the clients, the process runner, the workflow
//     dependencies and the job service.
package main

import (
	"context"
	"log"
	"os"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/jobs"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/process"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/services"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/workflow"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/telemetry"
)

// StateManager holds all the shared dependencies for the application.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients
	registry *jobs.Registry
	metrics  *telemetry.Metrics
	deps     *workflow.Dependencies
	service  *services.JobService
}

// state is a package-level variable that holds the single instance of StateManager.
var state = &StateManager{}

// SetupOS points the configuration loader at the configs directory. The
// runtime defaults to "local" unless the environment already names one.
func SetupOS() (err error) {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	return nil
}

// GetConfig provides a singleton instance of the application configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config, "local"); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState initializes the entire application state.
//
// This function performs the following steps:
//  1. Initializes the Google Cloud clients; without a project they stay nil
//     and the worker runs on local files only.
//  2. Creates the job slot and wires its preemptions into the metrics.
//  3. Creates the process runner that tracks every engine in the job slot,
//     so a preemption reaches the running process.
//  4. Builds the workflow dependencies and the job service.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	state.metrics = telemetry.NewMetrics(nil)
	state.registry = jobs.NewRegistry()
	state.registry.OnPreempt(state.metrics.Preempted)

	runner := process.NewRunner(state.registry,
		process.WithGracePeriod(config.Engines.GracePeriod()),
		process.WithObserver(state.metrics.ObserveEngine),
	)

	state.deps, err = workflow.NewDependencies(config, cloudClients, runner)
	if err != nil {
		cloudClients.Close()
		return err
	}
	state.service = services.NewJobService(state.deps, state.registry, state.metrics)
	return nil
}
