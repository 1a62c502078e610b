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

// Package cloud provides components for interacting with Google Cloud services.
// This file initializes and holds all the client objects used to communicate
// with Google Cloud. It acts as a dependency injection container, creating a
// single, shared `ServiceClients` struct that is passed to the workflows.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the loaded Config.
//  2. Without a project id the worker runs locally and every client is left nil;
//     downloads from gs://, uploads, persistence and the Pub/Sub trigger are then disabled.
//  3. Otherwise it initializes clients for Storage, IAM Credentials, Pub/Sub, GenAI and BigQuery.
//  4. It reads the configuration to create Pub/Sub listeners and quota-aware agent models,
//     storing them in maps keyed by their logical names.
//
// Structs:
//   - ServiceClients: A container struct holding all initialized Google Cloud service clients.
//
// Functions:
//   - Close: Shuts down every client that was created.
//   - NewCloudServiceClients: Creates and configures the clients from the configuration.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// ServiceClients is the central container for the clients of external
// Google Cloud services. Any field may be nil when running locally.
type ServiceClients struct {
	StorageClient   *storage.Client                         // Client for Google Cloud Storage (GCS).
	PubsubClient    *pubsub.Client                          // Client for Google Cloud Pub/Sub.
	GenAIClient     *genai.Client                           // Client for Vertex AI generative models.
	BiqQueryClient  *bigquery.Client                        // Client for Google Cloud BigQuery.
	IAMClient       *credentials.IamCredentialsClient       // Client for IAM to sign GCS URLs.
	PubSubListeners map[string]*PubSubListener              // Listeners keyed by the logical name from the config.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Rate-limited models keyed by the logical name from the config.
}

// Close shuts down every client that was created.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BiqQueryClient != nil {
		_ = c.BiqQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients initializes all required Google Cloud service
// clients based on the provided configuration.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: The initialized clients; empty when no project is configured.
//   - error: An error if any of the clients fail to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	if config.Application.GoogleProjectId == "" {
		slog.Warn("no google_project_id configured, running without cloud services")
		return cloud, nil
	}

	// Requests are tagged with the application name so they can be told
	// apart in the audit logs of a shared project.
	agent := option.WithUserAgent(config.Application.Name)

	if cloud.StorageClient, err = storage.NewClient(ctx, agent); err != nil {
		return nil, err
	}
	if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx, agent); err != nil {
		cloud.Close()
		return nil, err
	}
	if cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId, agent); err != nil {
		cloud.Close()
		return nil, err
	}
	if cloud.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId, agent); err != nil {
		cloud.Close()
		return nil, err
	}

	slog.Info("creating genai client", "project", config.Application.GoogleProjectId, "location", config.Application.GoogleLocation)
	cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		slog.Error("error creating genai client", "error", err)
		cloud.Close()
		return nil, err
	}

	// The command is attached later, when the workflows are built.
	for subKey, values := range config.TopicSubscriptions {
		listener, err := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
		if err != nil {
			cloud.Close()
			return nil, err
		}
		cloud.PubSubListeners[subKey] = listener
	}

	for amKey, values := range config.AgentModels {
		generationConfig := &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](values.Temperature),
			TopP:             genai.Ptr[float32](values.TopP),
			TopK:             genai.Ptr[float32](values.TopK),
			MaxOutputTokens:  values.MaxTokens,
			SafetySettings:   DefaultSafetySettings,
			ResponseMIMEType: values.OutputFormat,
		}
		if values.SystemInstructions != "" {
			generationConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
		}
		cloud.AgentModels[amKey] = NewQuotaAwareModel(generationConfig, values.Model, cloud.GenAIClient.Models, values.RateLimit)
	}

	return cloud, nil
}
