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

// Package main contains the logic for setting up and starting the Pub/Sub message listeners.
// Queued pipeline requests run exactly like the ones posted to /process.
package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/commands"
)

// SetupListeners attaches the job trigger to the job request subscription
// and starts it. Subscriptions without a known command are left idle.
func SetupListeners(ctx context.Context, clients *cloud.ServiceClients) {
	for key, listener := range clients.PubSubListeners {
		if key != cloud.JobRequestsSubscription {
			slog.Warn("no command for subscription, not listening", "subscription", key)
			continue
		}
		listener.SetCommand(commands.NewJobTrigger("job-trigger", state.service))
		listener.Listen(ctx)
	}
}
