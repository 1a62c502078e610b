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

// Package api contains the HTTP routes of the worker. This file defines the
// routes an operator uses to watch and unstick the worker.
//
// Functions:
//   - Dashboard: Registers the health check, the job status read, the reset
//     and, when a handler is given, the Prometheus scrape endpoint.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusOnline is reported by the health check while the server is up.
const StatusOnline = "online"

// Info describes the worker in the health check.
type Info struct {
	Service          string
	TranscriberReady func() bool // May be nil.
	Metrics          http.Handler // May be nil, in which case /metrics is not served.
}

// Dashboard registers the operator routes on r.
//
// The health check and the status read never wait for the running job: both
// only take a snapshot of the job slot.
func Dashboard(r gin.IRouter, service Service, info Info) {
	r.GET("/", func(c *gin.Context) {
		ready := false
		if info.TranscriberReady != nil {
			ready = info.TranscriberReady()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":            StatusOnline,
			"worker_state":      service.Status(),
			"service":           info.Service,
			"transcriber_ready": ready,
		})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, service.Status())
	})

	r.POST("/reset", func(c *gin.Context) {
		killed := service.Reset(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "reset", "executed_kill": killed})
	})

	if info.Metrics != nil {
		r.GET("/metrics", gin.WrapH(info.Metrics))
	}
}
