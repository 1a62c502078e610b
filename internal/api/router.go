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

package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter builds the gin engine serving every route of the worker. Each
// request gets a span and CORS is permissive, since the worker sits behind
// an operator console on another origin.
func NewRouter(service Service, info Info) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware(info.Service))
	r.Use(cors.Default())

	Dashboard(r, service, info)
	JobRouter(r, service)
	return r
}
