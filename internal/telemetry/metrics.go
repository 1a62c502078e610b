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

package telemetry

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "media_pipeline"

// Metrics are the Prometheus collectors scraped from /metrics.
type Metrics struct {
	JobsStarted    *prometheus.CounterVec
	JobsFinished   *prometheus.CounterVec
	Preemptions    prometheus.Counter
	EngineRuns     *prometheus.CounterVec
	EngineDuration *prometheus.HistogramVec
	Busy           prometheus.Gauge
	gatherer       prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses a fresh registry, which keeps tests independent.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		JobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Jobs that acquired the worker, by kind.",
		}, []string{"kind"}),
		JobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that released the worker, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Preemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preemptions_total",
			Help:      "Jobs force-preempted by a newer request or a reset.",
		}),
		EngineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_invocations_total",
			Help:      "External engine invocations by binary and outcome.",
		}, []string{"binary", "outcome"}),
		EngineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_duration_seconds",
			Help:      "Wall time of external engine invocations.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"binary"}),
		Busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Chain runs in flight, including preempted ones still tearing down.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.JobsStarted, m.JobsFinished, m.Preemptions, m.EngineRuns, m.EngineDuration, m.Busy)
	return m
}

// JobStarted records a job acquiring the worker.
func (m *Metrics) JobStarted(kind string) {
	m.JobsStarted.WithLabelValues(kind).Inc()
	m.Busy.Inc()
}

// JobFinished records a job releasing the worker. outcome is "completed" or
// the error kind.
func (m *Metrics) JobFinished(kind string, err error) {
	outcome := "completed"
	if pe := model.AsPipelineError(err); pe != nil {
		outcome = string(pe.Kind)
	}
	m.JobsFinished.WithLabelValues(kind, outcome).Inc()
	m.Busy.Dec()
}

// Preempted is installed as the registry's preemption hook.
func (m *Metrics) Preempted(_ model.Job) {
	m.Preemptions.Inc()
}

// ObserveEngine is installed as the process runner's observer.
func (m *Metrics) ObserveEngine(binary, outcome string, elapsed time.Duration) {
	binary = filepath.Base(binary)
	m.EngineRuns.WithLabelValues(binary, outcome).Inc()
	if elapsed > 0 {
		m.EngineDuration.WithLabelValues(binary).Observe(elapsed.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
