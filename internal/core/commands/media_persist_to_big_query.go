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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that records clip suggestions in BigQuery.
//
// Logic Flow:
//  1. The analysis result is read from the context.
//  2. Every scored scene becomes a model.ClipRecord stamped with the job id,
//     the source URL and the time of the insert.
//  3. The rows are streamed with the table's Inserter. The BigQuery client
//     maps struct fields to columns through the `bigquery` struct tags.
//  4. The rows are a side record of the analysis. A failed insert is logged
//     and counted, and the caller still receives its suggestions.
package commands

import (
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// ClipPersist streams clip suggestions to a BigQuery table. It reads the
// *model.AnalysisResult under model.KeyAnalysis and the source under
// model.KeySource, and writes one model.ClipRecord per scored scene. A failed insert is
// logged and never fails the job.
type ClipPersist struct {
	cor.BaseCommand
	client  *bigquery.Client
	dataset string // Dataset holding the clip table.
	table   string
}

// NewClipPersist creates the command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - client: The BigQuery client. A nil client disables the command.
//   - dataset, table: Where the clip records are inserted.
func NewClipPersist(name string, client *bigquery.Client, dataset string, table string) *ClipPersist {
	return &ClipPersist{BaseCommand: *cor.NewBaseCommand(name), client: client, dataset: dataset, table: table}
}

func (s *ClipPersist) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		s.client != nil && s.dataset != "" && s.table != "" &&
		context.Get(model.KeyAnalysis) != nil
}

func (s *ClipPersist) Execute(context cor.Context) {
	result := context.Get(model.KeyAnalysis).(*model.AnalysisResult)
	source, _ := context.Get(model.KeySource).(string)
	rows := ClipRecords(result, source, time.Now())
	if len(rows) == 0 {
		return
	}

	i := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := i.Put(context.GetContext(), rows); err != nil {
		slog.ErrorContext(context.GetContext(), "failed to persist clip suggestions", "job_id", result.JobID, "rows", len(rows), "error", err)
		s.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	slog.InfoContext(context.GetContext(), "persisted clip suggestions", "job_id", result.JobID, "rows", len(rows))
	s.Succeed(context, nil)
}

// ClipRecords converts every scored scene of result into a row.
func ClipRecords(result *model.AnalysisResult, source string, now time.Time) []*model.ClipRecord {
	rows := make([]*model.ClipRecord, 0, len(result.Scenes))
	for _, scene := range result.Scenes {
		rows = append(rows, &model.ClipRecord{
			JobID:         result.JobID,
			SourceURL:     source,
			CreateDate:    now,
			CandidateClip: scene,
		})
	}
	return rows
}
