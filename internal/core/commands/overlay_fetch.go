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
// commands that prepare overlays for a clip render.
//
// Logic Flow:
//  1. `AutoCaption` transcribes the trimmed clip and appends one text
//     overlay per usable segment. A failure only loses the captions.
//  2. `OverlayFetch` resolves every image and video overlay to a local file,
//     using a bounded pool of workers. Each fetch runs under its own span.
//  3. Video sources are remuxed by the engine and a failure is fatal. Image
//     sources are fetched over HTTP and a failure drops just that overlay.
//  4. The resolved layers keep the caller's order and are stored under
//     model.KeyLayers for the effects pass.
package commands

import (
	goctx "context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/analysis"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/filtergraph"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/subtitles"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// AutoCaption appends caption overlays synthesized from the transcript of
// the chain input to model.KeyOverlays.
type AutoCaption struct {
	cor.BaseCommand
	transcriber analysis.Transcriber
	when        Predicate // Runs the command only when it holds.
}

// NewAutoCaption creates the command. It runs only when when holds.
func NewAutoCaption(name string, transcriber analysis.Transcriber, when Predicate) *AutoCaption {
	return &AutoCaption{BaseCommand: *cor.NewBaseCommand(name), transcriber: transcriber, when: when}
}

func (c *AutoCaption) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && c.transcriber != nil && c.when(context)
}

func (c *AutoCaption) Execute(context cor.Context) {
	ctx := context.GetContext()
	segments, err := c.transcriber.Transcribe(ctx, InputPath(context), false)
	if err != nil {
		if ctx.Err() != nil {
			c.Fail(context, ctx.Err())
			return
		}
		slog.ErrorContext(ctx, "auto-caption generation failed, continuing without captions", "job_id", JobID(context), "error", err)
		c.GetErrorCounter().Add(ctx, 1)
		return
	}
	overlays, _ := context.Get(model.KeyOverlays).([]model.Overlay)
	captions := subtitles.CaptionOverlays(segments)
	for i := range captions {
		captions[i].ID = fmt.Sprintf("auto_%d", i)
	}
	context.Add(model.KeyOverlays, append(append([]model.Overlay{}, overlays...), captions...))
	slog.InfoContext(ctx, "auto-captions added", "job_id", JobID(context), "captions", len(captions))
	c.Succeed(context, nil)
}

// OverlayFetch resolves overlay sources to local files. Every overlay under
// model.KeyOverlays becomes a filtergraph.Layer under model.KeyLayers; text
// overlays carry no file. A video overlay that cannot be fetched fails the
// job, an image overlay is only logged.
type OverlayFetch struct {
	cor.BaseCommand
	transcoder *Transcoder     // Remuxes remote video overlays.
	storage    *storage.Client // gs:// overlays; may be nil.
	http       *http.Client    // http(s) images.
	scratch    Scratch
	workers    int // Size of the fetch pool.
}

// NewOverlayFetch creates the command with a pool of workers fetching in
// parallel.
//
// Inputs:
//   - name: A string name for this command instance.
//   - transcoder: Used for remote video overlays.
//   - storage: The Cloud Storage client for gs:// overlays, or nil.
//   - scratch: Where fetched overlays are written.
//   - workers: The size of the fetch pool; values below 1 mean one worker.
//
// Outputs:
//   - *OverlayFetch: A pointer to the newly instantiated command.
func NewOverlayFetch(name string, transcoder *Transcoder, storage *storage.Client, scratch Scratch, workers int) *OverlayFetch {
	if workers <= 0 {
		workers = 1
	}
	return &OverlayFetch{
		BaseCommand: *cor.NewBaseCommand(name),
		transcoder:  transcoder,
		storage:     storage,
		http:        &http.Client{Timeout: 60 * time.Second},
		scratch:     scratch,
		workers:     workers,
	}
}

func (c *OverlayFetch) IsExecutable(context cor.Context) bool {
	overlays, _ := context.Get(model.KeyOverlays).([]model.Overlay)
	return context.GetContext() != nil && len(overlays) > 0
}

func (c *OverlayFetch) Execute(context cor.Context) {
	overlays := context.Get(model.KeyOverlays).([]model.Overlay)
	jobID := JobID(context)
	layers := make([]filtergraph.Layer, len(overlays))

	group, gctx := errgroup.WithContext(context.GetContext())
	group.SetLimit(c.workers)
	for i, o := range overlays {
		layers[i] = filtergraph.Layer{Overlay: o}
		if o.Type == model.OverlayText || strings.TrimSpace(o.Src) == "" {
			continue
		}
		group.Go(func() error {
			sctx, span := c.Tracer.Start(gctx, fmt.Sprintf("%s_overlay_%d", c.GetName(), i))
			defer span.End()
			span.SetAttributes(attribute.Int("sequence", i), attribute.String("type", string(o.Type)))

			local, err := c.fetch(sctx, jobID, i, o)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				if o.Type == model.OverlayVideo {
					return model.InputUnavailable(err, "could not fetch video overlay %s", o.Src)
				}
				slog.ErrorContext(sctx, "failed to download image overlay", "job_id", jobID, "src", o.Src, "error", err)
				return nil
			}
			layers[i].Path = local
			span.SetStatus(codes.Ok, "fetched")
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		c.Fail(context, err)
		return
	}

	for _, l := range layers {
		if l.Path != "" && l.Path != l.Src {
			context.AddTempFile(l.Path)
		}
	}
	context.Add(model.KeyLayers, layers)
	c.Succeed(context, nil)
}

func (c *OverlayFetch) fetch(ctx goctx.Context, jobID string, i int, o model.Overlay) (string, error) {
	if !IsRemote(o.Src) && !cloud.IsGCSURI(o.Src) {
		if _, err := os.Stat(o.Src); err != nil {
			return "", err
		}
		return o.Src, nil
	}

	var dst string
	if o.Type == model.OverlayVideo {
		dst = c.scratch.Path(jobID, fmt.Sprintf("ov_%d.mp4", i))
	} else {
		dst = c.scratch.Path(jobID, fmt.Sprintf("img_%d.%s", i, ImageExtension(o.Src)))
	}

	switch {
	case cloud.IsGCSURI(o.Src):
		if c.storage == nil {
			return "", fmt.Errorf("no storage client for %s", o.Src)
		}
		obj, err := cloud.ParseGCSURI(o.Src)
		if err != nil {
			return "", err
		}
		return dst, cloud.DownloadObject(ctx, c.storage, obj, dst)
	case o.Type == model.OverlayVideo:
		return dst, c.transcoder.StreamCopy(ctx, o.Src, dst)
	default:
		return dst, c.download(ctx, o.Src, dst)
	}
}

func (c *OverlayFetch) download(ctx goctx.Context, src, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", src, resp.Status)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ImageExtension returns the extension of an image URL, ignoring the query
// string. Anything longer than four characters is treated as png.
func ImageExtension(src string) string {
	clean := strings.SplitN(src, "?", 2)[0]
	ext := strings.TrimPrefix(path.Ext(clean), ".")
	if ext == "" || len(ext) > 4 {
		return "png"
	}
	return ext
}
