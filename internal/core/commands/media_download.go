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
// command that brings the source of a job into the scratch directory.
//
// Logic Flow:
//  1. Read the source URI from the context input.
//  2. http(s) sources are remuxed by the engine with a browser user agent,
//     gs:// sources are streamed from Cloud Storage and anything else is
//     treated as a local path and copied.
//  3. The first bytes of the copy are sniffed with `filetype`; a file that is
//     neither video nor audio is rejected before any pass runs.
//  4. The local path is registered as an intermediate file and becomes the
//     output for the next command.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/cloud"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// sniffLength is the number of header bytes filetype needs.
const sniffLength = 262

// MediaDownload fetches the job source to {job}_step0.mp4.
type MediaDownload struct {
	cor.BaseCommand
	transcoder *Transcoder
	client     *storage.Client // May be nil; gs:// sources then fail as unavailable.
	scratch    Scratch
}

// NewMediaDownload is the constructor for MediaDownload.
//
// Inputs:
//   - name: A string name for this command instance.
//   - transcoder: Used to remux http(s) sources.
//   - client: Cloud Storage client for gs:// sources, or nil.
//   - scratch: The shared scratch directory.
func NewMediaDownload(name string, transcoder *Transcoder, client *storage.Client, scratch Scratch) *MediaDownload {
	return &MediaDownload{
		BaseCommand: *cor.NewBaseCommand(name),
		transcoder:  transcoder,
		client:      client,
		scratch:     scratch,
	}
}

// Execute downloads and validates the source.
func (c *MediaDownload) Execute(context cor.Context) {
	uri, _ := context.Get(c.GetInputParam()).(string)
	dst := c.scratch.Path(JobID(context), SuffixSource)
	context.AddTempFile(dst)

	if err := c.fetch(context, uri, dst); err != nil {
		if ctxErr := context.GetContext().Err(); ctxErr != nil {
			c.Fail(context, ctxErr)
			return
		}
		c.Fail(context, model.InputUnavailable(err, "could not fetch %s", uri))
		return
	}
	if err := Sniff(dst); err != nil {
		c.Fail(context, err)
		return
	}

	slog.InfoContext(context.GetContext(), "source ready", "job_id", JobID(context), "source", uri, "path", dst)
	context.Add(model.KeySource, uri)
	c.Succeed(context, dst)
}

func (c *MediaDownload) fetch(context cor.Context, uri, dst string) error {
	ctx := context.GetContext()
	switch {
	case IsRemote(uri):
		return c.transcoder.StreamCopy(ctx, uri, dst, "-user_agent", UserAgent)
	case cloud.IsGCSURI(uri):
		if c.client == nil {
			return fmt.Errorf("no storage client for %s", uri)
		}
		obj, err := cloud.ParseGCSURI(uri)
		if err != nil {
			return err
		}
		return cloud.DownloadObject(ctx, c.client, obj, dst)
	default:
		return CopyFile(uri, dst)
	}
}

// Sniff rejects files that are not video or audio.
func Sniff(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return model.InputUnavailable(err, "source was not written")
	}
	defer f.Close()

	head := make([]byte, sniffLength)
	n, _ := f.Read(head)
	if n == 0 {
		return model.InputUnavailable(nil, "source is empty")
	}
	if !filetype.IsVideo(head[:n]) && !filetype.IsAudio(head[:n]) {
		kind, _ := filetype.Match(head[:n])
		return model.InputUnavailable(nil, "source is not a media file (detected %q)", kind.MIME.Value)
	}
	return nil
}
