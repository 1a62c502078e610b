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

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file holds the Google Cloud Storage (GCS) pieces of the worker: parsing gs:// source
// references, downloading sources to the scratch directory, and uploading finished artifacts
// with either a public or a V4 signed URL.
//
// Structs:
//   - GCSObject: A parsed bucket/object reference.
//   - Uploader: Uploads final artifacts and returns a URL for them.
//
// Functions:
//   - ParseGCSURI: Splits gs://bucket/object into its parts.
//   - DownloadObject: Copies an object to a local file.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// GCSScheme prefixes Cloud Storage references.
const GCSScheme = "gs://"

// GCSObject is a simplified, internal representation of a Google Cloud Storage (GCS)
// object reference.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "video/mp4"), when known.
}

func (o GCSObject) String() string {
	return GCSScheme + o.Bucket + "/" + o.Name
}

// IsGCSURI reports whether uri names a Cloud Storage object.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, GCSScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (GCSObject, error) {
	if !IsGCSURI(uri) {
		return GCSObject{}, fmt.Errorf("invalid GCS URI format: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, GCSScheme), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return GCSObject{}, fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", uri)
	}
	return GCSObject{Bucket: parts[0], Name: parts[1]}, nil
}

// DownloadObject copies the object to dst.
func DownloadObject(ctx context.Context, client *storage.Client, obj GCSObject, dst string) (err error) {
	reader, err := client.Bucket(obj.Bucket).Object(obj.Name).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", obj, err)
	}
	defer reader.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = io.Copy(out, reader); err != nil {
		return fmt.Errorf("read %s: %w", obj, err)
	}
	return nil
}

// Uploader copies finished artifacts to the output bucket.
type Uploader struct {
	client      *storage.Client
	iam         *credentials.IamCredentialsClient
	config      Storage
	signerEmail string
}

// NewUploader creates an Uploader. iam may be nil when objects are public or
// the storage client can sign with its own key.
func NewUploader(client *storage.Client, iam *credentials.IamCredentialsClient, config Storage, signerEmail string) *Uploader {
	return &Uploader{client: client, iam: iam, config: config, signerEmail: signerEmail}
}

// Enabled reports whether a client and an output bucket are configured.
func (u *Uploader) Enabled() bool {
	return u != nil && u.client != nil && u.config.OutputBucket != ""
}

// ObjectName is the object an artifact is uploaded to.
func (u *Uploader) ObjectName(localPath string) string {
	return path.Join(u.config.UploadPrefix, filepath.Base(localPath))
}

// Upload writes localPath to the output bucket and returns its URL.
//
// Inputs:
//   - ctx: The context for the upload.
//   - localPath: The finished artifact.
//
// Outputs:
//   - string: The public or signed URL of the uploaded object.
//   - error: Any failure. Callers treat it as "no URL".
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if !u.Enabled() {
		return "", errors.New("upload is not configured")
	}
	in, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	name := u.ObjectName(localPath)
	w := u.client.Bucket(u.config.OutputBucket).Object(name).NewWriter(ctx)
	w.ContentType = "video/mp4"
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	slog.InfoContext(ctx, "uploaded artifact", "bucket", u.config.OutputBucket, "object", name)

	if u.config.PublicObjects {
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.config.OutputBucket, name), nil
	}
	return u.SignedURL(ctx, name)
}

// SignedURL creates a V4 GET URL for an object in the output bucket. With an
// IAM client and signer email the signature comes from the IAM Credentials
// API, so no local key is needed.
func (u *Uploader) SignedURL(ctx context.Context, objectName string) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(u.config.SignedURLExpiry()),
	}
	if u.iam != nil && u.signerEmail != "" {
		opts.GoogleAccessID = u.signerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := u.iam.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", u.signerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	url, err := u.client.Bucket(u.config.OutputBucket).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", u.config.OutputBucket, objectName, err)
	}
	return url, nil
}
