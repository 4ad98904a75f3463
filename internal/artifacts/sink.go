// Package artifacts stores generated images and reports outside the
// request, on local disk or in an S3-compatible bucket.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/priyansh1913/open-deep-research-web/internal/config"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("artifact not found")

// Sink stores artifacts by key. Put returns a location string (a file path
// or s3:// URL) for display and history.
type Sink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// ImageKey is the key for a generated image.
func ImageKey(id string) string {
	return path.Join("images", id+".png")
}

// ReportKey is the key for a research report.
func ReportKey(id string) string {
	return path.Join("reports", id+".md")
}

// cleanKey rejects keys that could escape the sink root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(key))[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return cleaned, nil
}

// FromConfig builds the configured sink, or returns nil when artifacts are disabled.
func FromConfig(ctx context.Context, cfg config.ArtifactsConfig) (Sink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Kind {
	case "local":
		return NewLocalSink(cfg.Dir)
	case "s3":
		return NewS3SinkFromConfig(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("unknown artifacts kind %q", cfg.Kind)
}
