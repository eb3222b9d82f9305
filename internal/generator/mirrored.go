package generator

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/soundforge/studio/internal/client"
	"github.com/soundforge/studio/internal/model"
	"github.com/soundforge/studio/internal/tracker"
)

// Mirrored copies the audio produced by another generator into object
// storage, so history keeps pointing at audio we host.
type Mirrored struct {
	inner      tracker.Generator
	storage    client.StorageClient
	httpClient *http.Client
}

func NewMirrored(inner tracker.Generator, storage client.StorageClient, httpClient *http.Client) *Mirrored {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Mirrored{inner: inner, storage: storage, httpClient: httpClient}
}

// Estimate defers to the wrapped generator; the upload is not counted.
func (m *Mirrored) Estimate(req model.GenerationRequest) time.Duration {
	if e, ok := m.inner.(tracker.Estimator); ok {
		return e.Estimate(req)
	}
	return 0
}

func (m *Mirrored) Generate(ctx context.Context, jobID string, req model.GenerationRequest, progress func(int)) (string, error) {
	source, err := m.inner.Generate(ctx, jobID, req, progress)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("mirror: failed to create request: %w", err)
	}
	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mirror: failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("mirror: fetch %s returned status %d", source, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	key := AssetKey(jobID, source)

	url, err := m.storage.Upload(ctx, key, resp.Body, contentType)
	if err != nil {
		return "", fmt.Errorf("mirror: %w", err)
	}
	log.Printf("Generation job %s audio mirrored to %s", jobID, key)
	return url, nil
}

// AssetKey is the object key for a job's audio. The extension follows the
// source URL, defaulting to .mp3.
func AssetKey(jobID, source string) string {
	ext := path.Ext(strings.SplitN(source, "?", 2)[0])
	if ext == "" || len(ext) > 5 {
		ext = ".mp3"
	}
	return fmt.Sprintf("assets/%s%s", jobID, ext)
}
