// Package media fetches remote media referenced by inbound payloads and
// persists the bytes to local storage.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const filePrefix = "gupshup_"

// extension lookup by declared content type; anything else falls back to a
// generic binary extension.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/ogg":       ".ogg",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"application/pdf": ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/plain": ".txt",
}

const fallbackExtension = ".bin"

// Download is one fetched media object, named and typed but not yet persisted.
type Download struct {
	Filename string
	MimeType string
	Data     []byte
}

// Downloader fetches media over HTTP with a bounded timeout. It never
// retries; the dispatcher owns the success/failure branch.
type Downloader struct {
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewDownloader builds a downloader. A nil httpClient gets a 30s-timeout
// default.
func NewDownloader(logger *slog.Logger, httpClient *http.Client) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Downloader{
		httpClient: httpClient,
		logger:     logger.With("component", "media_downloader"),
		now:        time.Now,
	}
}

// Fetch downloads the media at url and derives a locally-unique filename
// from the response's content type and the current time.
func (d *Downloader) Fetch(ctx context.Context, mediaURL string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	filename := fmt.Sprintf("%s%d%s", filePrefix, d.now().UnixMilli(), extensionFor(contentType))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	d.logger.InfoContext(ctx, "media downloaded",
		"filename", filename, "mime_type", contentType, "bytes", len(data))
	return &Download{Filename: filename, MimeType: contentType, Data: data}, nil
}

func extensionFor(contentType string) string {
	// Declared types may carry parameters, e.g. "audio/ogg; codecs=opus".
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if ext, ok := mimeExtensions[contentType]; ok {
		return ext
	}
	return fallbackExtension
}
