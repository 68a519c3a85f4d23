package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDownloader_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpeg-bytes")
	}))
	defer server.Close()

	d := NewDownloader(discardLogger(), server.Client())
	d.now = func() time.Time { return time.UnixMilli(1700000000000) }

	dl, err := d.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "gupshup_1700000000000.jpg", dl.Filename)
	assert.Equal(t, "image/jpeg", dl.MimeType)
	assert.Equal(t, []byte("jpeg-bytes"), dl.Data)
}

func TestDownloader_Fetch_ContentTypeWithParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg; codecs=opus")
		fmt.Fprint(w, "opus")
	}))
	defer server.Close()

	d := NewDownloader(discardLogger(), server.Client())
	d.now = func() time.Time { return time.UnixMilli(42) }

	dl, err := d.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "gupshup_42.ogg", dl.Filename)
}

func TestDownloader_Fetch_UnknownTypeFallsBackToBin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-weird")
		fmt.Fprint(w, "???")
	}))
	defer server.Close()

	d := NewDownloader(discardLogger(), server.Client())
	d.now = func() time.Time { return time.UnixMilli(7) }

	dl, err := d.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "gupshup_7.bin", dl.Filename)
}

func TestDownloader_Fetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := NewDownloader(discardLogger(), server.Client())
	_, err := d.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestDownloader_Fetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	d := NewDownloader(discardLogger(), nil)
	_, err := d.Fetch(context.Background(), server.URL)
	require.Error(t, err)
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":      ".jpg",
		"image/png":       ".png",
		"video/mp4":       ".mp4",
		"audio/mpeg":      ".mp3",
		"audio/mp4":       ".m4a",
		"application/pdf": ".pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
		"TEXT/PLAIN":             ".txt",
		"video/ogg; codecs=opus": ".ogg",
		"application/unknown":    ".bin",
		"":                       ".bin",
	}
	for contentType, want := range cases {
		assert.Equal(t, want, extensionFor(contentType), "content type %q", contentType)
	}
}

func TestDiskStore_Save_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")
	store := NewDiskStore(dir, discardLogger())

	path, err := store.Save(context.Background(), "gupshup_1.jpg", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gupshup_1.jpg"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), written)
}
