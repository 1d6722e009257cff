package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const maxDownloadBytes = 512 << 20

// Download fetches a job output URL and sniffs its content type.
func Download(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: build download: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("storage: download %s: http %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("storage: read download: %w", err)
	}
	return data, mimetype.Detect(data).String(), nil
}

// NameFor builds a file name for an output: prefix plus the URL's extension,
// or one derived from the sniffed MIME type.
func NameFor(prefix, url, mime string) string {
	ext := path.Ext(strings.SplitN(url, "?", 2)[0])
	if ext == "" || len(ext) > 6 {
		ext = ""
		if m := mimetype.Lookup(mime); m != nil {
			ext = m.Extension()
		}
	}
	return prefix + ext
}
