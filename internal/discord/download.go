package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const defaultDownloadMaxBytes = 100 * 1024 * 1024

// DownloadTo streams an attachment URL to dstPath. Attachment hosts
// are plain CDNs, so no auth header is sent. The size cap guards
// against a hostile or mislabeled attachment filling the disk.
func (c *Client) DownloadTo(ctx context.Context, rawURL, dstPath string, maxBytes int64) error {
	rawURL = strings.TrimSpace(rawURL)
	dstPath = strings.TrimSpace(dstPath)
	if rawURL == "" {
		return fmt.Errorf("missing download url")
	}
	if dstPath == "" {
		return fmt.Errorf("missing destination path")
	}
	if maxBytes <= 0 {
		maxBytes = defaultDownloadMaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: http %d", rawURL, resp.StatusCode)
	}

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	limited := io.LimitReader(resp.Body, maxBytes+1)
	n, err := io.Copy(f, limited)
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if n > maxBytes {
		_ = os.Remove(dstPath)
		return fmt.Errorf("download %s: exceeds %d bytes", rawURL, maxBytes)
	}
	return nil
}
