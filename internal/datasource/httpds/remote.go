package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Remote is a bundle served at a URL.
type Remote struct {
	client *Client
	url    string
}

// NewRemote returns a Source that downloads url with c.
func NewRemote(c *Client, url string) *Remote { return &Remote{client: c, url: url} }

// Open starts the download. Any status other than 200 is an error.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url, http.Header{"Accept": {"application/zip, application/octet-stream"}})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", r.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download %s: unexpected status %s", r.url, resp.Status)
	}
	r.client.logger.Debug("download started",
		zap.String("url", r.url),
		zap.Int64("content_length", resp.ContentLength),
	)
	return resp.Body, nil
}
