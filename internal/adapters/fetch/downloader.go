// Package fetch downloads certification listings and documents over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

const (
	DefaultTimeout           = 60 * time.Second
	DefaultRequestsPerSecond = 4.0
	userAgent                = "certmap/1.0 (+https://github.com/lcalzada-xor/certmap)"
)

// HTTPDownloader implements ports.Downloader with a shared rate limit.
type HTTPDownloader struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPDownloader creates a downloader allowing rps requests per second.
// A non-positive rps disables the limit.
func NewHTTPDownloader(rps float64, timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &HTTPDownloader{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Download fetches url into dest. The body is written only for a 200 response,
// through a temporary file renamed into place.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) (int, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return resp.StatusCode, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return resp.StatusCode, err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return resp.StatusCode, fmt.Errorf("read body of %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return resp.StatusCode, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

var _ ports.Downloader = (*HTTPDownloader)(nil)
