// Package blocklist retrieves raw blocklist text from HTTP endpoints and
// local files. It deals only in trimmed lines of text; parsing and
// validation happen downstream.
package blocklist

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"grimm.is/nftblockd/internal/errdefs"
)

// DefaultTimeout bounds a single fetch, connection and body included.
const DefaultTimeout = 30 * time.Second

// Fetcher downloads blocklists over HTTP(S).
type Fetcher struct {
	client  *http.Client
	headers map[string]string
}

// NewFetcher creates a Fetcher. Zero timeout means DefaultTimeout; headers
// are added to every request.
func NewFetcher(timeout time.Duration, headers map[string]string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// Fetch retrieves the endpoint body and returns its non-empty lines,
// trimmed, with blank lines and #-comments dropped. An empty body is a
// valid "no entries" response and yields (nil, nil); the caller decides
// whether that deserves a warning. Network failures and non-2xx statuses
// are errdefs.ErrRequest.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrRequest, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", errdefs.ErrRequest, resp.StatusCode, url)
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading body from %s: %v", errdefs.ErrRequest, url, err)
	}
	return lines, nil
}

// ReadFile reads an administrator-supplied blocklist file. Failures are
// errdefs.ErrFile carrying the path.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrFile, err)
	}
	return string(data), nil
}
