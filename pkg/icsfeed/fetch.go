package icsfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBytes caps how much of an upstream feed we are willing to read.
const maxFeedBytes = 10 << 20 // 10 MiB

// Fetcher downloads upstream ICS feeds with a bounded timeout and an
// SSRF guard applied to the initial URL and every redirect target.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				// Redirect targets go through the same allowlist as the
				// original URL.
				return CheckFeedURL(req.URL.String())
			},
		},
	}
}

// Fetch returns the raw ICS payload for the given feed URL.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	if err := CheckFeedURL(feedURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "famcal-feed-sync/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("feed read failed: %w", err)
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("feed exceeds %d byte limit", maxFeedBytes)
	}

	return body, nil
}
