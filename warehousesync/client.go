package warehousesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrFeedUnavailable covers transport failures, timeouts and non-2xx
	// responses from the warehouse feed.
	ErrFeedUnavailable = errors.New("warehouse feed unavailable")
	// ErrFeedMalformed covers responses whose envelope lacks the success
	// flag or the data array.
	ErrFeedMalformed = errors.New("warehouse feed malformed")
)

type feedClient struct {
	url       string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func newFeedClient() (*feedClient, error) {
	feedURL := strings.TrimSpace(os.Getenv("WAREHOUSE_FEED_URL"))
	if feedURL == "" {
		return nil, errors.New("WAREHOUSE_FEED_URL is required")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("WAREHOUSE_FEED_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	timeoutSeconds := 30
	if v := strings.TrimSpace(os.Getenv("WAREHOUSE_FEED_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}

	return &feedClient{
		url:       feedURL,
		apiKey:    strings.TrimSpace(os.Getenv("WAREHOUSE_FEED_API_KEY")),
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}, nil
}

// fetchSnapshot performs the single feed fetch of a run and builds the lookup
// indexes. This is the only network suspension point that can abort a run.
func (c *feedClient) fetchSnapshot(ctx context.Context) (*FeedIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrFeedUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope feedEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedMalformed, err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("%w: success flag not set", ErrFeedMalformed)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: data array missing", ErrFeedMalformed)
	}

	return buildFeedIndex(envelope.Data), nil
}
