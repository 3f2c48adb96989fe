package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// maxResponseSize bounds how much of a response body is kept as job output.
const maxResponseSize = 1 << 20

// endpointRequest is the JSON body posted for every item.
type endpointRequest struct {
	Input string `json:"input"`
	Index int    `json:"index"`
}

// endpointClient posts items to a processing endpoint.
type endpointClient struct {
	url    string
	client *http.Client
}

func newEndpointClient(url string, client *http.Client) *endpointClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &endpointClient{url: url, client: client}
}

// Process posts one item and returns the response body.
// 429 and 5xx responses may be retried; other 4xx responses are final.
func (c *endpointClient) Process(ctx context.Context, item string, index int) (string, error) {
	body, err := json.Marshal(endpointRequest{Input: item, Index: index})
	if err != nil {
		return "", core.NoRetry(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", core.NoRetry(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	text := strings.TrimSpace(string(data))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return text, nil
	}

	statusErr := fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, text)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return "", core.RetryAfter(d, statusErr)
		}
		return "", statusErr
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= 500:
		return "", statusErr
	default:
		return "", core.NoRetry(statusErr)
	}
}

func retryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(header); err == nil {
		return max(time.Until(t), 0), true
	}
	return 0, false
}
