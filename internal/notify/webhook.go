package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	webhookTimeout = 10 * time.Second
	maxErrBody     = 512
)

func newHookClient() *http.Client { return &http.Client{Timeout: webhookTimeout} }

// post sends one request and maps any non-2xx reply to an error carrying
// the channel name, the status code and the start of the response body.
func post(ctx context.Context, c *http.Client, channel, endpoint, contentType string, body io.Reader, hdr http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%s post: %w", channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		if len(snippet) > 0 {
			return fmt.Errorf("%s non-2xx: %d: %s", channel, resp.StatusCode, snippet)
		}
		return fmt.Errorf("%s non-2xx: %d", channel, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrBody))
	return nil
}
