package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/secrets"
)

const twitterAttempts = 3

// CredentialSource yields the posting account's OAuth1 tokens.
type CredentialSource interface {
	TwitterCredentials(ctx context.Context) (secrets.TwitterCredentials, error)
}

// Twitter posts a status update. A post is tried up to three times; after
// that the failure is logged and Send returns nil so alerting never blocks
// the cycle. Credentials are fetched on first use and cached.
type Twitter struct {
	Endpoint   string
	Creds      CredentialSource
	RetryDelay time.Duration
	Log        *zap.Logger

	// Base is the transport under the signer; nil means http.DefaultClient.
	Base *http.Client

	mu     sync.Mutex
	client *http.Client
}

func NewTwitter(endpoint string, creds CredentialSource, log *zap.Logger) *Twitter {
	if endpoint == "" || creds == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Twitter{Endpoint: endpoint, Creds: creds, RetryDelay: time.Second, Log: log}
}

type tweetPayload struct {
	Text string `json:"text"`
}

func (t *Twitter) Name() string { return "twitter" }

func (t *Twitter) Send(ctx context.Context, title, text string) error {
	if t == nil || t.Creds == nil {
		return errors.New("twitter disabled")
	}
	client, err := t.httpClient(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= twitterAttempts; attempt++ {
		if lastErr = t.post(ctx, client, text); lastErr == nil {
			return nil
		}
		t.Log.Warn("twitter_post_failed", zap.Int("attempt", attempt), zap.Error(lastErr))
		if attempt == twitterAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.RetryDelay):
		}
	}
	t.Log.Error("twitter_give_up", zap.Int("attempts", twitterAttempts), zap.Error(lastErr))
	return nil
}

func (t *Twitter) post(ctx context.Context, client *http.Client, text string) error {
	body, _ := json.Marshal(tweetPayload{Text: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twitter non-2xx: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func (t *Twitter) httpClient(ctx context.Context) (*http.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	c, err := t.Creds.TwitterCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("twitter credentials: %w", err)
	}
	base := t.Base
	if base == nil {
		base = &http.Client{Timeout: 10 * time.Second}
	}
	// the signer picks its base client out of the context
	signCtx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	t.client = oauth1.NewConfig(c.ConsumerKey, c.ConsumerSecret).
		Client(signCtx, oauth1.NewToken(c.AccessToken, c.AccessSecret))
	return t.client, nil
}
