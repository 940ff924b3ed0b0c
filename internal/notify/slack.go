package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Slack posts to an incoming webhook. One attempt; failures go back to the caller.
type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{Webhook: webhook, Client: newHookClient()}
}

// Webhooks accept the whole alert as one mrkdwn text field.
type slackPayload struct {
	Text string `json:"text"`
}

func slackText(title, text string) string { return "*" + title + "*\n" + text }

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, err := json.Marshal(slackPayload{Text: slackText(title, text)})
	if err != nil {
		return err
	}
	return post(ctx, s.Client, s.Name(), s.Webhook, "application/json", bytes.NewReader(body), nil)
}
