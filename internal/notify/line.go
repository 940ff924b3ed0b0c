package notify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Line pushes a form-encoded message with a bearer token.
type Line struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewLine(endpoint, token string) *Line {
	if endpoint == "" || token == "" {
		return nil
	}
	return &Line{Endpoint: endpoint, Token: token, Client: newHookClient()}
}

func (l *Line) Name() string { return "line" }

func (l *Line) Send(ctx context.Context, title, text string) error {
	if l == nil || l.Token == "" {
		return errors.New("line disabled")
	}
	form := url.Values{"message": {title + "\n" + text}}
	hdr := http.Header{"Authorization": {"Bearer " + l.Token}}
	return post(ctx, l.Client, l.Name(), l.Endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), hdr)
}
