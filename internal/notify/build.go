package notify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
)

// Build assembles the channels listed in cfg.NotifyChannels. creds is only
// consulted when the twitter channel is enabled.
func Build(cfg config.Config, creds CredentialSource, log *zap.Logger) (*Multi, error) {
	m := &Multi{Log: log}
	for _, ch := range cfg.NotifyChannels {
		switch ch {
		case "slack":
			s := NewSlack(cfg.SlackWebhookURL)
			if s == nil {
				return nil, fmt.Errorf("slack channel needs SLACK_WEBHOOK_URL")
			}
			m.Notifiers = append(m.Notifiers, s)
		case "twitter":
			t := NewTwitter(cfg.TwitterAPIURL, creds, log)
			if t == nil {
				return nil, fmt.Errorf("twitter channel needs an endpoint and a credential source")
			}
			m.Notifiers = append(m.Notifiers, t)
		case "line":
			l := NewLine(cfg.LineNotifyURL, cfg.LineAccessToken)
			if l == nil {
				return nil, fmt.Errorf("line channel needs LINE_ACCESS_TOKEN")
			}
			m.Notifiers = append(m.Notifiers, l)
		case "none", "":
		default:
			return nil, fmt.Errorf("unknown notify channel %q", ch)
		}
	}
	return m, nil
}
