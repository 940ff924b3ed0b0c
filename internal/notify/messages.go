package notify

import (
	"fmt"
	"strings"
	"time"
)

const (
	TitleDown      = "Site down"
	TitleRecovered = "Site recovered"
)

const stampLayout = "2006-01-02T15:04:05"

func DownMessage(target string, at time.Time, mention string) string {
	msg := fmt.Sprintf("[%s] %s is down now. Please reboot the server!", at.UTC().Format(stampLayout), target)
	if m := strings.TrimSpace(mention); m != "" {
		msg += " " + m
	}
	return msg
}

func RecoveryMessage(target string, at time.Time) string {
	return fmt.Sprintf("[%s] %s is back to normal.", at.UTC().Format(stampLayout), target)
}
