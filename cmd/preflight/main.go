// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/sitewatch/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		fail(err.Error())
		os.Exit(1)
	}

	failed := false
	for _, e := range multierr.Errors(cfg.Validate()) {
		fail(e.Error())
		failed = true
	}

	ok("MONITOR_URL=" + cfg.MonitorURL)
	ok("STATE_BACKEND=" + cfg.StateBackend)
	switch cfg.StateBackend {
	case config.BackendS3:
		ok(fmt.Sprintf("state object s3://%s/%s (%s)", cfg.StateBucket, cfg.StateKey, cfg.AWSRegion))
	case config.BackendLocalFS:
		ok("state file " + cfg.StateDir + "/" + cfg.StateKey)
	case config.BackendMemory:
		warn("STATE_BACKEND=memory: state is lost when the process exits.")
	}
	ok("NOTIFY_CHANNELS=" + strings.Join(cfg.NotifyChannels, ","))
	ok("FAILURE_EVENTS=" + cfg.FailureEvents)

	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL_MS is 0: cycles only run when POST /api/check is called.")
	} else {
		ok("CHECK_INTERVAL_MS=" + cfg.CheckInterval.String())
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty: anyone can trigger POST /api/check.")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty: read routes accept any request unless admin keys are set.")
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if len(k) < 16 {
				warn(name + " has a key shorter than 16 characters.")
				break
			}
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty: CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
