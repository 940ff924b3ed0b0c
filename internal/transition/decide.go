// Package transition turns a probe result into a persisted status change
// and, on a change, a single alert.
package transition

import "github.com/hamed0406/sitewatch/internal/domain"

// Decide maps the persisted status and a probe result to the next status.
// An empty or unknown current status counts as UP.
//
//	UP   + reachable   -> UP,   no history, no alert
//	UP   + unreachable -> DOWN, history,    down alert
//	DOWN + reachable   -> UP,   history,    recovered alert
//	DOWN + unreachable -> DOWN, no history, no alert
func Decide(current domain.Status, probe domain.ProbeResult) domain.Decision {
	if current != domain.StatusDown {
		current = domain.StatusUp
	}
	switch {
	case current == domain.StatusUp && probe == domain.Unreachable:
		return domain.Decision{NewStatus: domain.StatusDown, HistoryNeeded: true, Alert: domain.AlertDown}
	case current == domain.StatusDown && probe == domain.Reachable:
		return domain.Decision{NewStatus: domain.StatusUp, HistoryNeeded: true, Alert: domain.AlertRecovered}
	default:
		return domain.Decision{NewStatus: current, Alert: domain.AlertNone}
	}
}
