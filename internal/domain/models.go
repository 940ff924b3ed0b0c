package domain

import "time"

// Status is the persisted health of the monitored target.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// DefaultStatus is what a target is assumed to be before it was ever evaluated.
const DefaultStatus = StatusUp

func (s Status) Valid() bool {
	return s == StatusUp || s == StatusDown
}

// ProbeResult is the reachability verdict of one probe.
type ProbeResult int

const (
	Reachable ProbeResult = iota
	Unreachable
)

func ProbeResultOf(up bool) ProbeResult {
	if up {
		return Reachable
	}
	return Unreachable
}

func (p ProbeResult) String() string {
	if p == Reachable {
		return "reachable"
	}
	return "unreachable"
}

// Alert is the notification a decision asks for.
type Alert int

const (
	AlertNone Alert = iota
	AlertDown
	AlertRecovered
)

func (a Alert) String() string {
	switch a {
	case AlertDown:
		return "down"
	case AlertRecovered:
		return "recovered"
	default:
		return "none"
	}
}

// Decision is the output of one transition evaluation.
type Decision struct {
	NewStatus     Status
	HistoryNeeded bool
	Alert         Alert
}

func (d Decision) Changed() bool { return d.HistoryNeeded }

// MonitorStatus is the single current-status row of a target.
type MonitorStatus struct {
	ID        uint      `json:"id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusHistoryEntry is one append-only transition record.
type StatusHistoryEntry struct {
	ID        uint      `json:"id"`
	NewStatus Status    `json:"new_status"`
	CreatedAt time.Time `json:"created_at"`
}

// FailureEvent is the legacy outage record. CompletionTime stays 0 while open.
type FailureEvent struct {
	ID             uint   `json:"id"`
	EventTime      int64  `json:"event_time"`
	FailingURL     string `json:"failing_url"`
	CompletionTime int64  `json:"completion_time"`
	Resolved       bool   `json:"resolved"`
}
