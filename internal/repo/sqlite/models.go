package sqlite

import (
	"time"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// MonitorStatus is the singleton current-status row.
type MonitorStatus struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false"`
	Status    string    `gorm:"type:varchar(8);not null;default:UP"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName overrides the table name
func (MonitorStatus) TableName() string { return "monitor_status" }

// StatusHistory rows are only ever inserted.
type StatusHistory struct {
	ID        uint      `gorm:"primaryKey"`
	NewStatus string    `gorm:"type:varchar(8);not null"`
	CreatedAt time.Time `gorm:"not null;index;autoCreateTime:false"`
}

func (StatusHistory) TableName() string { return "status_history" }

// FailureEvent times are unix seconds. CompletionTime is NULL while open.
type FailureEvent struct {
	ID             uint     `gorm:"primaryKey"`
	EventTime      int64    `gorm:"not null;index"`
	FailingURL     string   `gorm:"type:text;not null"`
	CompletionTime null.Int `gorm:"type:integer"`
	Resolved       bool     `gorm:"not null;default:false"`
}

func (FailureEvent) TableName() string { return "failure_events" }

func (m MonitorStatus) toDomain() domain.MonitorStatus {
	return domain.MonitorStatus{ID: m.ID, Status: domain.Status(m.Status), UpdatedAt: m.UpdatedAt.UTC()}
}

func (h StatusHistory) toDomain() domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{ID: h.ID, NewStatus: domain.Status(h.NewStatus), CreatedAt: h.CreatedAt.UTC()}
}

func (f FailureEvent) toDomain() domain.FailureEvent {
	return domain.FailureEvent{
		ID:             f.ID,
		EventTime:      f.EventTime,
		FailingURL:     f.FailingURL,
		CompletionTime: f.CompletionTime.Int64,
		Resolved:       f.Resolved,
	}
}
