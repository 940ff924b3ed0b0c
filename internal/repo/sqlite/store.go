// Package sqlite keeps the monitor state in an embedded sqlite file that
// lives as a single object in a BlobStore. Every session downloads the
// whole file, mutates a private working copy and uploads it back on Close.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guregu/null/v5"
	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

const workingFile = "state.sqlite3"

var _ repo.StatusStore = (*Store)(nil)

type Store struct {
	blob      repo.BlobStore
	key       string
	monitorID uint
	log       *zap.Logger
	now       func() time.Time
}

func New(blob repo.BlobStore, key string, monitorID uint, log *zap.Logger) *Store {
	if monitorID == 0 {
		monitorID = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{blob: blob, key: key, monitorID: monitorID, log: log, now: time.Now}
}

// Open fetches the container and returns a session over a local copy.
// A missing object yields a fresh container with the status row set to UP.
func (s *Store) Open(ctx context.Context) (repo.StatusSession, error) {
	return s.load(ctx)
}

// Snapshot reads the container and discards the working copy.
func (s *Store) Snapshot(ctx context.Context) (*repo.Snapshot, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.discard()

	st, err := sess.ReadStatus(ctx)
	if err != nil {
		return nil, err
	}
	hist, err := sess.History(ctx)
	if err != nil {
		return nil, err
	}
	fails, err := sess.failures(ctx)
	if err != nil {
		return nil, err
	}
	return &repo.Snapshot{Status: st, History: hist, Failures: fails}, nil
}

func (s *Store) load(ctx context.Context) (*session, error) {
	dir, err := os.MkdirTemp("", "sitewatch-*")
	if err != nil {
		return nil, fmt.Errorf("%w: working dir: %w", repo.ErrStorageUnavailable, err)
	}
	path := filepath.Join(dir, workingFile)

	body, err := s.blob.Get(ctx, s.key)
	fresh := false
	switch {
	case errors.Is(err, repo.ErrBlobNotFound):
		fresh = true
	case err != nil:
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: fetch %s: %w", repo.ErrStorageUnavailable, s.key, err)
	default:
		if err := os.WriteFile(path, body, 0o600); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("%w: write working copy: %w", repo.ErrStorageUnavailable, err)
		}
	}

	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: open container: %w", repo.ErrIntegrity, err)
	}
	sess := &session{store: s, db: db, dir: dir, path: path}

	if err := db.WithContext(ctx).AutoMigrate(&MonitorStatus{}, &StatusHistory{}, &FailureEvent{}); err != nil {
		sess.discard()
		return nil, fmt.Errorf("%w: migrate container: %w", repo.ErrIntegrity, err)
	}
	if err := sess.ensureRow(ctx); err != nil {
		sess.discard()
		return nil, err
	}

	s.log.Debug("state_fetched",
		zap.String("key", s.key),
		zap.Bool("fresh", fresh),
		zap.Int("bytes", len(body)),
	)
	return sess, nil
}

type session struct {
	store  *Store
	db     *gorm.DB
	dir    string
	path   string
	closed bool
}

func (s *session) ensureRow(ctx context.Context) error {
	row := MonitorStatus{ID: s.store.monitorID, Status: string(domain.DefaultStatus), UpdatedAt: s.store.now().UTC()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("%w: ensure status row: %w", repo.ErrIntegrity, res.Error)
	}
	return nil
}

func (s *session) ReadStatus(ctx context.Context) (domain.MonitorStatus, error) {
	var row MonitorStatus
	err := s.db.WithContext(ctx).Take(&row, "id = ?", s.store.monitorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.ensureRow(ctx); err != nil {
			return domain.MonitorStatus{}, err
		}
		err = s.db.WithContext(ctx).Take(&row, "id = ?", s.store.monitorID).Error
	}
	if err != nil {
		return domain.MonitorStatus{}, fmt.Errorf("read status: %w", err)
	}
	return row.toDomain(), nil
}

func (s *session) WriteStatus(ctx context.Context, status domain.Status, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&MonitorStatus{}).
		Where("id = ?", s.store.monitorID).
		Updates(map[string]any{"status": string(status), "updated_at": at.UTC()})
	if res.Error != nil {
		return fmt.Errorf("write status: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%w: status update affected %d rows", repo.ErrIntegrity, res.RowsAffected)
	}
	return nil
}

func (s *session) AppendHistory(ctx context.Context, status domain.Status, at time.Time) error {
	res := s.db.WithContext(ctx).Create(&StatusHistory{NewStatus: string(status), CreatedAt: at.UTC()})
	if res.Error != nil {
		return fmt.Errorf("append history: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%w: history insert affected %d rows", repo.ErrIntegrity, res.RowsAffected)
	}
	return nil
}

func (s *session) OpenFailure(ctx context.Context, failingURL string, at time.Time) error {
	res := s.db.WithContext(ctx).Create(&FailureEvent{EventTime: at.Unix(), FailingURL: failingURL})
	if res.Error != nil {
		return fmt.Errorf("open failure event: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%w: failure event insert affected %d rows", repo.ErrIntegrity, res.RowsAffected)
	}
	return nil
}

func (s *session) ResolveFailure(ctx context.Context, at time.Time) error {
	var ev FailureEvent
	err := s.db.WithContext(ctx).Where("resolved = ?", false).Order("id DESC").Take(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find open failure event: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&FailureEvent{}).
		Where("id = ?", ev.ID).
		Updates(map[string]any{"completion_time": null.IntFrom(at.Unix()), "resolved": true})
	if res.Error != nil {
		return fmt.Errorf("resolve failure event: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%w: failure event update affected %d rows", repo.ErrIntegrity, res.RowsAffected)
	}
	return nil
}

func (s *session) History(ctx context.Context) ([]domain.StatusHistoryEntry, error) {
	var rows []StatusHistory
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]domain.StatusHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *session) failures(ctx context.Context) ([]domain.FailureEvent, error) {
	var rows []FailureEvent
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list failure events: %w", err)
	}
	out := make([]domain.FailureEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Close flushes the working copy and uploads it whole. The working
// directory is removed on every path. Calling Close twice is a no-op.
func (s *session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer os.RemoveAll(s.dir)

	if err := closeDB(s.db); err != nil {
		return fmt.Errorf("%w: close container: %w", repo.ErrIntegrity, err)
	}
	body, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: read working copy: %w", repo.ErrStorageUnavailable, err)
	}
	if err := s.store.blob.Put(ctx, s.store.key, body); err != nil {
		s.store.log.Error("state_upload_failed", zap.String("key", s.store.key), zap.Error(err))
		return fmt.Errorf("%w: upload %s: %w", repo.ErrStorageUnavailable, s.store.key, err)
	}
	s.store.log.Debug("state_uploaded", zap.String("key", s.store.key), zap.Int("bytes", len(body)))
	return nil
}

// discard drops the working copy without uploading it.
func (s *session) discard() {
	if s.closed {
		return
	}
	s.closed = true
	_ = closeDB(s.db)
	_ = os.RemoveAll(s.dir)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
