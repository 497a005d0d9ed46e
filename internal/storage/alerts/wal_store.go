// Package alerts persists buy-band alert records. The store keeps an
// in-memory index of the last alert time per band, rebuilt from the WAL on
// open; SaveIfLastBefore runs the dedup check and the insert under one
// lock so concurrent checkers cannot double-alert inside a window.
package alerts

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/mpared/folio/internal/domain"
)

const (
	defaultAlertDir   = "./wal/alerts"
	alertSegmentLimit = 1000
	alertMaxSegments  = 100
	alertKeyPrefix    = "alert_"
)

// WALStore persists band alerts in a WAL.
type WALStore struct {
	wal       *gowal.Wal
	mu        sync.RWMutex
	lastAlert map[string]time.Time
}

// NewWALStore opens the alert WAL and rebuilds the per-band last-alert index.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultAlertDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "alert_",
		SegmentThreshold: alertSegmentLimit,
		MaxSegments:      alertMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init alert WAL")
	}

	store := &WALStore{wal: wal, lastAlert: make(map[string]time.Time)}
	if err := store.rebuildIndex(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *WALStore) rebuildIndex() error {
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, alertKeyPrefix) {
			continue
		}
		var alert domain.BandAlert
		if err := json.Unmarshal(payload, &alert); err != nil {
			return errors.Wrap(err, "decode alert during index rebuild")
		}
		if alert.CreatedAt.After(s.lastAlert[alert.BandID]) {
			s.lastAlert[alert.BandID] = alert.CreatedAt
		}
	}
	return nil
}

// Save writes the alert and advances the band's last-alert time.
func (s *WALStore) Save(alert domain.BandAlert) error {
	if s == nil || s.wal == nil {
		return errors.New("alert store is not initialized")
	}
	if alert.BandID == "" {
		return fmt.Errorf("alert band id is required")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return errors.Wrap(err, "marshal alert")
	}

	key := fmt.Sprintf("%s%s", alertKeyPrefix, alert.BandID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return errors.Wrap(err, "write alert")
	}

	if alert.CreatedAt.After(s.lastAlert[alert.BandID]) {
		s.lastAlert[alert.BandID] = alert.CreatedAt
	}
	return nil
}

// SaveIfLastBefore writes the alert only when the band's last alert is
// strictly before cutoff, or the band never alerted. The dedup check and
// the append share one critical section, so two concurrent callers inside
// the same window produce exactly one record. Returns false when the
// insert was suppressed.
func (s *WALStore) SaveIfLastBefore(alert domain.BandAlert, cutoff time.Time) (bool, error) {
	if s == nil || s.wal == nil {
		return false, errors.New("alert store is not initialized")
	}
	if alert.BandID == "" {
		return false, fmt.Errorf("alert band id is required")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return false, errors.Wrap(err, "marshal alert")
	}

	key := fmt.Sprintf("%s%s", alertKeyPrefix, alert.BandID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastAlert[alert.BandID]; ok && !last.Before(cutoff) {
		return false, nil
	}

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return false, errors.Wrap(err, "write alert")
	}

	if alert.CreatedAt.After(s.lastAlert[alert.BandID]) {
		s.lastAlert[alert.BandID] = alert.CreatedAt
	}
	return true, nil
}

// LastAlertAt returns the creation time of the band's most recent alert,
// false when the band never alerted.
func (s *WALStore) LastAlertAt(bandID string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.lastAlert[bandID]
	return ts, ok
}

// AlertsAfter returns all alerts written after the provided WAL index.
func (s *WALStore) AlertsAfter(index uint64) ([]domain.AlertRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("alert store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.AlertRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, alertKeyPrefix) {
			continue
		}
		var alert domain.BandAlert
		if err := json.Unmarshal(payload, &alert); err != nil {
			return nil, errors.Wrap(err, "decode alert")
		}
		records = append(records, domain.AlertRecord{Index: idx, Alert: alert})
	}

	return records, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("alert store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
