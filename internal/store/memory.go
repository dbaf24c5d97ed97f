package store

import (
	"context"
	"sync"
	"time"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

// Memory is an in-process Ledger with the same contract as the durable
// backends. It backs tests and the dry-run `match` command; it is not a
// substitute for durable storage in `monitor` mode.
type Memory struct {
	mu            sync.Mutex
	records       map[string]*model.FingerprintRecord
	runs          []model.CycleStats
	notifications []memoryNotification
}

type memoryNotification struct {
	PostingID      string
	NotificationID string
	Target         string
	SentAt         time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*model.FingerprintRecord)}
}

func (m *Memory) Get(_ context.Context, id string) (*model.FingerprintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) HasSeen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok, nil
}

func (m *Memory) Notified(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return ok && rec.NotifiedAt != nil, nil
}

func (m *Memory) RecordSeen(_ context.Context, id string, firstSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		return nil
	}
	m.records[id] = &model.FingerprintRecord{PostingID: id, FirstSeenAt: firstSeen.UTC()}
	return nil
}

func (m *Memory) RecordNotified(_ context.Context, id string, notifiedAt time.Time, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		rec = &model.FingerprintRecord{PostingID: id, FirstSeenAt: notifiedAt.UTC()}
		m.records[id] = rec
	}
	if rec.NotifiedAt == nil {
		t := notifiedAt.UTC()
		rec.NotifiedAt = &t
	}
	rec.LastScore = &score
	return nil
}

func (m *Memory) RecordNotification(_ context.Context, postingID, notificationID, target string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, memoryNotification{
		PostingID:      postingID,
		NotificationID: notificationID,
		Target:         target,
		SentAt:         sentAt.UTC(),
	})
	return nil
}

func (m *Memory) RecordRun(_ context.Context, stats model.CycleStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, stats)
	return nil
}

func (m *Memory) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var removed int64
	for id, rec := range m.records {
		if rec.FirstSeenAt.Before(cutoff) && rec.NotifiedAt != nil {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of fingerprint records. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
