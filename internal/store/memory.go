package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/buemura/scanward/pkg/types"
)

// Memory is an in-process Store. Records handed out are copies.
type Memory struct {
	mu    sync.RWMutex
	scans map[string]*types.ScanRecord
	vulns map[string][]types.Vulnerability
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		scans: make(map[string]*types.ScanRecord),
		vulns: make(map[string][]types.Vulnerability),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateScan(_ context.Context, draft types.ScanDraft) (*types.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	rec := &types.ScanRecord{
		ID:        newUUID(),
		TargetURL: draft.TargetURL,
		ScanType:  draft.ScanType,
		Status:    types.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.scans[rec.ID] = rec
	return cloneRecord(rec), nil
}

func (m *Memory) UpdateScan(_ context.Context, id string, patch types.ScanPatch) (*types.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scans[id]
	if !ok {
		return nil, notFound(id)
	}
	if rec.Status.Terminal() {
		return nil, terminal(rec)
	}
	rec.Apply(patch)
	rec.UpdatedAt = time.Now().UTC()
	return cloneRecord(rec), nil
}

func (m *Memory) BulkInsertVulnerabilities(_ context.Context, scanID string, vulns []types.Vulnerability) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scans[scanID]; !ok {
		return notFound(scanID)
	}
	now := time.Now().UTC()
	for _, v := range vulns {
		v.ID = newUUID()
		v.ScanID = scanID
		v.CreatedAt = now
		m.vulns[scanID] = append(m.vulns[scanID], v)
	}
	return nil
}

func (m *Memory) DeleteVulnerabilities(_ context.Context, scanID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scans[scanID]; !ok {
		return notFound(scanID)
	}
	delete(m.vulns, scanID)
	return nil
}

func (m *Memory) ReadScan(_ context.Context, id string) (*types.ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.scans[id]
	if !ok {
		return nil, notFound(id)
	}
	return cloneRecord(rec), nil
}

// ListScans returns all scans sorted by CreatedAt descending.
func (m *Memory) ListScans(_ context.Context) ([]*types.ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.ScanRecord, 0, len(m.scans))
	for _, rec := range m.scans {
		result = append(result, cloneRecord(rec))
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result, nil
}

func (m *Memory) ListVulnerabilities(_ context.Context, scanID string) ([]types.Vulnerability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.scans[scanID]; !ok {
		return nil, notFound(scanID)
	}
	out := make([]types.Vulnerability, len(m.vulns[scanID]))
	copy(out, m.vulns[scanID])
	return out, nil
}

func (m *Memory) Close() error { return nil }

// cloneRecord copies rec so callers cannot mutate stored state.
func cloneRecord(rec *types.ScanRecord) *types.ScanRecord {
	out := *rec
	out.ScanDurationSeconds = clonePtr(rec.ScanDurationSeconds)
	out.CompletedAt = clonePtr(rec.CompletedAt)
	out.ReputationVerdict = clonePtr(rec.ReputationVerdict)
	out.ReputationStats = maps.Clone(rec.ReputationStats)
	out.ReputationMaliciousCount = clonePtr(rec.ReputationMaliciousCount)
	out.ReputationLastAnalysisDate = clonePtr(rec.ReputationLastAnalysisDate)
	out.ReputationPermalink = clonePtr(rec.ReputationPermalink)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
