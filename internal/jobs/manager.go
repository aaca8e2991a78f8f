// Package jobs runs scans in the background and records their lifecycle in
// the store: pending, scanning, then completed or failed.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buemura/scanward/internal/logging"
	"github.com/buemura/scanward/internal/reputation"
	"github.com/buemura/scanward/internal/scanner"
	"github.com/buemura/scanward/internal/store"
	"github.com/buemura/scanward/pkg/types"
	"go.uber.org/zap"
)

// Progress checkpoints persisted during a run.
const (
	ProgressPending  = 0
	ProgressScanning = 10
	ProgressScanned  = 55
	ProgressDone     = 100
)

// ErrScanFinished is returned by Run and Cancel when the scan is already
// completed or failed.
var ErrScanFinished = errors.New("scan already finished")

// now is the run clock. Extracted as a variable for testing.
var now = time.Now

// ScannerClient is the part of scanner.Client the manager drives.
type ScannerClient interface {
	CheckAvailability(ctx context.Context) bool
	Scan(ctx context.Context, target string) ([]types.Vulnerability, error)
}

// ReputationClient is the part of reputation.Client the manager drives.
type ReputationClient interface {
	IsConfigured() bool
	Check(ctx context.Context, target string) reputation.Result
}

// Options tunes a Manager.
type Options struct {
	// MaxConcurrent bounds simultaneous runs. Zero means unbounded.
	MaxConcurrent int
	Logger        *zap.Logger
	Metrics       *Metrics
}

// Manager manages scan lifecycle: create, execute in the background, track
// through the store.
type Manager struct {
	store      store.Store
	scanner    ScannerClient
	reputation ReputationClient
	logger     *zap.Logger
	metrics    *Metrics
	slots      chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager. rep may be nil, in which case the reputation
// phase is always skipped.
func NewManager(st store.Store, sc ScannerClient, rep ReputationClient, opts Options) *Manager {
	m := &Manager{
		store:      st,
		scanner:    sc,
		reputation: rep,
		logger:     logging.OrNop(opts.Logger).With(zap.String("component", "jobs")),
		metrics:    opts.Metrics,
		cancels:    make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrent > 0 {
		m.slots = make(chan struct{}, opts.MaxConcurrent)
	}
	return m
}

// StartScan persists a pending scan and launches its run in the background.
// The returned record is the pending one; callers poll Get for progress.
func (m *Manager) StartScan(ctx context.Context, targetURL, scanType string) (*types.ScanRecord, error) {
	if scanType == "" {
		scanType = types.ScanTypeQuick
	}
	rec, err := m.store.CreateScan(ctx, types.ScanDraft{TargetURL: targetURL, ScanType: scanType})
	if err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[rec.ID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(runCtx, rec.ID)

	m.logger.Info("scan queued",
		zap.String("scan_id", rec.ID),
		zap.String("target", rec.TargetURL),
		zap.String("scan_type", rec.ScanType))
	return rec, nil
}

func (m *Manager) execute(ctx context.Context, id string) {
	defer m.wg.Done()
	defer m.forget(id)

	if !m.acquire(ctx) {
		m.abandon(id, ctx.Err())
		return
	}
	defer m.releaseSlot()

	// Run records its own failures; the error is only interesting to
	// foreground callers.
	_ = m.Run(ctx, id)
}

// Run drives scan id to a terminal state synchronously. It returns nil when
// the scan completed and the failure cause when it failed.
func (m *Manager) Run(ctx context.Context, id string) (err error) {
	persist := context.WithoutCancel(ctx)

	rec, err := m.store.ReadScan(persist, id)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrScanFinished, id, rec.Status)
	}

	log := m.logger.With(zap.String("scan_id", id), zap.String("target", rec.TargetURL))
	started := now()
	m.metrics.runStarted()

	defer func() {
		if r := recover(); r != nil {
			log.Error("scan run panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = m.fail(persist, log, id, started, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := m.update(persist, id, types.ScanPatch{
		Status:   types.Ptr(types.StatusScanning),
		Progress: types.Ptr(ProgressScanning),
	}); err != nil {
		return m.fail(persist, log, id, started, err)
	}
	log.Info("scan started", zap.String("phase", string(types.StatusScanning)))

	if !m.scanner.CheckAvailability(ctx) {
		cause := scanner.ErrScannerUnavailable
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
		return m.fail(persist, log, id, started, cause)
	}

	vulns, err := m.scanner.Scan(ctx, rec.TargetURL)
	if err != nil {
		return m.fail(persist, log, id, started, err)
	}

	if err := m.store.BulkInsertVulnerabilities(persist, id, vulns); err != nil {
		return m.fail(persist, log, id, started, fmt.Errorf("persist vulnerabilities: %w", err))
	}
	counts := types.CountSeverities(vulns)
	if err := m.update(persist, id, types.ScanPatch{Progress: types.Ptr(ProgressScanned)}.WithCounts(counts)); err != nil {
		return m.fail(persist, log, id, started, err)
	}
	log.Info("scanner phase finished",
		zap.String("phase", "findings_persisted"),
		zap.Int("total", counts.Total()),
		zap.Int("critical", counts.Critical),
		zap.Int("high", counts.High))

	patch := types.ScanPatch{}
	if m.reputation != nil && m.reputation.IsConfigured() {
		res := m.checkReputation(ctx, log, rec.TargetURL)
		patch = reputationPatch(res)
		m.metrics.verdict(*patch.ReputationVerdict)
		log.Info("reputation phase finished",
			zap.String("phase", "reputation"),
			zap.String("verdict", string(*patch.ReputationVerdict)))
	} else {
		log.Info("reputation lookup not configured, skipping", zap.String("phase", "reputation"))
	}

	finished := now()
	elapsed := finished.Sub(started)
	patch.Status = types.Ptr(types.StatusCompleted)
	patch.Progress = types.Ptr(ProgressDone)
	patch.CompletedAt = types.Ptr(finished.UTC())
	patch.ScanDurationSeconds = types.Ptr(elapsed.Seconds())
	if err := m.update(persist, id, patch); err != nil {
		log.Error("could not record completion", zap.Error(err))
		return m.fail(persist, log, id, started, err)
	}

	m.metrics.runFinished(types.StatusCompleted, elapsed)
	log.Info("scan completed",
		zap.String("phase", string(types.StatusCompleted)),
		zap.Duration("duration", elapsed))
	return nil
}

// fail moves the scan to its failed terminal state and returns cause.
func (m *Manager) fail(ctx context.Context, log *zap.Logger, id string, started time.Time, cause error) error {
	finished := now()
	elapsed := finished.Sub(started)

	patch := failedPatch(errorMessage(cause), finished)
	patch.ScanDurationSeconds = types.Ptr(elapsed.Seconds())
	switch err := m.markFailed(ctx, id, patch); {
	case errors.Is(err, store.ErrScanTerminal):
		log.Warn("scan reached a terminal state elsewhere", zap.NamedError("cause", cause))
		// Findings this run stored after someone else failed the scan.
		if rec, rerr := m.store.ReadScan(ctx, id); rerr == nil && rec.Status == types.StatusFailed {
			if derr := m.store.DeleteVulnerabilities(ctx, id); derr != nil {
				log.Error("could not discard vulnerabilities", zap.Error(derr))
			}
		}
	case err != nil:
		log.Error("could not record failure", zap.NamedError("cause", cause), zap.Error(err))
	}

	m.metrics.runFinished(types.StatusFailed, elapsed)
	log.Error("scan failed", zap.String("phase", string(types.StatusFailed)), zap.Error(cause))
	return cause
}

// abandon fails a scan that was cancelled before it got a run slot.
func (m *Manager) abandon(id string, cause error) {
	log := m.logger.With(zap.String("scan_id", id))
	if err := m.markFailed(context.Background(), id, failedPatch(errorMessage(cause), now())); err != nil {
		log.Error("could not record cancellation", zap.Error(err))
		return
	}
	log.Info("scan cancelled before start", zap.String("phase", string(types.StatusPending)))
}

func (m *Manager) checkReputation(ctx context.Context, log *zap.Logger, target string) (res reputation.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("reputation lookup panicked", zap.Any("panic", r))
			res = reputation.ErrorResult(fmt.Sprintf("panic: %v", r))
		}
	}()
	return m.reputation.Check(ctx, target)
}

func (m *Manager) update(ctx context.Context, id string, patch types.ScanPatch) error {
	if _, err := m.store.UpdateScan(ctx, id, patch); err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	return nil
}

// markFailed writes a failed patch and drops any findings already stored for
// the scan. A failed scan never carries vulnerabilities.
func (m *Manager) markFailed(ctx context.Context, id string, patch types.ScanPatch) error {
	if err := m.update(ctx, id, patch); err != nil {
		return err
	}
	if err := m.store.DeleteVulnerabilities(ctx, id); err != nil {
		return fmt.Errorf("discard vulnerabilities: %w", err)
	}
	return nil
}

// Cancel stops the run of scan id. A scan with no live run in this process,
// for example one interrupted by a restart, is failed directly.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	rec, err := m.store.ReadScan(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrScanFinished, id, rec.Status)
	}

	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if ok {
		cancel()
		m.logger.Info("scan cancellation requested", zap.String("scan_id", id))
		return nil
	}

	err = m.markFailed(ctx, id, failedPatch("scan cancelled: no active run", now()))
	if errors.Is(err, store.ErrScanTerminal) {
		return fmt.Errorf("%w: %s", ErrScanFinished, id)
	}
	return err
}

// FailInterrupted fails every non-terminal scan that has no live run in this
// process. It returns the number of scans it failed.
func (m *Manager) FailInterrupted(ctx context.Context) (int, error) {
	recs, err := m.store.ListScans(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, rec := range recs {
		if rec.Status.Terminal() || m.running(rec.ID) {
			continue
		}
		err := m.markFailed(ctx, rec.ID, failedPatch("interrupted: service stopped before the scan finished", now()))
		if errors.Is(err, store.ErrScanTerminal) {
			continue
		}
		if err != nil {
			return n, err
		}
		m.logger.Warn("failed interrupted scan", zap.String("scan_id", rec.ID), zap.String("target", rec.TargetURL))
		n++
	}
	return n, nil
}

// Shutdown cancels every live run and waits for them to record their
// terminal state, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every background run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Get returns a scan by ID.
func (m *Manager) Get(ctx context.Context, id string) (*types.ScanRecord, error) {
	return m.store.ReadScan(ctx, id)
}

// List returns all scans sorted by CreatedAt descending.
func (m *Manager) List(ctx context.Context) ([]*types.ScanRecord, error) {
	return m.store.ListScans(ctx)
}

// Vulnerabilities returns the findings persisted for scan id.
func (m *Manager) Vulnerabilities(ctx context.Context, id string) ([]types.Vulnerability, error) {
	return m.store.ListVulnerabilities(ctx, id)
}

// Report bundles a scan with its vulnerabilities.
func (m *Manager) Report(ctx context.Context, id string) (*types.ScanReport, error) {
	rec, err := m.store.ReadScan(ctx, id)
	if err != nil {
		return nil, err
	}
	vulns, err := m.store.ListVulnerabilities(ctx, id)
	if err != nil {
		return nil, err
	}
	return &types.ScanReport{Scan: *rec, Vulnerabilities: vulns}, nil
}

func (m *Manager) acquire(ctx context.Context) bool {
	if m.slots == nil {
		return ctx.Err() == nil
	}
	select {
	case m.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) releaseSlot() {
	if m.slots != nil {
		<-m.slots
	}
}

func (m *Manager) running(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cancels[id]
	return ok
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	delete(m.cancels, id)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

func failedPatch(msg string, at time.Time) types.ScanPatch {
	return types.ScanPatch{
		Status:       types.Ptr(types.StatusFailed),
		Progress:     types.Ptr(ProgressDone),
		ErrorMessage: types.Ptr(msg),
		CompletedAt:  types.Ptr(at.UTC()),
	}
}

func errorMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "scan cancelled: " + err.Error()
	}
	return err.Error()
}

// reputationPatch maps a lookup result onto the reputation fields. Any result
// carrying an error is stored as the error verdict with only the message.
func reputationPatch(res reputation.Result) types.ScanPatch {
	if res.Error != "" || res.Verdict == types.VerdictError {
		msg := res.Error
		if msg == "" {
			msg = "reputation lookup failed"
		}
		return types.ScanPatch{
			ReputationVerdict: types.Ptr(types.VerdictError),
			ReputationStats:   map[string]any{"error": msg},
		}
	}

	p := types.ScanPatch{
		ReputationVerdict:          types.Ptr(res.Verdict),
		ReputationStats:            res.Stats,
		ReputationMaliciousCount:   res.MaliciousCount,
		ReputationLastAnalysisDate: res.LastAnalysisDate,
	}
	if res.Permalink != "" {
		p.ReputationPermalink = types.Ptr(res.Permalink)
	}
	return p
}
