package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrScannerUnavailable means the pre-flight probe could not reach the engine.
	ErrScannerUnavailable = errors.New("scanning engine unavailable")

	// ErrPhaseTimeout means a poll loop exhausted its attempt budget.
	ErrPhaseTimeout = errors.New("scan phase timed out")
)

// TransportError is a network or HTTP failure while talking to the engine.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("zap %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("zap %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Phase is a state of the per-scan protocol state machine.
type Phase string

const (
	PhaseNotStarted        Phase = "not_started"
	PhaseCrawlRunning      Phase = "crawl_running"
	PhaseCrawlDone         Phase = "crawl_done"
	PhaseAttackRunning     Phase = "attack_running"
	PhaseAttackDone        Phase = "attack_done"
	PhaseFindingsCollected Phase = "findings_collected"
)

// PhaseError reports the state in which a scan failed.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("scan failed during %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
