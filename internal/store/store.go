// Package store persists scan records and their vulnerabilities.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/buemura/scanward/pkg/types"
	"github.com/google/uuid"
)

// ErrScanNotFound is returned when a scan id is unknown.
var ErrScanNotFound = errors.New("scan not found")

// ErrScanTerminal is returned by UpdateScan when the stored scan is already
// completed or failed. Terminal records are never rewritten.
var ErrScanTerminal = errors.New("scan is in a terminal state")

// newUUID generates record ids. Extracted as a variable for testing.
var newUUID = func() string { return uuid.New().String() }

// Store is the read/write contract the orchestrator and API rely on.
// Every method is a single atomic write or read.
type Store interface {
	CreateScan(ctx context.Context, draft types.ScanDraft) (*types.ScanRecord, error)
	// UpdateScan merges patch into the scan. It fails with ErrScanTerminal
	// once the scan is completed or failed.
	UpdateScan(ctx context.Context, id string, patch types.ScanPatch) (*types.ScanRecord, error)
	BulkInsertVulnerabilities(ctx context.Context, scanID string, vulns []types.Vulnerability) error
	DeleteVulnerabilities(ctx context.Context, scanID string) error
	ReadScan(ctx context.Context, id string) (*types.ScanRecord, error)
	ListScans(ctx context.Context) ([]*types.ScanRecord, error)
	ListVulnerabilities(ctx context.Context, scanID string) ([]types.Vulnerability, error)
	Close() error
}

// Open returns the store selected by driver ("sqlite" or "memory").
func Open(driver, path string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "", "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q (supported: sqlite, memory)", driver)
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %q", ErrScanNotFound, id)
}

func terminal(rec *types.ScanRecord) error {
	return fmt.Errorf("%w: %q is %s", ErrScanTerminal, rec.ID, rec.Status)
}
