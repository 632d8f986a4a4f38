package storage

import (
	"context"
	"time"

	"cookiescan/pkg/domain"
)

// ScanPage groups a page of scan documents together with an optional
// NextCursor used for pagination.
type ScanPage struct {
	// Scans contains the current page of scan documents.
	Scans []domain.ScanResult
	// NextCursor points to the timestamp to be used as the cursor for fetching
	// the next page. It is nil when there is no next page.
	NextCursor *time.Time
}

// ScanStorage defines persistence operations for scan documents. A scan is
// stored as a single document keyed by its transaction id; the engine writes
// it back wholesale as cookies accumulate.
type ScanStorage interface {
	// StoreScan inserts a freshly accepted scan and returns the stored document
	// as it exists in the database (including generated fields).
	StoreScan(ctx context.Context, scan domain.ScanResult) (*domain.ScanResult, error)
	// SaveScan replaces the stored document identified by the scan's transaction
	// id with the given one and returns the updated row. Documents already in a
	// terminal status are left untouched; in that case, or when no document with
	// that transaction id exists, SaveScan returns nil.
	SaveScan(ctx context.Context, scan domain.ScanResult) (*domain.ScanResult, error)
	// ScanByTransactionID fetches a scan document by its transaction id.
	// Returns nil when not found.
	ScanByTransactionID(ctx context.Context, ID domain.TransactionID) (*domain.ScanResult, error)
	// Scans returns a page of scans created before the optional cursor time,
	// newest first, limited by the given limit. If status is non-empty, results
	// are filtered to documents with the given status.
	Scans(ctx context.Context, status domain.ScanStatus, cursor time.Time, limit uint) (ScanPage, error)
}
