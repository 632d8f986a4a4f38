package scanner

import (
	"context"

	"cookiescan/pkg/categorizer"
	"cookiescan/pkg/domain"
)

// Scanner accepts scan requests, executes them and serves their results.
type Scanner interface {
	// StartScan validates the request, persists a PENDING scan and enqueues a
	// background job for it. Invalid input is rejected synchronously before
	// any scan document or job is created.
	StartScan(ctx context.Context, URL string, subdomains []string) (*domain.ScanResult, error)
	// Scan runs the browser scan for a previously accepted request. It is
	// invoked by the background worker, never by API handlers.
	Scan(ctx context.Context, transactionID domain.TransactionID, URL string, subdomains []string) error
	// Result returns the scan document for the given transaction ID.
	Result(ctx context.Context, transactionID domain.TransactionID) (*domain.ScanResult, error)
	// Scans returns a page of scan documents, newest first, optionally
	// filtered by status. The cursor is an RFC3339 timestamp.
	Scans(ctx context.Context, status domain.ScanStatus, cursor string, limit uint) ([]domain.ScanResult, string, error)
}

// Categorizer enriches cookie names with category data. Implementations never
// fail; at worst they return partial or empty knowledge.
type Categorizer interface {
	Categorize(ctx context.Context, names []string) map[string]categorizer.Categorization
}
