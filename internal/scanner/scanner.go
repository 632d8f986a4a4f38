package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cookiescan/internal/config"
	"cookiescan/pkg/browser"
	"cookiescan/pkg/domain"
	"cookiescan/pkg/logger"
	"cookiescan/pkg/metrics"
	"cookiescan/pkg/serrors"
	"cookiescan/pkg/storage"
)

// Options configure scan acceptance and execution. These settings are
// typically derived from application configuration.
type Options struct {
	// MaxAttempts is the number of delivery attempts for a scan job. The
	// engine owns the terminal status and a half-finished scan is not safely
	// repeatable, so this is normally 1.
	MaxAttempts int
	// ConsentTimeout bounds the consent banner dismissal attempt per target.
	ConsentTimeout time.Duration
	// ConsentSettle is how long the engine waits after a dismissed banner
	// before capturing cookies, giving the site time to persist the choice.
	ConsentSettle time.Duration
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxAttempts:    cfg.Scanner.MaxAttempts,
		ConsentTimeout: cfg.Scanner.ConsentTimeout,
		ConsentSettle:  cfg.Scanner.ConsentSettle,
	}
}

// scanner is the concrete implementation of the Scanner interface. It
// coordinates persistence, job dispatch and the browser-driven scan engine.
type scanner struct {
	// options holds runtime configuration that affects scan execution.
	options Options
	// storage is the persistence layer for scan documents and jobs.
	storage storage.Storage
	// launcher starts one browser session per scan.
	launcher browser.Launcher
	// categorizer enriches discovered cookie names, never failing the scan.
	categorizer Categorizer
	// recorder tracks scan counters and phase durations, may be nil.
	recorder *metrics.Recorder
}

// StartScan validates the request, persists a PENDING scan document and
// enqueues the background job for it in one transaction. The returned
// document carries the transaction ID callers poll with. Invalid input, an
// unparsable URL or a subdomain outside the root URL's registrable domain, is
// rejected here and no scan comes into existence.
func (s scanner) StartScan(ctx context.Context, URL string, subdomains []string) (*domain.ScanResult, error) {
	targets, err := buildTargets(URL, subdomains)
	if err != nil {
		return nil, err //nolint: wrapcheck
	}

	var scan *domain.ScanResult
	if err := s.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		stored, err := tx.StoreScan(ctx, domain.NewScanResult(targets[0].URL))
		if err != nil {
			return fmt.Errorf("could not store scan: %w", err)
		}
		scan = stored

		if _, err := tx.AddJob(ctx, JobArgs{
			TransactionID: scan.TransactionID,
			URL:           scan.URL,
			Subdomains:    subdomains,
			maxAttempts:   s.options.MaxAttempts,
		}, nil); err != nil {
			return fmt.Errorf("could not add job: %w", err)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("could not start scan: %w", err)
	}

	logger.Info(ctx, "scan accepted",
		zap.String("transactionID", scan.TransactionID.String()),
		zap.String("url", scan.URL),
		zap.Int("targets", len(targets)))

	return scan, nil
}

// Result fetches a single scan by its transaction ID. It returns a not-found
// error when no matching scan exists.
func (s scanner) Result(ctx context.Context, transactionID domain.TransactionID) (*domain.ScanResult, error) {
	res, err := s.storage.ScanByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("could not get scan result: %w", err)
	}
	if res == nil {
		return nil, serrors.With(serrors.ErrNotFound, "scan not found")
	}

	return res, nil
}

// Scans returns a page of scans, newest first, optionally filtered by status.
// It supports cursor-based pagination using an RFC3339 timestamp string and
// returns the next cursor when more results are available.
func (s scanner) Scans(ctx context.Context,
	status domain.ScanStatus,
	cursor string,
	limit uint) ([]domain.ScanResult, string, error) {
	var cursorTime time.Time
	if cursor != "" {
		t, err := time.Parse(time.RFC3339, cursor)
		if err != nil {
			return nil, "", serrors.Wrap(serrors.ErrBadRequest, err, "invalid cursor")
		}
		cursorTime = t
	}

	page, err := s.storage.Scans(ctx, status, cursorTime, limit)
	if err != nil {
		return nil, "", fmt.Errorf("could not list scans: %w", err)
	}

	var next string
	if page.NextCursor != nil {
		next = page.NextCursor.Format(time.RFC3339)
	}

	return page.Scans, next, nil
}

// New creates a Scanner backed by the provided storage, browser launcher and
// categorizer. The recorder may be nil when metrics are not wired up.
func New(storage storage.Storage,
	launcher browser.Launcher,
	categorizer Categorizer,
	recorder *metrics.Recorder,
	options Options) Scanner {
	return &scanner{
		options:     options,
		storage:     storage,
		launcher:    launcher,
		categorizer: categorizer,
		recorder:    recorder,
	}
}
