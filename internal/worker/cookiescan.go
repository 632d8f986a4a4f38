package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"cookiescan/internal/scanner"
	"cookiescan/pkg/logger"
	"cookiescan/pkg/serrors"
)

// CookieScanWorker is the river worker behind accepted scan requests. It hands
// the job to the scan engine and translates the outcome into river actions:
// errors another attempt can never fix cancel the job, everything else is
// returned so river applies the attempt budget.
type CookieScanWorker struct {
	river.WorkerDefaults[scanner.JobArgs]

	scanner scanner.Scanner
}

// NewCookieScanWorker constructs a CookieScanWorker using the provided scanner.
func NewCookieScanWorker(scannerService scanner.Scanner) *CookieScanWorker {
	return &CookieScanWorker{scanner: scannerService}
}

// Work executes a single scan job.
func (w *CookieScanWorker) Work(ctx context.Context, job *river.Job[scanner.JobArgs]) error {
	ctx = logger.WithFields(ctx,
		zap.Int64("jobID", job.ID),
		zap.String("transactionID", job.Args.TransactionID.String()),
		zap.String("URL", job.Args.URL))

	if err := w.scanner.Scan(ctx, job.Args.TransactionID, job.Args.URL, job.Args.Subdomains); err != nil {
		logger.Error(ctx, "error in scanning", zap.Error(err))

		// a missing scan document or arguments that no longer validate will
		// fail the same way on every attempt
		if errors.Is(err, serrors.ErrNotFound) || errors.Is(err, serrors.ErrBadRequest) {
			return river.JobCancel(err) //nolint: wrapcheck
		}

		return fmt.Errorf("could not run scan: %w", err)
	}

	logger.Info(ctx, "scan job finished")

	return nil
}
