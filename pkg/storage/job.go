package storage

import (
	"context"

	"github.com/riverqueue/river"
)

// JobStorage defines the minimal interface for enqueueing background jobs.
// Implementations persist the job into the underlying queue backend. The args
// parameter carries the job payload and opts customizes insertion behavior
// (e.g. queue name, delay, uniqueness).
//
// When the handle is inside a transaction, the job insert must join that
// transaction so a rolled back scan never leaves an orphaned job behind.
//
// Example:
//
//	ok, err := storage.AddJob(ctx, ScanJobArgs{TransactionID: id}, nil)
//	if err != nil { /* handle error */ }
type JobStorage interface {
	// AddJob enqueues a new job with the given arguments. The returned bool is
	// false when a uniqueness constraint skipped the insert.
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}
