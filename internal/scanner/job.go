package scanner

import (
	"github.com/riverqueue/river"

	"cookiescan/pkg/domain"
)

// JobArgs contains the arguments for a scan job submitted to River. Every
// accepted request gets its own job; uniqueness is deliberately not enforced
// because two requests for the same URL are two distinct scans.
type JobArgs struct {
	// TransactionID identifies the scan document the job operates on.
	TransactionID domain.TransactionID `json:"transactionId"`
	// URL is the normalized root URL to scan.
	URL string `json:"url"`
	// Subdomains are the additional target URLs supplied with the request.
	Subdomains []string `json:"subdomains,omitempty"`

	// maxAttempts configures how often River may deliver the job. The engine
	// owns the terminal status and scan runs are not repeatable, so this is
	// normally 1.
	maxAttempts int
}

// Kind returns the River job kind used to register and dispatch the scan worker.
func (args JobArgs) Kind() string { return "CookieScanJob" }

// InsertOpts returns the River options that control how the job is enqueued.
func (args JobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: args.maxAttempts,
	}
}
