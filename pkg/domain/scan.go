package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionID uniquely identifies a single scan invocation.
// It wraps uuid.UUID to provide type safety at the domain layer.
type TransactionID uuid.UUID

// NewTransactionID returns a freshly generated TransactionID.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.New())
}

// ParseTransactionID parses the canonical string form of a TransactionID.
func ParseTransactionID(raw string) (TransactionID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return TransactionID{}, fmt.Errorf("could not parse transaction id: %w", err)
	}

	return TransactionID(id), nil
}

// String returns the canonical UUID string form.
func (id TransactionID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler so the ID serializes as its
// canonical string form in JSON payloads.
func (id TransactionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *TransactionID) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionID(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}

// ScanStatus represents the lifecycle state of a scan. Transitions are
// monotonic and forward-only: PENDING -> RUNNING -> COMPLETED or FAILED.
type ScanStatus string

const (
	// ScanStatusPending indicates the scan has been accepted but browser work has not started yet.
	ScanStatusPending ScanStatus = "PENDING"
	// ScanStatusRunning indicates the scan engine is driving the browser.
	ScanStatusRunning ScanStatus = "RUNNING"
	// ScanStatusCompleted indicates the scan finished and all discovered cookies are persisted.
	ScanStatusCompleted ScanStatus = "COMPLETED"
	// ScanStatusFailed indicates the scan ended with an unrecoverable error; see ErrorMessage.
	ScanStatusFailed ScanStatus = "FAILED"
)

// Terminal reports whether the status is a final state that must never be
// overwritten.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition of the scan state machine.
func (s ScanStatus) CanTransitionTo(next ScanStatus) bool {
	switch s {
	case ScanStatusPending:
		return next == ScanStatusRunning
	case ScanStatusRunning:
		return next == ScanStatusCompleted || next == ScanStatusFailed
	default:
		return false
	}
}

// MainSubdomainLabel is the label the root URL's cookies are attributed to.
const MainSubdomainLabel = "main"

// ScanTarget is one URL the engine visits during a scan, together with the
// label its cookies are attributed to. The target list always starts with the
// root URL labeled MainSubdomainLabel, followed by the validated subdomains in
// the order they were supplied.
type ScanTarget struct {
	// URL is the normalized address the browser navigates to.
	URL string `json:"url"`
	// SubdomainLabel is the bucket cookies discovered on this target are filed under.
	SubdomainLabel string `json:"subdomainLabel"`
}

// ScanResult is the single record produced by one scan invocation. It is
// created PENDING when a scan is accepted, grows incrementally while the
// engine discovers cookies, and receives exactly one terminal status.
type ScanResult struct {
	// TransactionID is the unique identifier assigned at creation, immutable afterwards.
	TransactionID TransactionID `json:"transactionId"`
	// URL is the normalized root URL the scan was requested for.
	URL string `json:"url"`
	// Status is the current lifecycle state of the scan.
	Status ScanStatus `json:"status"`
	// CookiesBySubdomain maps a subdomain label to the ordered cookies discovered
	// for it. Buckets only ever grow during a scan, they never shrink.
	CookiesBySubdomain map[string][]CookieRecord `json:"cookiesBySubdomain"`
	// ErrorMessage holds a sanitized human-readable message, set only on FAILED.
	ErrorMessage string `json:"errorMessage,omitempty"`

	// CreatedAt is the time the scan request was accepted.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the time of the last status change or cookie flush.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewScanResult returns a PENDING ScanResult for the given normalized URL with
// a fresh TransactionID and an empty cookie map.
func NewScanResult(url string) ScanResult {
	return ScanResult{
		TransactionID:      NewTransactionID(),
		URL:                url,
		Status:             ScanStatusPending,
		CookiesBySubdomain: make(map[string][]CookieRecord),
	}
}

// AppendCookies appends records to the bucket of the given subdomain label.
// Callers are expected to hand in records that are already deduplicated
// against the result.
func (r *ScanResult) AppendCookies(label string, records []CookieRecord) {
	if len(records) == 0 {
		return
	}

	if r.CookiesBySubdomain == nil {
		r.CookiesBySubdomain = make(map[string][]CookieRecord)
	}

	r.CookiesBySubdomain[label] = append(r.CookiesBySubdomain[label], records...)
}

// TotalCookies returns the number of cookies across all subdomain buckets.
func (r *ScanResult) TotalCookies() int {
	var total int
	for _, records := range r.CookiesBySubdomain {
		total += len(records)
	}

	return total
}
