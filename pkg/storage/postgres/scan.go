package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cookiescan/pkg/domain"
	"cookiescan/pkg/storage"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

const (
	scansTable = "scans"
)

// terminalStatuses are the statuses a stored scan can never leave.
var terminalStatuses = []string{
	string(domain.ScanStatusCompleted),
	string(domain.ScanStatusFailed),
}

func (p *PgSQL) StoreScan(ctx context.Context, scan domain.ScanResult) (*domain.ScanResult, error) {
	var pgScan PgScanResult
	if err := pgScan.FromDomain(scan); err != nil {
		return nil, err
	}

	var row PgScanResult
	found, err := p.Builder.Insert(scansTable).
		Rows(pgScan).
		Returning(&PgScanResult{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not store scan into pg: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no row returned when storing scan %s", scan.TransactionID)
	}

	return row.ToDomain()
}

// SaveScan replaces the stored document of the given scan. The status guard
// keeps terminal documents immutable: once a scan reached COMPLETED or FAILED
// no later write can change it, the update simply matches no row and SaveScan
// returns nil.
func (p *PgSQL) SaveScan(ctx context.Context, scan domain.ScanResult) (*domain.ScanResult, error) {
	cookies, err := json.Marshal(scan.CookiesBySubdomain)
	if err != nil {
		return nil, fmt.Errorf("could not marshal cookie document: %w", err)
	}

	rec := goqu.Record{
		"status":     string(scan.Status),
		"cookies":    cookies,
		"updated_at": goqu.L("CURRENT_TIMESTAMP"),
	}
	if scan.ErrorMessage == "" {
		rec["error_message"] = goqu.L("NULL")
	} else {
		rec["error_message"] = scan.ErrorMessage
	}

	var row PgScanResult
	found, err := p.Builder.Update(scansTable).
		Set(rec).Where(
		goqu.I("transaction_id").Eq(uuid.UUID(scan.TransactionID)),
		goqu.I("status").NotIn(terminalStatuses),
	).Returning(&PgScanResult{}).Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not save scan in pg: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain()
}

// ScanByTransactionID returns the scan document with the given transaction id,
// or nil when no such scan exists.
func (p *PgSQL) ScanByTransactionID(ctx context.Context, id domain.TransactionID) (*domain.ScanResult, error) {
	var row PgScanResult
	found, err := p.Builder.From(scansTable).
		Where(goqu.I("transaction_id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not fetch scan by transaction id: %w", err)
	}
	if !found {
		return nil, nil
	}

	return row.ToDomain()
}

// Scans returns a page of scans ordered by created_at DESC, optionally
// filtered by status and bounded by a creation-time cursor.
func (p *PgSQL) Scans(ctx context.Context,
	status domain.ScanStatus,
	cursor time.Time,
	limit uint) (storage.ScanPage, error) {
	var w []goqu.Expression
	if status != "" {
		w = append(w, goqu.I("status").Eq(string(status)))
	}
	if !cursor.IsZero() {
		w = append(w, goqu.I("created_at").Lt(cursor))
	}

	// fetch one extra to determine if there is a next page
	fetch := limit + 1
	ds := p.Builder.From(scansTable).
		Where(w...).
		Order(goqu.I("created_at").Desc(), goqu.I("transaction_id").Desc()).
		Limit(fetch)

	var rows []PgScanResult
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return storage.ScanPage{}, fmt.Errorf("could not fetch scans from pg: %w", err)
	}

	// if we fetched more than the limit, there is a next page
	var nextCursor *time.Time
	if uint(len(rows)) > limit {
		trimmed := rows[:limit]
		nextCursor = &trimmed[len(trimmed)-1].CreatedAt
		rows = trimmed
	}

	domainRows, err := pgScanResultsToDomain(rows)
	if err != nil {
		return storage.ScanPage{}, err
	}

	return storage.ScanPage{
		Scans:      domainRows,
		NextCursor: nextCursor,
	}, nil
}
