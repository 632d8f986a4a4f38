package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cookiescan/pkg/domain"

	"github.com/google/uuid"
)

// PgScanResult is the scans table row. The cookie map travels as a single
// jsonb document so incremental flushes replace it wholesale.
type PgScanResult struct {
	TransactionID uuid.UUID `db:"transaction_id"`

	URL     string          `db:"url"`
	Status  string          `db:"status"`
	Cookies json.RawMessage `db:"cookies" goqu:"skipinsert"`

	ErrorMessage sql.NullString `db:"error_message" goqu:"skipinsert"`

	CreatedAt time.Time    `db:"created_at" goqu:"skipinsert"`
	UpdatedAt sql.NullTime `db:"updated_at" goqu:"skipinsert"`
}

func (p *PgScanResult) ToDomain() (*domain.ScanResult, error) {
	cookies := make(map[string][]domain.CookieRecord)
	if len(p.Cookies) > 0 {
		if err := json.Unmarshal(p.Cookies, &cookies); err != nil {
			return nil, fmt.Errorf("could not unmarshal cookie document: %w", err)
		}
	}

	return &domain.ScanResult{
		TransactionID:      domain.TransactionID(p.TransactionID),
		URL:                p.URL,
		Status:             domain.ScanStatus(p.Status),
		CookiesBySubdomain: cookies,
		ErrorMessage:       p.ErrorMessage.String,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt.Time,
	}, nil
}

func (p *PgScanResult) FromDomain(scan domain.ScanResult) error {
	cookies, err := json.Marshal(scan.CookiesBySubdomain)
	if err != nil {
		return fmt.Errorf("could not marshal cookie document: %w", err)
	}

	*p = PgScanResult{
		TransactionID: uuid.UUID(scan.TransactionID),
		URL:           scan.URL,
		Status:        string(scan.Status),
		Cookies:       cookies,
		ErrorMessage: sql.NullString{
			String: scan.ErrorMessage,
			Valid:  scan.ErrorMessage != "",
		},
		CreatedAt: scan.CreatedAt,
		UpdatedAt: sql.NullTime{
			Time:  scan.UpdatedAt,
			Valid: !scan.UpdatedAt.IsZero(),
		},
	}

	return nil
}

func pgScanResultsToDomain(scans []PgScanResult) ([]domain.ScanResult, error) {
	out := make([]domain.ScanResult, 0, len(scans))
	for _, scan := range scans {
		d, err := scan.ToDomain()
		if err != nil {
			return nil, err
		}

		out = append(out, *d)
	}

	return out, nil
}
