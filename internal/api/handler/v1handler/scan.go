package v1handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cookiescan/pkg/domain"
	"cookiescan/pkg/serrors"
)

// DefaultLimit is the page size used when the client does not provide one.
const DefaultLimit = 20

type createScanRequest struct {
	URL        string   `json:"url"`
	Subdomains []string `json:"subdomains"`
}

type createScanResponse struct {
	TransactionID domain.TransactionID `json:"transactionId"`
}

type listScansResponse struct {
	Scans      []domain.ScanResult `json:"scans"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

// CreateScan accepts a scan request, persists it and enqueues the background
// job. The response carries only the transaction ID; clients poll GetScan for
// progress.
func (h *Handler) CreateScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(ctx, w, serrors.Wrap(serrors.ErrBadRequest, err, "invalid JSON body"))

		return
	}

	scan, err := h.deps.Scanner.StartScan(ctx, body.URL, body.Subdomains)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	writeJSON(ctx, w, http.StatusOK, createScanResponse{TransactionID: scan.TransactionID})
}

// GetScan returns the scan document for a transaction ID, including all
// cookies discovered so far.
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transactionID, err := domain.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(ctx, w, serrors.Wrap(serrors.ErrBadRequest, err, "invalid transaction id"))

		return
	}

	scan, err := h.deps.Scanner.Result(ctx, transactionID)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	writeJSON(ctx, w, http.StatusOK, scan)
}

// ListScans returns a page of scans, newest first. The status query parameter
// narrows the listing to one lifecycle state, and the cursor continues a
// previous page.
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	limit := uint(DefaultLimit)
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			writeError(ctx, w, serrors.With(serrors.ErrBadRequest, "invalid limit %q", raw))

			return
		}

		limit = uint(parsed)
	}

	status := domain.ScanStatus(query.Get("status"))
	switch status {
	case "", domain.ScanStatusPending, domain.ScanStatusRunning, domain.ScanStatusCompleted, domain.ScanStatusFailed:
	default:
		writeError(ctx, w, serrors.With(serrors.ErrBadRequest, "invalid status %q", status))

		return
	}

	scans, nextCursor, err := h.deps.Scanner.Scans(ctx, status, query.Get("cursor"), limit)
	if err != nil {
		writeError(ctx, w, err)

		return
	}

	if scans == nil {
		scans = []domain.ScanResult{}
	}

	writeJSON(ctx, w, http.StatusOK, listScansResponse{Scans: scans, NextCursor: nextCursor})
}
