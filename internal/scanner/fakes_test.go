package scanner_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/riverqueue/river"

	"cookiescan/internal/scanner"
	"cookiescan/pkg/browser"
	"cookiescan/pkg/categorizer"
	"cookiescan/pkg/domain"
	"cookiescan/pkg/logger"
	"cookiescan/pkg/storage"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

// fakeStorage is an in-memory storage.Storage with the same terminal-status
// guard the Postgres implementation enforces. It records every SaveScan
// attempt so tests can assert the persisted status trail.
type fakeStorage struct {
	mu    sync.Mutex
	scans map[domain.TransactionID]*domain.ScanResult
	jobs  []scanner.JobArgs

	// saves holds every SaveScan argument in call order, applied or not.
	saves []domain.ScanResult
	// saveErrs maps a SaveScan call index to an injected error.
	saveErrs  map[int]error
	saveCalls int

	storeErr error
	loadErr  error
	jobErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		scans:    make(map[domain.TransactionID]*domain.ScanResult),
		saveErrs: make(map[int]error),
	}
}

func cloneScan(scan domain.ScanResult) *domain.ScanResult {
	cp := scan
	cp.CookiesBySubdomain = make(map[string][]domain.CookieRecord, len(scan.CookiesBySubdomain))
	for label, records := range scan.CookiesBySubdomain {
		cp.CookiesBySubdomain[label] = append([]domain.CookieRecord(nil), records...)
	}

	return &cp
}

// seed stores a scan directly, bypassing StoreScan bookkeeping.
func (f *fakeStorage) seed(scan domain.ScanResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[scan.TransactionID] = cloneScan(scan)
}

// stored returns the currently persisted document, nil when absent.
func (f *fakeStorage) stored(id domain.TransactionID) *domain.ScanResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if scan, ok := f.scans[id]; ok {
		return cloneScan(*scan)
	}

	return nil
}

func (f *fakeStorage) StoreScan(_ context.Context, scan domain.ScanResult) (*domain.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	if _, exists := f.scans[scan.TransactionID]; exists {
		return nil, fmt.Errorf("duplicate transaction id %s", scan.TransactionID)
	}

	scan.CreatedAt = time.Now().UTC()
	f.scans[scan.TransactionID] = cloneScan(scan)

	return cloneScan(scan), nil
}

func (f *fakeStorage) SaveScan(_ context.Context, scan domain.ScanResult) (*domain.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.saveCalls
	f.saveCalls++
	f.saves = append(f.saves, *cloneScan(scan))

	if err := f.saveErrs[idx]; err != nil {
		return nil, err
	}

	current, ok := f.scans[scan.TransactionID]
	if !ok || current.Status.Terminal() {
		return nil, nil
	}

	updated := cloneScan(scan)
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	f.scans[scan.TransactionID] = updated

	return cloneScan(*updated), nil
}

func (f *fakeStorage) ScanByTransactionID(_ context.Context, id domain.TransactionID) (*domain.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if scan, ok := f.scans[id]; ok {
		return cloneScan(*scan), nil
	}

	return nil, nil //nolint: nilnil
}

func (f *fakeStorage) Scans(_ context.Context,
	status domain.ScanStatus,
	cursor time.Time,
	limit uint) (storage.ScanPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []domain.ScanResult
	for _, scan := range f.scans {
		if status != "" && scan.Status != status {
			continue
		}
		if !cursor.IsZero() && !scan.CreatedAt.Before(cursor) {
			continue
		}
		all = append(all, *cloneScan(*scan))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	page := storage.ScanPage{}
	if uint(len(all)) > limit {
		all = all[:limit]
		next := all[len(all)-1].CreatedAt
		page.NextCursor = &next
	}
	page.Scans = all

	return page, nil
}

func (f *fakeStorage) AddJob(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobErr != nil {
		return false, f.jobErr
	}

	jobArgs, ok := args.(scanner.JobArgs)
	if !ok {
		return false, fmt.Errorf("unexpected job args type %T", args)
	}
	f.jobs = append(f.jobs, jobArgs)

	return true, nil
}

func (f *fakeStorage) WithTx(ctx context.Context, cb func(tx storage.AllStorage) error) error {
	return cb(f)
}

func (f *fakeStorage) Begin(context.Context) (storage.TxStorage, error) {
	return nil, errors.New("not supported in fake")
}

func (f *fakeStorage) Close() error { return nil }

var _ storage.Storage = (*fakeStorage)(nil)

// pageScript describes how the fake session behaves on one URL. Cookie
// batches are folded into the cumulative jar one batch per Cookies call while
// the page is current, mimicking a site that keeps setting cookies as the
// phases progress.
type pageScript struct {
	navErr        error
	interactErr   error
	consentOK     bool
	html          string
	cookieBatches [][]browser.Cookie
	observations  []browser.HeaderObservation
}

type fakeSession struct {
	mu         sync.Mutex
	pages      map[string]*pageScript
	jar        []browser.Cookie
	pendingObs []browser.HeaderObservation
	current    string
	batchIdx   int
	navigated  []string
	closed     bool
	cookiesErr error
	htmlErr    error
}

func newFakeSession(pages map[string]*pageScript) *fakeSession {
	return &fakeSession{pages: pages}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.navigated = append(s.navigated, url)
	page, ok := s.pages[url]
	if !ok {
		return fmt.Errorf("no script for %s", url)
	}
	if page.navErr != nil {
		return page.navErr
	}

	s.current = url
	s.batchIdx = 0
	s.pendingObs = append(s.pendingObs, page.observations...)

	return nil
}

func (s *fakeSession) DismissConsent(context.Context, time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page, ok := s.pages[s.current]; ok {
		return page.consentOK
	}

	return false
}

func (s *fakeSession) SimulateInteraction(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page, ok := s.pages[s.current]; ok {
		return page.interactErr
	}

	return nil
}

func (s *fakeSession) Cookies(context.Context) ([]browser.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cookiesErr != nil {
		return nil, s.cookiesErr
	}

	if page, ok := s.pages[s.current]; ok && s.batchIdx < len(page.cookieBatches) {
		s.jar = append(s.jar, page.cookieBatches[s.batchIdx]...)
		s.batchIdx++
	}

	return append([]browser.Cookie(nil), s.jar...), nil
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.htmlErr != nil {
		return "", s.htmlErr
	}
	if page, ok := s.pages[s.current]; ok && page.html != "" {
		return page.html, nil
	}

	return "<html><body></body></html>", nil
}

func (s *fakeSession) TakeHeaderObservations() []browser.HeaderObservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs := s.pendingObs
	s.pendingObs = nil

	return obs
}

func (s *fakeSession) Close(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

var _ browser.Session = (*fakeSession)(nil)

type fakeLauncher struct {
	mu        sync.Mutex
	session   *fakeSession
	launchErr error
	launches  int
	// onLaunch, when set, runs before a session is handed out. Tests use it
	// to snapshot collaborator state at launch time.
	onLaunch func()
}

func (l *fakeLauncher) Launch(context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches++
	if l.onLaunch != nil {
		l.onLaunch()
	}
	if l.launchErr != nil {
		return nil, l.launchErr
	}

	return l.session, nil
}

var _ browser.Launcher = (*fakeLauncher)(nil)

// fakeCategorizer answers from a fixed table and records every batch it was
// asked about.
type fakeCategorizer struct {
	mu    sync.Mutex
	table map[string]categorizer.Categorization
	calls [][]string
}

func (f *fakeCategorizer) Categorize(_ context.Context, names []string) map[string]categorizer.Categorization {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string(nil), names...))

	out := make(map[string]categorizer.Categorization)
	for _, name := range names {
		if c, ok := f.table[name]; ok {
			out[name] = c
		}
	}

	return out
}

var _ scanner.Categorizer = (*fakeCategorizer)(nil)
