package scanner_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cookiescan/internal/scanner"
	"cookiescan/pkg/browser"
	"cookiescan/pkg/categorizer"
	"cookiescan/pkg/domain"
	"cookiescan/pkg/serrors"
)

const shopURL = "https://shop.example.com/"

func newTestEngine(st *fakeStorage, launcher *fakeLauncher, cat *fakeCategorizer) scanner.Scanner {
	return scanner.New(st, launcher, cat, nil, scanner.Options{
		MaxAttempts:    1,
		ConsentTimeout: 10 * time.Millisecond,
		ConsentSettle:  0,
	})
}

// seedPending stores a PENDING scan and returns it.
func seedPending(st *fakeStorage, url string) domain.ScanResult {
	scan := domain.NewScanResult(url)
	scan.CreatedAt = time.Now().UTC()
	st.seed(scan)

	return scan
}

func bucket(t *testing.T, scan *domain.ScanResult, label string) []domain.CookieRecord {
	t.Helper()
	records, ok := scan.CookiesBySubdomain[label]
	if !ok {
		t.Fatalf("expected a %q bucket, got %v", label, scan.CookiesBySubdomain)
	}

	return records
}

func recordByName(t *testing.T, records []domain.CookieRecord, name string) domain.CookieRecord {
	t.Helper()
	for _, r := range records {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no record named %q in %+v", name, records)

	return domain.CookieRecord{}
}

func TestScanner_Scan_DiscoversAndCompletes(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	session := newFakeSession(map[string]*pageScript{
		rootURL: {
			consentOK: true,
			cookieBatches: [][]browser.Cookie{
				// visible at the post-consent capture
				{{Name: "SID", Value: "abc", Domain: ".example.com", Path: "/",
					Secure: true, HTTPOnly: true, SameSite: "Lax"}},
				// visible at the post-interaction capture
				{{Name: "theme", Domain: "example.com", Path: "/"}},
			},
			observations: []browser.HeaderObservation{
				{ResponseURL: "https://ads.doubleclick.net/pixel",
					Header: "pixel_id=42; Domain=.doubleclick.net; Path=/; Secure"},
				// SID also arrives over the wire; jar and header must collapse
				// into one record
				{ResponseURL: rootURL,
					Header: "SID=abc; Domain=.Example.com; Path=/"},
			},
		},
		shopURL: {
			consentOK: false,
			cookieBatches: [][]browser.Cookie{
				{{Name: "cart", Domain: "shop.example.com", Path: "/"}},
			},
		},
	})

	launcher := &fakeLauncher{session: session}
	var savesAtLaunch int
	launcher.onLaunch = func() { savesAtLaunch = st.saveCalls }

	cat := &fakeCategorizer{table: map[string]categorizer.Categorization{
		"SID": {Name: "SID", Category: "Analytics", Description: "Session identifier", Provider: "Example"},
	}}

	s := newTestEngine(st, launcher, cat)

	err := s.Scan(context.Background(), seeded.TransactionID, rootURL, []string{"shop.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// RUNNING reached storage before the browser was launched
	if savesAtLaunch < 1 {
		t.Errorf("expected RUNNING to be persisted before launch")
	}
	if st.saves[0].Status != domain.ScanStatusRunning || st.saves[0].TotalCookies() != 0 {
		t.Errorf("unexpected first save: %+v", st.saves[0])
	}

	stored := st.stored(seeded.TransactionID)
	if stored.Status != domain.ScanStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}
	if stored.ErrorMessage != "" {
		t.Errorf("expected no error message, got %q", stored.ErrorMessage)
	}

	main := bucket(t, stored, domain.MainSubdomainLabel)
	if len(main) != 3 {
		t.Fatalf("expected 3 cookies under main, got %+v", main)
	}

	sid := recordByName(t, main, "SID")
	if sid.Source != domain.SourceFirstParty || !sid.Secure || !sid.HTTPOnly ||
		sid.SameSite != domain.SameSiteLax {
		t.Errorf("unexpected SID record: %+v", sid)
	}
	if sid.Category != "Analytics" || sid.Provider != "Example" {
		t.Errorf("expected SID to be enriched, got %+v", sid)
	}

	pixel := recordByName(t, main, "pixel_id")
	if pixel.Domain != "doubleclick.net" || pixel.Source != domain.SourceThirdParty {
		t.Errorf("unexpected pixel record: %+v", pixel)
	}
	if pixel.Category != domain.Uncategorized {
		t.Errorf("expected an unenriched pixel record, got %+v", pixel)
	}
	if pixel.PageURL != rootURL {
		t.Errorf("expected the page the engine was on, got %q", pixel.PageURL)
	}

	// the shop page sees the jar cookies of the root plus its own
	shop := bucket(t, stored, "shop")
	if len(shop) != 3 {
		t.Fatalf("expected 3 cookies under shop, got %+v", shop)
	}
	cart := recordByName(t, shop, "cart")
	if cart.SubdomainName != "shop" || cart.Source != domain.SourceFirstParty {
		t.Errorf("unexpected cart record: %+v", cart)
	}

	// one categorization batch per capture pass
	wantCalls := [][]string{
		{"SID", "pixel_id"},
		{"theme"},
		{"SID", "theme", "cart"},
	}
	if len(cat.calls) != len(wantCalls) {
		t.Fatalf("expected %d categorization batches, got %+v", len(wantCalls), cat.calls)
	}
	for i, want := range wantCalls {
		if len(cat.calls[i]) != len(want) {
			t.Errorf("batch %d: got %v, want %v", i, cat.calls[i], want)

			continue
		}
		for j := range want {
			if cat.calls[i][j] != want[j] {
				t.Errorf("batch %d: got %v, want %v", i, cat.calls[i], want)

				break
			}
		}
	}

	// statuses persisted in order, exactly one terminal write
	for i, save := range st.saves[:len(st.saves)-1] {
		if save.Status != domain.ScanStatusRunning {
			t.Errorf("save %d: expected RUNNING, got %s", i, save.Status)
		}
	}
	if last := st.saves[len(st.saves)-1]; last.Status != domain.ScanStatusCompleted {
		t.Errorf("expected the last save to be COMPLETED, got %s", last.Status)
	}

	if !session.closed {
		t.Errorf("expected the session to be closed")
	}
	if len(session.navigated) != 2 || session.navigated[0] != rootURL || session.navigated[1] != shopURL {
		t.Errorf("unexpected navigation order: %v", session.navigated)
	}
}

func TestScanner_Scan_SkipsUnreachableTarget(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	session := newFakeSession(map[string]*pageScript{
		rootURL: {
			cookieBatches: [][]browser.Cookie{
				{{Name: "SID", Domain: "example.com", Path: "/"}},
			},
		},
		shopURL: {navErr: errors.New("all navigation tiers failed")},
	})

	s := newTestEngine(st, &fakeLauncher{session: session}, &fakeCategorizer{})

	err := s.Scan(context.Background(), seeded.TransactionID, rootURL, []string{"shop.example.com"})
	if err != nil {
		t.Fatalf("expected the scan to survive a dead target, got %v", err)
	}

	stored := st.stored(seeded.TransactionID)
	if stored.Status != domain.ScanStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}
	if _, ok := stored.CookiesBySubdomain["shop"]; ok {
		t.Errorf("expected no shop bucket, got %+v", stored.CookiesBySubdomain)
	}
	if got := bucket(t, stored, domain.MainSubdomainLabel); len(got) != 1 {
		t.Errorf("expected the root cookies to survive, got %+v", got)
	}

	// the cookie was never enriched, so the placeholders must remain
	sid := recordByName(t, bucket(t, stored, domain.MainSubdomainLabel), "SID")
	if sid.Category != domain.Uncategorized {
		t.Errorf("expected Unknown category, got %+v", sid)
	}
}

func TestScanner_Scan_RootUnreachableFails(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	session := newFakeSession(map[string]*pageScript{
		rootURL: {navErr: errors.New("connection refused to 93.184.216.34:443")},
	})

	s := newTestEngine(st, &fakeLauncher{session: session}, &fakeCategorizer{})

	err := s.Scan(context.Background(), seeded.TransactionID, rootURL, nil)
	if err == nil {
		t.Fatalf("expected an error for an unreachable root")
	}

	stored := st.stored(seeded.TransactionID)
	if stored.Status != domain.ScanStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatalf("expected an error message")
	}
	// the persisted message is sanitized, raw causes stay in the log
	if strings.Contains(stored.ErrorMessage, "connection refused") ||
		strings.Contains(stored.ErrorMessage, "93.184.216.34") {
		t.Errorf("raw error leaked into the scan document: %q", stored.ErrorMessage)
	}
	if !session.closed {
		t.Errorf("expected the session to be closed on failure")
	}
}

func TestScanner_Scan_LaunchFailureFails(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	launcher := &fakeLauncher{launchErr: errors.New("chromium not found")}
	s := newTestEngine(st, launcher, &fakeCategorizer{})

	if err := s.Scan(context.Background(), seeded.TransactionID, rootURL, nil); err == nil {
		t.Fatalf("expected an error when the browser cannot start")
	}

	stored := st.stored(seeded.TransactionID)
	if stored.Status != domain.ScanStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if strings.Contains(stored.ErrorMessage, "chromium not found") {
		t.Errorf("raw error leaked into the scan document: %q", stored.ErrorMessage)
	}
	if launcher.launches != 1 {
		t.Errorf("expected exactly one launch attempt, got %d", launcher.launches)
	}
}

func TestScanner_Scan_TerminalScanIsLeftAlone(t *testing.T) {
	st := newFakeStorage()
	scan := domain.NewScanResult(rootURL)
	scan.Status = domain.ScanStatusCompleted
	st.seed(scan)

	launcher := &fakeLauncher{session: newFakeSession(nil)}
	s := newTestEngine(st, launcher, &fakeCategorizer{})

	if err := s.Scan(context.Background(), scan.TransactionID, rootURL, nil); err != nil {
		t.Fatalf("expected a re-delivered finished scan to be a no-op, got %v", err)
	}
	if launcher.launches != 0 {
		t.Errorf("expected no browser launch, got %d", launcher.launches)
	}
	if st.saveCalls != 0 {
		t.Errorf("expected no writes, got %d", st.saveCalls)
	}
}

func TestScanner_Scan_UnknownScan(t *testing.T) {
	st := newFakeStorage()
	launcher := &fakeLauncher{session: newFakeSession(nil)}
	s := newTestEngine(st, launcher, &fakeCategorizer{})

	err := s.Scan(context.Background(), domain.NewTransactionID(), rootURL, nil)
	if err == nil || !errors.Is(err, serrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if launcher.launches != 0 {
		t.Errorf("expected no browser launch, got %d", launcher.launches)
	}
}

func TestScanner_Scan_DriftedArgsFail(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	launcher := &fakeLauncher{session: newFakeSession(nil)}
	s := newTestEngine(st, launcher, &fakeCategorizer{})

	err := s.Scan(context.Background(), seeded.TransactionID, rootURL, []string{"tracker.net"})
	if err == nil {
		t.Fatalf("expected an error for drifted job args")
	}

	stored := st.stored(seeded.TransactionID)
	if stored.Status != domain.ScanStatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if launcher.launches != 0 {
		t.Errorf("expected no browser launch, got %d", launcher.launches)
	}
}

func TestScanner_Scan_FlushFailuresStillReachTerminal(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	session := newFakeSession(map[string]*pageScript{
		rootURL: {
			cookieBatches: [][]browser.Cookie{
				{{Name: "SID", Domain: "example.com", Path: "/"}},
			},
		},
	})

	// the RUNNING write succeeds, the cookie flush fails, the terminal
	// write succeeds again
	st.saveErrs[1] = errors.New("connection reset")

	s := newTestEngine(st, &fakeLauncher{session: session}, &fakeCategorizer{})

	if err := s.Scan(context.Background(), seeded.TransactionID, rootURL, nil); err != nil {
		t.Fatalf("expected the scan to complete despite a failed flush, got %v", err)
	}

	stored := st.stored(seeded.TransactionID)
	if stored.Status != domain.ScanStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}
	// the cookies lost in the failed flush rode along with the terminal write
	if got := bucket(t, stored, domain.MainSubdomainLabel); len(got) != 1 {
		t.Errorf("expected the discovered cookie to be persisted, got %+v", got)
	}
}

func TestScanner_Scan_StorageDownAtStart(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	// the RUNNING write fails, storage then recovers for the FAILED write
	st.saveErrs[0] = errors.New("connection reset")

	launcher := &fakeLauncher{session: newFakeSession(nil)}
	s := newTestEngine(st, launcher, &fakeCategorizer{})

	if err := s.Scan(context.Background(), seeded.TransactionID, rootURL, nil); err == nil {
		t.Fatalf("expected an error when RUNNING cannot be persisted")
	}
	if launcher.launches != 0 {
		t.Errorf("expected no browser work, got %d launches", launcher.launches)
	}
	if stored := st.stored(seeded.TransactionID); stored.Status != domain.ScanStatusFailed {
		t.Errorf("expected FAILED after recovery, got %s", stored.Status)
	}
}

func TestScanner_Scan_FramesClassifiedAgainstOwnRoot(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	frameURL := "https://cmp.widgets.net/frame"
	session := newFakeSession(map[string]*pageScript{
		rootURL: {
			html: `<html><body><iframe src="` + frameURL + `"></iframe></body></html>`,
			cookieBatches: [][]browser.Cookie{
				// post-interaction capture
				{{Name: "SID", Domain: "example.com", Path: "/"}},
				// frames pass
				{{Name: "fr_track", Domain: ".widgets.net", Path: "/"}},
			},
		},
	})

	s := newTestEngine(st, &fakeLauncher{session: session}, &fakeCategorizer{})

	if err := s.Scan(context.Background(), seeded.TransactionID, rootURL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := st.stored(seeded.TransactionID)
	main := bucket(t, stored, domain.MainSubdomainLabel)

	frTrack := recordByName(t, main, "fr_track")
	// first party relative to the frame's own root domain, not the site's
	if frTrack.Source != domain.SourceFirstParty {
		t.Errorf("expected FIRST_PARTY against the frame root, got %s", frTrack.Source)
	}
	if frTrack.PageURL != frameURL {
		t.Errorf("expected the frame URL as page, got %q", frTrack.PageURL)
	}
	if frTrack.SubdomainName != domain.MainSubdomainLabel {
		t.Errorf("expected attribution to the parent target, got %q", frTrack.SubdomainName)
	}

	// the site cookie was not re-filed by the frame pass
	if len(main) != 2 {
		t.Errorf("expected SID and fr_track only, got %+v", main)
	}
}

func TestScanner_Scan_FinalPassCatchesLateCookies(t *testing.T) {
	st := newFakeStorage()
	seeded := seedPending(st, rootURL)

	session := newFakeSession(map[string]*pageScript{
		rootURL: {
			cookieBatches: [][]browser.Cookie{
				// post-interaction capture
				{{Name: "SID", Domain: "example.com", Path: "/"}},
				// frames pass sees nothing new
				{},
				// set asynchronously, only visible to the final pass
				{{Name: "late_metric", Domain: ".stats.net", Path: "/"}},
			},
			html: `<html><body><iframe src="https://cmp.example.com/x"></iframe></body></html>`,
		},
	})

	s := newTestEngine(st, &fakeLauncher{session: session}, &fakeCategorizer{})

	if err := s.Scan(context.Background(), seeded.TransactionID, rootURL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := st.stored(seeded.TransactionID)
	main := bucket(t, stored, domain.MainSubdomainLabel)

	late := recordByName(t, main, "late_metric")
	if late.Source != domain.SourceThirdParty {
		t.Errorf("expected THIRD_PARTY against the site root, got %s", late.Source)
	}
	// SID was recorded by the per-target pass and must not be duplicated
	if len(main) != 2 {
		t.Errorf("expected SID and late_metric only, got %+v", main)
	}
}
