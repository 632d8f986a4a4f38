package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cookiescan/pkg/browser"
	"cookiescan/pkg/domain"
	"cookiescan/pkg/logger"
	"cookiescan/pkg/serrors"
)

// phase names recorded on the duration histogram.
const (
	phaseNavigate    = "navigate"
	phaseConsent     = "consent"
	phaseInteraction = "interaction"
	phaseCapture     = "capture"
	phaseFrames      = "frames"
)

// Messages persisted on FAILED scans. Raw error details go to the log only,
// the scan document never carries stack traces or upstream internals.
const (
	msgInvalidJob      = "scan request is no longer valid"
	msgStorageDown     = "scan could not be started"
	msgBrowserStart    = "browser could not be started"
	msgRootUnreachable = "could not load the requested site"
)

// Scan runs the browser scan for an accepted request: mark the document
// RUNNING, open one browser session, walk the targets in declaration order
// through the navigation, consent, interaction, capture and frames phases,
// and persist exactly one terminal status at the end. A target that cannot be
// processed is skipped; only a failing browser launch or an unreachable root
// target fails the whole scan.
func (s scanner) Scan(ctx context.Context,
	transactionID domain.TransactionID,
	URL string,
	subdomains []string) error {
	ctx = logger.WithFields(ctx,
		zap.String("transactionID", transactionID.String()),
		zap.String("url", URL))

	scan, err := s.storage.ScanByTransactionID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("could not load scan: %w", err)
	}
	if scan == nil {
		return serrors.With(serrors.ErrNotFound, "scan %s not found", transactionID)
	}
	if scan.Status.Terminal() {
		logger.Info(ctx, "scan already finished, nothing to do", zap.String("status", string(scan.Status)))

		return nil
	}

	targets, err := buildTargets(URL, subdomains)
	if err != nil {
		// accepted requests were validated, reaching this point means the job
		// args no longer describe what was accepted
		return s.fail(ctx, scan, msgInvalidJob, err)
	}

	scan.Status = domain.ScanStatusRunning
	if _, err := s.storage.SaveScan(ctx, *scan); err != nil {
		return s.fail(ctx, scan, msgStorageDown, err)
	}

	s.recorder.ScanStarted(ctx)

	session, err := s.launcher.Launch(ctx)
	if err != nil {
		return s.fail(ctx, scan, msgBrowserStart, err)
	}
	defer session.Close(ctx)

	siteRoot := registrableDomain(hostOnly(targets[0].URL))
	cookies := newCollector()

	for i, target := range targets {
		tctx := logger.WithFields(ctx,
			zap.String("subdomain", target.SubdomainLabel),
			zap.String("target", target.URL))

		if err := s.processTarget(tctx, session, scan, cookies, target, siteRoot); err != nil {
			if i == 0 {
				// nothing was reachable on the root target, the scan cannot
				// produce a meaningful result
				return s.fail(tctx, scan, msgRootUnreachable, err)
			}

			s.recorder.TargetSkipped(tctx)
			logger.Warn(tctx, "skipping unreachable target", zap.Error(err))
		}
	}

	// sites keep setting cookies while the session is open, catch what
	// arrived after the last per-target pass without re-filing records the
	// targets already produced
	s.capture(ctx, session, scan, cookies, targets[0], siteRoot, true)

	scan.Status = domain.ScanStatusCompleted
	if err := s.finish(ctx, scan); err != nil {
		return err
	}

	s.recorder.ScanCompleted(ctx)
	logger.Info(ctx, "scan completed", zap.Int("cookies", scan.TotalCookies()))

	return nil
}

// processTarget walks one target through the scan phases. Only a navigation
// failure is returned to the caller; every later phase degrades to a log line
// so one broken page element cannot lose the cookies already discovered.
func (s scanner) processTarget(ctx context.Context,
	session browser.Session,
	scan *domain.ScanResult,
	cookies *collector,
	target domain.ScanTarget,
	siteRoot string) error {
	stopNav := s.recorder.TrackPhase(ctx, phaseNavigate)
	err := session.Navigate(ctx, target.URL)
	stopNav()
	if err != nil {
		return fmt.Errorf("could not navigate to %s: %w", target.URL, err)
	}

	stopConsent := s.recorder.TrackPhase(ctx, phaseConsent)
	dismissed := session.DismissConsent(ctx, s.options.ConsentTimeout)
	stopConsent()
	if dismissed {
		logger.Debug(ctx, "consent banner dismissed")
		sleepCtx(ctx, s.options.ConsentSettle)
		s.capture(ctx, session, scan, cookies, target, siteRoot, false)
	}

	stopInteraction := s.recorder.TrackPhase(ctx, phaseInteraction)
	if err := session.SimulateInteraction(ctx); err != nil {
		logger.Warn(ctx, "interaction simulation failed", zap.Error(err))
	}
	stopInteraction()

	s.capture(ctx, session, scan, cookies, target, siteRoot, false)
	s.captureFrames(ctx, session, scan, cookies, target)

	return nil
}

// capture runs one capture pass on the current page: snapshot the cookie jar,
// drain the Set-Cookie header observations, and ingest both under the
// target's label. With catchAll set only cookies no label recorded yet are
// accepted, which is how the final pass avoids duplicating earlier records.
func (s scanner) capture(ctx context.Context,
	session browser.Session,
	scan *domain.ScanResult,
	cookies *collector,
	target domain.ScanTarget,
	siteRoot string,
	catchAll bool) {
	stop := s.recorder.TrackPhase(ctx, phaseCapture)
	defer stop()

	jar, err := session.Cookies(ctx)
	if err != nil {
		logger.Warn(ctx, "could not read browser cookies", zap.Error(err))
	}
	observed := jar

	for _, o := range session.TakeHeaderObservations() {
		cookie, ok := parseSetCookie(o.Header, o.ResponseURL)
		if !ok {
			logger.Debug(ctx, "dropping unparseable Set-Cookie header", zap.String("header", o.Header))

			continue
		}
		observed = append(observed, cookie)
	}

	var records []domain.CookieRecord
	if catchAll {
		records = cookies.mergeUnrecorded(observed, target.SubdomainLabel, target.URL, siteRoot)
	} else {
		records = cookies.merge(observed, target.SubdomainLabel, target.URL, siteRoot)
	}

	s.ingest(ctx, scan, target.SubdomainLabel, records)
}

// captureFrames inspects the rendered page for child frames and captures the
// jar cookies scoped to each frame host. Frame cookies are classified against
// the frame's own root domain but still attributed to the parent target's
// label.
func (s scanner) captureFrames(ctx context.Context,
	session browser.Session,
	scan *domain.ScanResult,
	cookies *collector,
	target domain.ScanTarget) {
	stop := s.recorder.TrackPhase(ctx, phaseFrames)
	defer stop()

	html, err := session.HTML(ctx)
	if err != nil {
		logger.Warn(ctx, "could not read page HTML for frames", zap.Error(err))

		return
	}

	frames := frameURLs(html, target.URL)
	if len(frames) == 0 {
		return
	}

	jar, err := session.Cookies(ctx)
	if err != nil {
		logger.Warn(ctx, "could not read browser cookies", zap.Error(err))

		return
	}

	for _, frameURL := range frames {
		host := hostOnly(frameURL)
		if host == "" {
			continue
		}

		var scoped []browser.Cookie
		for _, cookie := range jar {
			if appliesTo(cookie.Domain, host) {
				scoped = append(scoped, cookie)
			}
		}
		if len(scoped) == 0 {
			continue
		}

		logger.Debug(ctx, "capturing frame cookies",
			zap.String("frame", frameURL),
			zap.Int("candidates", len(scoped)))

		records := cookies.merge(scoped, target.SubdomainLabel, frameURL, registrableDomain(host))
		s.ingest(ctx, scan, target.SubdomainLabel, records)
	}
}

// ingest enriches a batch of freshly deduplicated records through the
// categorizer and appends it to the scan document, flushing best effort.
func (s scanner) ingest(ctx context.Context,
	scan *domain.ScanResult,
	label string,
	records []domain.CookieRecord) {
	if len(records) == 0 {
		return
	}

	s.categorize(ctx, records)
	scan.AppendCookies(label, records)
	s.recorder.CookiesDiscovered(ctx, label, len(records))
	logger.Debug(ctx, "discovered cookies", zap.String("label", label), zap.Int("count", len(records)))

	s.flush(ctx, scan)
}

// categorize enriches a batch of fresh records in place, one upstream round
// trip per batch. Names the categorizer knows nothing about keep their
// placeholder values.
func (s scanner) categorize(ctx context.Context, records []domain.CookieRecord) {
	names := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		if _, ok := seen[record.Name]; ok {
			continue
		}
		seen[record.Name] = struct{}{}
		names = append(names, record.Name)
	}

	found := s.categorizer.Categorize(ctx, names)
	if len(found) == 0 {
		return
	}

	for i := range records {
		c, ok := found[records[i].Name]
		if !ok {
			continue
		}

		if c.Category != "" {
			records[i].Category = c.Category
		}
		if c.Description != "" {
			records[i].Description = c.Description
		}
		if c.Provider != "" {
			records[i].Provider = c.Provider
		}
	}
}

// flush persists the scan document best effort. A failed or unapplied flush
// is logged and otherwise ignored; discovered cookies stay in memory and ride
// along with the next flush.
func (s scanner) flush(ctx context.Context, scan *domain.ScanResult) {
	updated, err := s.storage.SaveScan(ctx, *scan)
	switch {
	case err != nil:
		logger.Warn(ctx, "could not flush scan progress", zap.Error(err))
	case updated == nil:
		logger.Warn(ctx, "scan progress flush was not applied")
	}
}

// finish writes the terminal status. Unlike intermediate flushes a failure
// here is returned to the caller, the scan would otherwise stay RUNNING
// forever without anyone noticing.
func (s scanner) finish(ctx context.Context, scan *domain.ScanResult) error {
	updated, err := s.storage.SaveScan(ctx, *scan)
	if err != nil {
		return fmt.Errorf("could not persist terminal scan status: %w", err)
	}
	if updated == nil {
		logger.Warn(ctx, "terminal status write was not applied, scan already finished")
	}

	return nil
}

// fail marks the scan FAILED with a sanitized message and reports the
// underlying cause to the caller. The cause only ever reaches the log.
func (s scanner) fail(ctx context.Context, scan *domain.ScanResult, message string, cause error) error {
	logger.Error(ctx, "scan failed", zap.String("reason", message), zap.Error(cause))

	scan.Status = domain.ScanStatusFailed
	scan.ErrorMessage = message
	if err := s.finish(ctx, scan); err != nil {
		logger.Error(ctx, "could not persist failed scan", zap.Error(err))
	}

	s.recorder.ScanFailed(ctx)

	return fmt.Errorf("scan failed: %s: %w", message, cause)
}

// sleepCtx waits for the given duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
