package chromium

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cookiescan/pkg/logger"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// consentSelectors matches the accept buttons of the consent platforms most
// commonly embedded on public sites. Checked in order, first hit wins.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"#CybotCookiebotDialogBodyButtonAccept",
	"#didomi-notice-agree-button",
	"#truste-consent-button",
	".qc-cmp2-summary-buttons button[mode='primary']",
	".fc-button.fc-cta-consent",
	"#L2AGLb",
	"button[data-testid='uc-accept-all-button']",
	"#axeptio_btn_acceptAll",
}

// consentTexts are matched case-insensitively against button labels when no
// known platform selector is present.
var consentTexts = []string{
	"accept all",
	"allow all",
	"accept cookies",
	"i agree",
	"agree",
	"accept",
}

const consentPollInterval = 250 * time.Millisecond

func consentScript() string {
	selectors, _ := json.Marshal(consentSelectors)
	texts, _ := json.Marshal(consentTexts)

	return fmt.Sprintf(`(() => {
	const selectors = %s;
	for (const sel of selectors) {
		let el;
		try { el = document.querySelector(sel); } catch (e) { continue; }
		if (el) { el.click(); return true; }
	}
	const texts = %s;
	const candidates = document.querySelectorAll("button, [role='button'], input[type='button'], a");
	for (const el of candidates) {
		const label = (el.innerText || el.value || "").trim().toLowerCase();
		if (label.length === 0 || label.length > 40) { continue; }
		if (texts.some((t) => label === t)) { el.click(); return true; }
	}
	return false;
})()`, selectors, texts)
}

// DismissConsent polls for a recognizable consent banner and clicks its
// accept control. Banners often render a beat after the page settles, so a
// single probe is not enough. Failure is reported, never returned.
func (s *session) DismissConsent(ctx context.Context, timeout time.Duration) bool {
	tctx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()

	script := consentScript()
	ticker := time.NewTicker(consentPollInterval)
	defer ticker.Stop()

	for {
		var clicked bool
		if err := chromedp.Run(tctx, chromedp.Evaluate(script, &clicked)); err != nil {
			logger.Debug(ctx, "consent probe failed", zap.Error(err))

			return false
		}
		if clicked {
			return true
		}

		select {
		case <-tctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
