package chromium

import (
	"strings"
	"time"

	"cookiescan/pkg/browser"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// listen installs the session-wide network listener. It tracks in-flight
// requests for the network-idle wait, correlates request ids to URLs and
// collects raw Set-Cookie headers as they arrive. Listener registrations
// live as long as the browsing context, so this is installed exactly once.
func (s *session) listen() {
	chromedp.ListenTarget(s.browserCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			s.noteRequest(e)
		case *network.EventLoadingFinished:
			s.noteSettled()
		case *network.EventLoadingFailed:
			s.noteSettled()
		case *network.EventResponseReceivedExtraInfo:
			s.noteSetCookie(e)
		}
	})
}

func (s *session) noteRequest(e *network.EventRequestWillBeSent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight++
	s.lastActivity = time.Now()
	if e.Request != nil {
		s.requestURLs[e.RequestID] = e.Request.URL
	}
}

func (s *session) noteSettled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight > 0 {
		s.inflight--
	}
	s.lastActivity = time.Now()
}

// noteSetCookie records every Set-Cookie line carried by a response. The CDP
// folds multiple Set-Cookie headers into one newline-separated value.
func (s *session) noteSetCookie(e *network.EventResponseReceivedExtraInfo) {
	var raw string
	for k, v := range e.Headers {
		if !strings.EqualFold(k, "set-cookie") {
			continue
		}
		if sv, ok := v.(string); ok {
			raw = sv
		}

		break
	}
	if raw == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	responseURL := s.requestURLs[e.RequestID]
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.observations = append(s.observations, browser.HeaderObservation{
			ResponseURL: responseURL,
			Header:      line,
		})
	}
}

// TakeHeaderObservations drains the Set-Cookie observations collected since
// the previous call.
func (s *session) TakeHeaderObservations() []browser.HeaderObservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.observations
	s.observations = nil

	return out
}
