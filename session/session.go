// Package session implements the ycl cookie-capture handshake.
//
// The catalog hands out its session cookie during a login redirect chain, so
// the only reliable way to obtain one is to drive a real browser tab through
// the auth URL and intercept the network traffic along the way.
package session

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/openshelf/fedcat/config"
)

// Acquirer obtains a per-request session cookie by navigating an auxiliary
// tab to the auth URL while recording every Set-Cookie seen on the wire.
type Acquirer struct {
	browser    *rod.Browser
	cookieName string
	timeout    time.Duration
	log        *slog.Logger
}

// NewAcquirer creates an Acquirer. cookieName is the tracked primary session
// cookie; Set-Cookie lines resetting it to empty are discarded.
func NewAcquirer(browser *rod.Browser, cookieName string, cfg config.SessionConfig, log *slog.Logger) *Acquirer {
	return &Acquirer{
		browser:    browser,
		cookieName: cookieName,
		timeout:    cfg.Timeout,
		log:        log,
	}
}

// Acquire navigates a fresh tab to authURL and returns a best-effort session
// token. Resolution order:
//
//  1. the first redirect (300–399) response matching authURL that itself
//     carried Set-Cookie;
//  2. the "; "-joined concatenation of every Set-Cookie observed en route;
//  3. the tab's live cookie jar, synthesized into name=value pairs.
//
// Each step fails independently; only when all three come up empty does
// Acquire return "". The auxiliary tab is closed best-effort.
func (a *Acquirer) Acquire(ctx context.Context, authURL string) string {
	page, err := a.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		a.log.Warn("session: failed to open auxiliary tab", "error", err)
		return ""
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			a.log.Debug("session: auxiliary tab close failed", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	p := page.Context(ctx)

	var (
		mu        sync.Mutex
		collected []string
		byRequest = make(map[proto.NetworkRequestID]string)
	)
	redirectCh := make(chan string, 1)

	record := func(id proto.NetworkRequestID, setCookie string) {
		filtered := FilterSetCookie(setCookie, a.cookieName)
		if filtered == "" {
			return
		}
		mu.Lock()
		collected = append(collected, filtered)
		if id != "" {
			byRequest[id] = filtered
		}
		mu.Unlock()
	}

	// Both listeners must be live before navigation starts or the first
	// hop's headers are lost.
	go p.EachEvent(
		func(e *proto.NetworkResponseReceivedExtraInfo) {
			if sc := headerValue(e.Headers, "set-cookie"); sc != "" {
				record(e.RequestID, sc)
			}
		},
		func(e *proto.NetworkRequestWillBeSent) {
			// Redirect hops surface as the redirectResponse of the follow-up
			// request, not as standalone response events.
			if e.RedirectResponse == nil {
				return
			}
			status := e.RedirectResponse.Status
			if status < 300 || status >= 400 || !sameEndpoint(e.RedirectResponse.URL, authURL) {
				return
			}
			sc := headerValue(e.RedirectResponse.Headers, "set-cookie")
			if sc == "" {
				mu.Lock()
				sc = byRequest[e.RequestID]
				mu.Unlock()
			}
			select {
			case redirectCh <- FilterSetCookie(sc, a.cookieName):
			default:
			}
		},
	)()

	go func() {
		if navErr := p.Navigate(authURL); navErr != nil {
			a.log.Debug("session: auth navigation did not settle", "url", authURL, "error", navErr)
		}
	}()

	var fromRedirect string
	select {
	case fromRedirect = <-redirectCh:
	case <-ctx.Done():
	}
	if fromRedirect != "" {
		a.log.Debug("session: cookie captured from auth redirect")
		return fromRedirect
	}

	mu.Lock()
	joined := strings.Join(collected, "; ")
	mu.Unlock()
	if joined != "" {
		a.log.Debug("session: cookie assembled from observed Set-Cookie headers", "count", len(collected))
		return joined
	}

	// Last resort: whatever the browser itself retained for the page.
	cookies, cookieErr := page.Cookies(nil)
	if cookieErr != nil {
		a.log.Debug("session: cookie jar read failed", "error", cookieErr)
		return ""
	}
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name != "" {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
	}
	if len(pairs) == 0 {
		return ""
	}
	a.log.Debug("session: cookie synthesized from browser jar", "count", len(pairs))
	return strings.Join(pairs, "; ")
}

// FilterSetCookie drops, line by line, any Set-Cookie line that resets the
// tracked session cookie to an empty value. Backends emit such lines to clear
// stale sessions during the login chain; accepting one would wipe the working
// session captured moments earlier.
func FilterSetCookie(value, tracked string) string {
	if value == "" {
		return ""
	}
	lines := strings.Split(value, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if tracked != "" && resetsToEmpty(trimmed, tracked) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

// resetsToEmpty reports whether the cookie line sets tracked to "".
func resetsToEmpty(line, tracked string) bool {
	name, rest, ok := strings.Cut(line, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), tracked) {
		return false
	}
	value := rest
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		value = rest[:i]
	}
	return strings.TrimSpace(value) == ""
}

// headerValue reads a header from a CDP header map, tolerating either casing.
func headerValue(headers proto.NetworkHeaders, name string) string {
	for key, v := range headers {
		if strings.EqualFold(key, name) {
			return v.Str()
		}
	}
	return ""
}

// sameEndpoint compares two URLs on host and path, ignoring query noise the
// auth flow appends along the way.
func sameEndpoint(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return strings.HasPrefix(a, b)
	}
	return strings.EqualFold(ua.Host, ub.Host) && ua.Path == ub.Path
}
