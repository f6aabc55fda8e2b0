// Package transport implements the wire client for the ycl catalog.
//
// Every header, including the protocol pseudo-headers, is constructed
// explicitly in a fixed order, so nothing the Go HTTP stack would auto-inject
// can trip the backend's bot detection. The client negotiates HTTP/2 first
// and falls back once to HTTP/1.1 when the binary protocol is unavailable
// or fails mid-flight.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/tidwall/gjson"

	"github.com/openshelf/fedcat/config"
	"github.com/openshelf/fedcat/models"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every fallback connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Should never happen with a valid utls version; the fallback path
		// then uses HelloChrome_Auto as-is.
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Client speaks to a single authority with explicit header crafting.
// It is safe for concurrent use; every request opens its own connection
// (no cross-request connection or session reuse).
type Client struct {
	authority     string
	scheme        string
	primaryCookie string
	timeout       time.Duration
	retries       int
	log           *slog.Logger
}

// NewClient creates a wire client for the given authority.
// primaryCookie names the session cookie the sanitizer preserves.
func NewClient(cfg config.TransportConfig, authority, scheme, primaryCookie string, log *slog.Logger) *Client {
	return &Client{
		authority:     authority,
		scheme:        scheme,
		primaryCookie: primaryCookie,
		timeout:       cfg.Timeout,
		retries:       cfg.Retries,
		log:           log,
	}
}

// Response is one decoded wire response. Body is already decompressed.
// Header keys are lower-cased; repeated set-cookie values are newline-joined.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Header returns the named (lower-cased) header or "".
func (r *Response) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// IsJSON reports whether the response advertises a JSON body.
func (r *Response) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.Header("content-type")), "application/json")
}

// IsHTML reports whether the response advertises an HTML body. For the ycl
// API this signals a redirect to a login page rather than real content.
func (r *Response) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.Header("content-type")), "text/html")
}

// JSON parses the body when the content type is JSON. A parse failure or a
// non-JSON content type yields ok=false: no structured body, not an error.
func (r *Response) JSON() (gjson.Result, bool) {
	if !r.IsJSON() || !gjson.ValidBytes(r.Body) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(r.Body), true
}

// Request performs one HTTP exchange against the client's authority.
// GET requests are retried on transport-level failure up to the configured
// budget; HTTP error statuses are returned to the caller, never retried.
func (c *Client) Request(ctx context.Context, method, path string, overrides map[string]string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attempts := 1
	if method == http.MethodGet {
		attempts += c.retries
	}

	fields := buildFields(method, c.authority, c.scheme, path, c.referer(), overrides, c.primaryCookie)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.roundTrip(ctx, fields)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.log.Warn("transport attempt failed",
			"authority", c.authority, "path", path, "attempt", attempt+1, "error", err)
	}
	return nil, models.NewFedError(models.KindTransient,
		fmt.Sprintf("request to %s failed after %d attempts", c.authority, attempts), lastErr)
}

// referer mimics in-app navigation: the catalog UI root.
func (c *Client) referer() string {
	return c.scheme + "://" + hostOnly(c.authority) + "/"
}

// roundTrip opens a fresh connection and performs one exchange,
// h2-first with a single h1 fallback.
func (c *Client) roundTrip(ctx context.Context, fields []Field) (*Response, error) {
	if c.scheme == "http" {
		// Plaintext authorities (tests, internal mirrors) only speak the
		// text protocol.
		conn, err := c.dialPlain(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		return c.roundTripH1(ctx, conn, fields)
	}

	conn, err := c.dialTLS(ctx, tls.HelloChrome_Auto, nil)
	if err != nil {
		return nil, err
	}

	if conn.ConnectionState().NegotiatedProtocol == "h2" {
		resp, h2Err := c.roundTripH2(ctx, conn, fields)
		conn.Close()
		if h2Err == nil {
			return resp, nil
		}
		c.log.Warn("binary protocol failed, falling back to text protocol",
			"authority", c.authority, "error", h2Err)
		h1Conn, dialErr := c.dialTLS(ctx, tls.HelloCustom, &chromeH1Spec)
		if dialErr != nil {
			return nil, dialErr
		}
		defer h1Conn.Close()
		return c.roundTripH1(ctx, h1Conn, fields)
	}

	defer conn.Close()
	return c.roundTripH1(ctx, conn, fields)
}

func (c *Client) addr() string {
	if _, _, err := net.SplitHostPort(c.authority); err == nil {
		return c.authority
	}
	if c.scheme == "http" {
		return net.JoinHostPort(c.authority, "80")
	}
	return net.JoinHostPort(c.authority, "443")
}

func (c *Client) dialPlain(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", c.addr(), err)
	}
	applyDeadline(ctx, conn)
	return conn, nil
}

// dialTLS establishes a utls connection with a Chrome fingerprint.
func (c *Client) dialTLS(ctx context.Context, helloID tls.ClientHelloID, spec *tls.ClientHelloSpec) (*tls.UConn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", c.addr(), err)
	}

	tlsConn := tls.UClient(rawConn, &tls.Config{ServerName: hostOnly(c.authority)}, helloID)
	if spec != nil {
		if err := tlsConn.ApplyPreset(spec); err != nil {
			rawConn.Close()
			return nil, fmt.Errorf("transport: apply tls spec: %w", err)
		}
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("transport: tls handshake %s: %w", c.authority, err)
	}
	applyDeadline(ctx, tlsConn)
	return tlsConn, nil
}

func applyDeadline(ctx context.Context, conn net.Conn) {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
}

func hostOnly(authority string) string {
	if host, _, err := net.SplitHostPort(authority); err == nil {
		return host
	}
	return authority
}

// finish decodes the body and assembles the Response.
func finish(status int, headers map[string]string, raw []byte) (*Response, error) {
	body, err := decodeBody(raw, headers["content-encoding"])
	if err != nil {
		return nil, err
	}
	return &Response{Status: status, Headers: headers, Body: body}, nil
}
