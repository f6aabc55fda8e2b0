package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// roundTripH1 performs one exchange over the text protocol. The request line
// and header block are written by hand so the field order from buildFields is
// preserved; pseudo-header keys are stripped and the authority travels as a
// host header instead.
func (c *Client) roundTripH1(ctx context.Context, conn net.Conn, fields []Field) (*Response, error) {
	method, path := "GET", "/"
	for _, f := range fields {
		switch f.Name {
		case ":method":
			method = f.Value
		case ":path":
			path = f.Value
		}
	}

	var req strings.Builder
	fmt.Fprintf(&req, "%s %s HTTP/1.1\r\n", method, path)
	fmt.Fprintf(&req, "host: %s\r\n", c.authority)
	for _, f := range fields {
		if strings.HasPrefix(f.Name, ":") {
			continue
		}
		fmt.Fprintf(&req, "%s: %s\r\n", f.Name, f.Value)
	}
	req.WriteString("connection: close\r\n\r\n")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(conn, req.String()); err != nil {
		return nil, fmt.Errorf("transport: h1 write: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: h1 read: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("transport: h1 body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		for _, v := range values {
			appendHeader(headers, name, v)
		}
	}

	return finish(resp.StatusCode, headers, raw)
}
