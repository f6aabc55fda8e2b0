package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// h2Preface is the fixed client connection preface.
const h2Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// roundTripH2 performs a single request/response exchange over a fresh h2
// connection using the framer directly. Driving the framer by hand keeps the
// HEADERS frame's field order exactly as constructed; http2.Transport would
// reorder and inject its own fields.
func (c *Client) roundTripH2(ctx context.Context, conn net.Conn, fields []Field) (*Response, error) {
	if _, err := io.WriteString(conn, h2Preface); err != nil {
		return nil, fmt.Errorf("transport: h2 preface: %w", err)
	}

	fr := http2.NewFramer(conn, conn)
	fr.ReadMetaHeaders = hpack.NewDecoder(4096, nil)

	if err := fr.WriteSettings(
		http2.Setting{ID: http2.SettingEnablePush, Val: 0},
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: maxBody},
	); err != nil {
		return nil, fmt.Errorf("transport: h2 settings: %w", err)
	}

	var hbuf bytes.Buffer
	enc := hpack.NewEncoder(&hbuf)
	for _, f := range fields {
		if err := enc.WriteField(hpack.HeaderField{Name: strings.ToLower(f.Name), Value: f.Value}); err != nil {
			return nil, fmt.Errorf("transport: hpack encode %s: %w", f.Name, err)
		}
	}

	const streamID = 1
	if err := fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: hbuf.Bytes(),
		EndStream:     true, // requests here never carry a body
		EndHeaders:    true,
	}); err != nil {
		return nil, fmt.Errorf("transport: h2 headers: %w", err)
	}

	status := 0
	headers := make(map[string]string)
	var body bytes.Buffer

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := fr.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("transport: h2 read frame: %w", err)
		}

		switch f := frame.(type) {
		case *http2.SettingsFrame:
			if !f.IsAck() {
				if err := fr.WriteSettingsAck(); err != nil {
					return nil, fmt.Errorf("transport: h2 settings ack: %w", err)
				}
			}
		case *http2.PingFrame:
			if !f.IsAck() {
				if err := fr.WritePing(true, f.Data); err != nil {
					return nil, fmt.Errorf("transport: h2 ping ack: %w", err)
				}
			}
		case *http2.WindowUpdateFrame:
			// Flow control for our (empty) request body; nothing to do.
		case *http2.MetaHeadersFrame:
			for _, hf := range f.Fields {
				if hf.Name == ":status" {
					status, _ = strconv.Atoi(hf.Value)
					continue
				}
				appendHeader(headers, hf.Name, hf.Value)
			}
			if f.StreamEnded() {
				return finish(status, headers, body.Bytes())
			}
		case *http2.DataFrame:
			if _, err := body.Write(f.Data()); err != nil {
				return nil, err
			}
			if body.Len() > maxBody {
				return nil, fmt.Errorf("transport: h2 body exceeds %d bytes", maxBody)
			}
			if n := uint32(len(f.Data())); n > 0 {
				// Replenish both windows so large bodies keep flowing.
				if err := fr.WriteWindowUpdate(0, n); err != nil {
					return nil, fmt.Errorf("transport: h2 window update: %w", err)
				}
				if err := fr.WriteWindowUpdate(streamID, n); err != nil {
					return nil, fmt.Errorf("transport: h2 window update: %w", err)
				}
			}
			if f.StreamEnded() {
				return finish(status, headers, body.Bytes())
			}
		case *http2.RSTStreamFrame:
			return nil, fmt.Errorf("transport: h2 stream reset: %v", f.ErrCode)
		case *http2.GoAwayFrame:
			return nil, fmt.Errorf("transport: h2 goaway: %v", f.ErrCode)
		}
	}
}

// appendHeader folds a repeated header into the flat map. set-cookie values
// are newline-joined so individual cookies stay recoverable; everything else
// joins with a comma per the usual folding rule.
func appendHeader(headers map[string]string, name, value string) {
	name = strings.ToLower(name)
	if existing, ok := headers[name]; ok {
		sep := ", "
		if name == "set-cookie" {
			sep = "\n"
		}
		headers[name] = existing + sep + value
		return
	}
	headers[name] = value
}
