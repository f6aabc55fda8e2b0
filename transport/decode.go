package transport

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// maxBody caps decompressed response bodies at 10 MB.
const maxBody = 10 << 20

// decodeBody decompresses raw according to the advertised Content-Encoding.
// Unknown or empty encodings pass through untouched.
func decodeBody(raw []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("transport: gzip: %w", err)
		}
		defer r.Close()
		return readCapped(r)
	case "deflate":
		// Some servers send raw DEFLATE, others zlib-wrapped. Sniff the
		// zlib magic first.
		if len(raw) >= 2 && raw[0] == 0x78 {
			if r, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
				defer r.Close()
				return readCapped(r)
			}
		}
		r := flate.NewReader(bytes.NewReader(raw))
		defer r.Close()
		return readCapped(r)
	case "br":
		return readCapped(brotli.NewReader(bytes.NewReader(raw)))
	default:
		return raw, nil
	}
}

func readCapped(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBody))
	if err != nil {
		return nil, fmt.Errorf("transport: decompress: %w", err)
	}
	return body, nil
}
