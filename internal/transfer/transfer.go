// Package transfer carries internal/sync's card stream over HTTP
// (§4.5 "Transport framing"): POST framing, the two content types,
// the /xfer path, redirect and Connection:-close handling on the
// client side, plus the ETag and load-shedding helpers §2/§4
// (supplemented from original_source/src/etag.c and loadctrl.c) call
// for under "Supporting primitives".
package transfer

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/fossilgo/fossilgo/internal/errs"
)

// ContentTypeCompressed is the default wire content type: the card
// stream zlib-compressed.
const ContentTypeCompressed = "application/x-fossil"

// ContentTypeDebug is the uncompressed, human-readable wire content
// type, used with a debug flag to inspect a session's traffic.
const ContentTypeDebug = "application/x-fossil-debug"

// XferPath is the HTTP path every sync round-trip POSTs to.
const XferPath = "/xfer"

// maxResponseBytes bounds a single round-trip's response body, the
// same defensive cap the teacher's template fetcher applies to avoid
// unbounded memory growth from a misbehaving or hostile peer.
const maxResponseBytes = 64 * 1024 * 1024

// NewHTTPClient builds an *http.Client configured for sync traffic:
// a generous timeout (sync round-trips can carry large file cards),
// redirect-following capped at 5 hops and restricted to the original
// host, and no implicit cookie jar since session state travels in the
// card stream itself.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) == 0 {
				return nil
			}
			if req.URL.Host != via[0].URL.Host {
				return errors.New("sync redirect to different host blocked")
			}
			if len(via) >= 5 {
				return errors.New("too many sync redirects")
			}
			return nil
		},
	}
}

// RoundTrip POSTs one card-stream payload to baseURL+XferPath and
// returns the peer's reply payload, decompressing it if the response
// carries ContentTypeCompressed. debug selects ContentTypeDebug
// (uncompressed) for the outbound request, matching fossil's own
// "--httptrace"-style debugging affordance.
func RoundTrip(ctx context.Context, client *http.Client, baseURL string, payload []byte, debug bool) ([]byte, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryProtocol, "parse sync endpoint")
	}
	target.Path = joinPath(target.Path, XferPath)

	body := payload
	contentType := ContentTypeCompressed
	if debug {
		contentType = ContentTypeDebug
	} else {
		compressed, err := deflateZlib(payload)
		if err != nil {
			return nil, errs.Wrap(err, errs.CategoryInternal, "compress sync payload")
		}
		body = compressed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryProtocol, "build sync request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Connection", "close") // each round-trip is independent; §4.5 permits closing between them

	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.WrapRetryable(err, errs.CategoryProtocol, "sync round-trip")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.CategoryProtocol, fmt.Sprintf("sync round-trip: HTTP %d", resp.StatusCode))
	}

	limited := io.LimitReader(resp.Body, maxResponseBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryProtocol, "read sync response")
	}
	if len(data) > maxResponseBytes {
		return nil, errs.New(errs.CategoryProtocol, "sync response too large")
	}

	// §6 "server hosts that respond with Connection: close are honored":
	// golang.org/x/net's httpguts does the token-list parsing (a
	// Connection header can legally carry several comma-separated
	// tokens, only one of which is "close") that net/http itself
	// keeps unexported.
	if httpguts.HeaderValuesContainsToken(resp.Header["Connection"], "close") {
		if t, ok := client.Transport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	}

	if resp.Header.Get("Content-Type") == ContentTypeCompressed {
		return inflateZlib(data)
	}
	return data, nil
}

func joinPath(base, add string) string {
	switch {
	case base == "" || base == "/":
		return add
	default:
		return base + add
	}
}

func deflateZlib(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflateZlib(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, errs.CorruptBlob("invalid zlib sync payload: " + err.Error())
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ETag computes a conditional-GET token for rid from its content hash
// and the repository's cfgcnt counter (original_source/src/etag.c:
// the etag changes whenever either the content or the repo's
// config-generation counter changes, so a stale cached copy is
// invalidated by any config mutation even if rid's own bytes did
// not change).
func ETag(content []byte, cfgcnt int64) string {
	h := sha1.New()
	h.Write(content)
	fmt.Fprintf(h, ":%d", cfgcnt)
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
