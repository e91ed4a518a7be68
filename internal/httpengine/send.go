package httpengine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Send issues built over the network, bounded by the engine's concurrency
// semaphore, and returns the completed Exchange. start is recorded before
// the request is dispatched (not before Send is called), so time spent
// waiting for a free send slot isn't counted as request latency.
func (e *Engine) Send(ctx context.Context, built *BuiltRequest) (*Exchange, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, &RequestError{Request: built, Cause: err}
	}
	defer e.release()

	u, err := url.Parse(built.URL)
	if err != nil {
		return nil, &RequestError{Request: built, Cause: err}
	}

	start := time.Now()

	var bodyReader io.Reader
	var contentLength int64 = -1
	switch {
	case built.BodyPath != "":
		f, err := os.Open(built.BodyPath)
		if err != nil {
			return nil, &RequestError{Request: built, Cause: err}
		}
		// http.Client closes the request body once the round trip
		// finishes, so the *os.File doesn't need an explicit Close here.
		bodyReader = f
		if fi, err := f.Stat(); err == nil {
			contentLength = fi.Size()
		}
	case built.Body != nil:
		bodyReader = bytes.NewReader(built.Body)
	}
	req, err := http.NewRequestWithContext(ctx, built.Method, built.URL, bodyReader)
	if err != nil {
		return nil, &RequestError{Request: built, Cause: err}
	}
	if contentLength >= 0 {
		req.ContentLength = contentLength
	}
	req.Header = built.httpHeader()

	client := e.clientFor(u.Hostname())
	resp, err := client.Do(req)
	if err != nil {
		return nil, &RequestError{Request: built, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Request: built, Cause: err}
	}

	return &Exchange{
		Request:     built,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Body:        respBody,
		HTTPVersion: resp.Proto,
		StartTime:   start,
		EndTime:     time.Now(),
	}, nil
}
