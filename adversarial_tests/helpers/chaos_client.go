package helpers

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ChaosMode defines the type of chaos to inject
type ChaosMode int

const (
	// ChaosNone passes requests through untouched
	ChaosNone ChaosMode = iota

	// ChaosConnectionReset fails the round trip before it reaches the server
	ChaosConnectionReset

	// ChaosPartialRead truncates the body and fails the read
	ChaosPartialRead

	// ChaosSlowResponse holds the response for Delay or until the request is cancelled
	ChaosSlowResponse

	// ChaosInvalidJSON replaces a 2xx body with broken JSON
	ChaosInvalidJSON

	// ChaosEmptyBody replaces a 2xx body with nothing
	ChaosEmptyBody

	// ChaosIntermittent applies ConnectionReset with probability FailureRate
	ChaosIntermittent
)

// ErrConnectionReset is returned by ChaosConnectionReset.
var ErrConnectionReset = errors.New("connection reset by peer")

// ChaosTransport is an http.RoundTripper that injects failures in front of
// a real transport.
type ChaosTransport struct {
	Base        http.RoundTripper
	Mode        ChaosMode
	FailureRate float64
	Delay       time.Duration
	// PartialReadBytes is how much of the body survives ChaosPartialRead.
	// Zero keeps half.
	PartialReadBytes int

	mu       sync.Mutex
	rnd      *rand.Rand
	calls    atomic.Int64
	injected atomic.Int64
}

// NewChaosTransport creates a transport in the given mode over http.DefaultTransport.
func NewChaosTransport(mode ChaosMode, seed int64) *ChaosTransport {
	return &ChaosTransport{
		Base: http.DefaultTransport,
		Mode: mode,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// Client wraps the transport in an http.Client.
func (c *ChaosTransport) Client() *http.Client {
	return &http.Client{Transport: c, Timeout: 10 * time.Second}
}

// Calls returns the number of round trips attempted.
func (c *ChaosTransport) Calls() int64 { return c.calls.Load() }

// Injected returns the number of round trips that were sabotaged.
func (c *ChaosTransport) Injected() int64 { return c.injected.Load() }

func (c *ChaosTransport) mode() ChaosMode {
	if c.Mode != ChaosIntermittent {
		return c.Mode
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rnd.Float64() < c.FailureRate {
		return ChaosConnectionReset
	}
	return ChaosNone
}

// RoundTrip implements http.RoundTripper.
func (c *ChaosTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	mode := c.mode()

	switch mode {
	case ChaosNone:
		return c.Base.RoundTrip(req)

	case ChaosConnectionReset:
		c.injected.Add(1)
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrConnectionReset

	case ChaosSlowResponse:
		c.injected.Add(1)
		select {
		case <-time.After(c.Delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
		return c.Base.RoundTrip(req)
	}

	resp, err := c.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	c.injected.Add(1)

	switch mode {
	case ChaosPartialRead:
		keep := c.PartialReadBytes
		if keep <= 0 || keep >= len(body) {
			keep = len(body) / 2
		}
		resp.Body = &partialReadCloser{reader: bytes.NewReader(body[:keep])}
	case ChaosInvalidJSON:
		resp.Body = io.NopCloser(bytes.NewReader(append(body[:len(body)/2:len(body)/2], []byte(`,,}`)...)))
	case ChaosEmptyBody:
		resp.Body = io.NopCloser(bytes.NewReader(nil))
	}
	resp.ContentLength = -1
	resp.Header.Del("Content-Length")
	return resp, nil
}

// partialReadCloser yields its data and then fails instead of returning EOF.
type partialReadCloser struct {
	reader *bytes.Reader
}

func (p *partialReadCloser) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if err == io.EOF {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

func (p *partialReadCloser) Close() error {
	return nil
}
