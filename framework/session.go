package framework

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const (
	defaultRequestTimeout = time.Second * 10
	maxLoggedBodyLength   = 2000
)

// ErrSessionClosed is returned by Do after the session has been closed.
var ErrSessionClosed = errors.New("HTTP session is already closed")

// SessionOptions configures a Session.
type SessionOptions struct {
	// Timeout applies to each request. Zero means the default of 10 seconds.
	Timeout time.Duration

	// DefaultHeaders are sent with every request. Content-Type: application/json is always
	// included unless explicitly overridden here.
	DefaultHeaders map[string]string

	// Transport replaces the default HTTP transport; tests use this.
	Transport http.RoundTripper
}

// Session is the single HTTP client shared by every test in a run. It is created lazily on first
// use and closed exactly once at the end of the run. Nothing about it is mutated by tests, so it
// is safe to share.
type Session struct {
	opts       SessionOptions
	headers    http.Header
	client     *http.Client
	createOnce sync.Once
	closeOnce  sync.Once
	created    int32
	closed     int32
}

// SessionStats reports how many times the underlying client was created and closed.
type SessionStats struct {
	Created int
	Closed  int
}

// Request describes one HTTP call made through the session.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string

	// Body, if not nil, is marshaled as JSON.
	Body interface{}
}

// Response is a fully-read HTTP response. The body is always kept as raw bytes so that it can be
// shown when an assertion fails; JSON is the parsed body, or a null value if the body was not JSON.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	JSON       ldvalue.Value
}

// IsJSON is true if the body parsed as JSON.
func (r *Response) IsJSON() bool {
	return len(bytes.TrimSpace(r.Body)) > 0 && json.Valid(r.Body)
}

func (r *Response) String() string {
	return fmt.Sprintf("%s %s -> %d %s", r.Method, r.URL, r.StatusCode, truncate(string(r.Body)))
}

// NewSession creates a Session. No connections are made until the first request.
func NewSession(opts SessionOptions) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	for k, v := range opts.DefaultHeaders {
		headers.Set(k, v)
	}
	return &Session{opts: opts, headers: headers}
}

// Client returns the underlying HTTP client, creating it on first use.
func (s *Session) Client() *http.Client {
	s.createOnce.Do(func() {
		transport := s.opts.Transport
		if transport == nil {
			transport = http.DefaultTransport.(*http.Transport).Clone()
		}
		s.client = &http.Client{Timeout: s.opts.Timeout, Transport: transport}
		atomic.AddInt32(&s.created, 1)
	})
	return s.client
}

// DefaultHeaders returns a copy of the headers added to every request.
func (s *Session) DefaultHeaders() http.Header {
	return s.headers.Clone()
}

// Do sends a request and reads the whole response. Transport errors are returned as-is, wrapped
// with the method and URL; the session never retries.
func (s *Session) Do(ctx context.Context, r Request, logger Logger) (*Response, error) {
	if atomic.LoadInt32(&s.closed) != 0 {
		return nil, ErrSessionClosed
	}
	if logger == nil {
		logger = NullLogger()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := r.URL
	if len(r.Query) > 0 {
		u, err := url.Parse(r.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", r.URL, err)
		}
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var body io.Reader
	var bodyData []byte
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyData = data
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", r.Method, target, err)
	}
	for k, vs := range s.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	if bodyData != nil {
		logger.Printf("Request: %s %s %s", r.Method, target, truncate(string(bodyData)))
	} else {
		logger.Printf("Request: %s %s", r.Method, target)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		logger.Printf("Transport error: %s", err)
		return nil, fmt.Errorf("%s %s: %w", r.Method, target, err)
	}
	defer resp.Body.Close()
	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body of %s %s: %w", r.Method, target, err)
	}

	ret := &Response{
		Method:     r.Method,
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respData,
		JSON:       ldvalue.Null(),
	}
	if ret.IsJSON() {
		ret.JSON = ldvalue.Parse(respData)
	}
	logger.Printf("Response: %d %s", resp.StatusCode, truncate(string(respData)))
	return ret, nil
}

// AwaitReachable waits until the given URL produces any HTTP response at all, whatever its
// status. It is used once at startup so that a deployment that is still coming up does not make
// every test fail with a connection error.
func (s *Session) AwaitReachable(ctx context.Context, target string, timeout time.Duration, output io.Writer) error {
	if output == nil {
		output = io.Discard
	}
	fmt.Fprintf(output, "Connecting to %s", target)
	defer fmt.Fprintln(output)

	_, err := backoff.Retry(ctx, func() (int, error) {
		fmt.Fprint(output, ".")
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}
		resp, err := s.Client().Do(req)
		if err != nil {
			return 0, err
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	},
		backoff.WithBackOff(newProbeBackOff()),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err != nil {
		return fmt.Errorf("%s was not reachable within %s: %w", target, timeout, err)
	}
	return nil
}

func newProbeBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond * 100
	b.MaxInterval = time.Second * 2
	return b
}

// Close releases the session. Only the first call has any effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		if s.client != nil {
			s.client.CloseIdleConnections()
		}
	})
}

// Stats reports lifecycle counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Created: int(atomic.LoadInt32(&s.created)),
		Closed:  int(atomic.LoadInt32(&s.closed)),
	}
}

func truncate(s string) string {
	if len(s) <= maxLoggedBodyLength {
		return s
	}
	return s[:maxLoggedBodyLength] + "...(truncated)"
}
