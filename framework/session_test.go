package framework

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSendsHeadersAndJSONBody(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithJSONResponse(
		map[string]interface{}{"ok": true}, nil))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		s := NewSession(SessionOptions{DefaultHeaders: map[string]string{"apikey": "anon"}})
		defer s.Close()

		resp, err := s.Do(context.Background(), Request{
			Method:  http.MethodPost,
			URL:     server.URL + "/token",
			Query:   url.Values{"grant_type": {"password"}},
			Headers: map[string]string{"Authorization": "Bearer x"},
			Body:    map[string]string{"email": "a@example.com"},
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, resp.IsJSON())
		assert.True(t, resp.JSON.GetByKey("ok").BoolValue())

		r := <-requests
		assert.Equal(t, "/token", r.Request.URL.Path)
		assert.Equal(t, "password", r.Request.URL.Query().Get("grant_type"))
		assert.Equal(t, "application/json", r.Request.Header.Get("Content-Type"))
		assert.Equal(t, "anon", r.Request.Header.Get("apikey"))
		assert.Equal(t, "Bearer x", r.Request.Header.Get("Authorization"))
		assert.JSONEq(t, `{"email":"a@example.com"}`, string(r.Body))
	})
}

func TestSessionKeepsNonJSONBody(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithResponse(200, nil, []byte("<html>gateway</html>")), func(server *httptest.Server) {
		s := NewSession(SessionOptions{})
		resp, err := s.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, nil)
		require.NoError(t, err)

		assert.False(t, resp.IsJSON())
		assert.True(t, resp.JSON.IsNull())
		assert.Equal(t, "<html>gateway</html>", string(resp.Body))
		assert.Contains(t, resp.String(), "-> 200 <html>gateway</html>")
	})
}

func TestSessionLogsRequestAndResponse(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(http.StatusNoContent), func(server *httptest.Server) {
		var logger CapturingLogger
		s := NewSession(SessionOptions{})
		_, err := s.Do(context.Background(), Request{Method: http.MethodPost, URL: server.URL, Body: "x"}, &logger)
		require.NoError(t, err)

		out := logger.Output()
		require.Len(t, out, 2)
		assert.Equal(t, "Request: POST "+server.URL+` "x"`, out[0].Message)
		assert.Equal(t, "Response: 204 ", out[1].Message)
	})
}

func TestSessionClientIsCreatedOnceAndClosedOnce(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(http.StatusOK), func(server *httptest.Server) {
		s := NewSession(SessionOptions{})
		assert.Equal(t, SessionStats{}, s.Stats())

		for i := 0; i < 3; i++ {
			_, err := s.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, nil)
			require.NoError(t, err)
		}
		s.Close()
		s.Close()

		assert.Equal(t, SessionStats{Created: 1, Closed: 1}, s.Stats())
		_, err := s.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, nil)
		assert.True(t, errors.Is(err, ErrSessionClosed))
	})
}

func TestSessionReturnsTransportErrors(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(http.StatusOK))
	server.Close()

	s := NewSession(SessionOptions{Timeout: time.Second})
	_, err := s.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET "+server.URL)
}

func TestSessionTruncatesLongBodiesInLogs(t *testing.T) {
	long := strings.Repeat("a", maxLoggedBodyLength+10)
	assert.Equal(t, strings.Repeat("a", maxLoggedBodyLength)+"...(truncated)", truncate(long))
	assert.Equal(t, "short", truncate("short"))
}

func TestAwaitReachableAcceptsAnyStatus(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(http.StatusMethodNotAllowed), func(server *httptest.Server) {
		var out bytes.Buffer
		s := NewSession(SessionOptions{})
		require.NoError(t, s.AwaitReachable(context.Background(), server.URL, time.Second, &out))
		assert.Contains(t, out.String(), "Connecting to "+server.URL)
	})
}

func TestAwaitReachableGivesUp(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(http.StatusOK))
	server.Close()

	s := NewSession(SessionOptions{Timeout: 100 * time.Millisecond})
	err := s.AwaitReachable(context.Background(), server.URL, 300*time.Millisecond, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not reachable within 300ms")
}
