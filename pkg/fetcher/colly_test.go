package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-news-etl/pkg/retry"
)

func TestNewColly(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f := NewColly(Config{})
		assert.Equal(t, DefaultUserAgent, f.config.UserAgent)
		assert.Equal(t, DefaultTimeout, f.config.Timeout)
		assert.Zero(t, f.retry.MaxRetries)
	})
	t.Run("custom", func(t *testing.T) {
		f := NewColly(Config{UserAgent: "news-etl-test", Timeout: 3 * time.Second})
		assert.Equal(t, "news-etl-test", f.config.UserAgent)
		assert.Equal(t, 3*time.Second, f.config.Timeout)
	})
}

func TestCollyFetcher_FetchBytes(t *testing.T) {
	const page = `<html><body><article><h2>T</h2><p>D</p></article></body></html>`

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(page))
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	f := NewColly(Config{UserAgent: "news-etl-test", Timeout: 5 * time.Second})

	t.Run("successful fetch", func(t *testing.T) {
		body, err := f.FetchBytes(context.Background(), server.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, page, string(body))
		assert.Equal(t, "news-etl-test", gotUA)
	})

	t.Run("not found is an error", func(t *testing.T) {
		body, err := f.FetchBytes(context.Background(), server.URL+"/missing")
		assert.Error(t, err)
		assert.Nil(t, body)
	})

	t.Run("server error is an error", func(t *testing.T) {
		body, err := f.FetchBytes(context.Background(), server.URL+"/boom")
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
		assert.Nil(t, body)
	})

	t.Run("connection refused", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		closedURL := closed.URL
		closed.Close()

		body, err := f.FetchBytes(context.Background(), closedURL+"/ok")
		assert.Error(t, err)
		assert.Nil(t, body)
	})
}

func TestCollyFetcher_Retry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch {
		case r.URL.Path == "/missing":
			http.NotFound(w, r)
		case n < 3:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	defer server.Close()

	fast := retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	f := NewColly(Config{Timeout: 5 * time.Second, Retry: &fast})

	t.Run("5xx はリトライする", func(t *testing.T) {
		calls.Store(0)
		body, err := f.FetchBytes(context.Background(), server.URL+"/flaky")
		require.NoError(t, err)
		assert.Equal(t, "ok", string(body))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("4xx はリトライしない", func(t *testing.T) {
		calls.Store(0)
		_, err := f.FetchBytes(context.Background(), server.URL+"/missing")
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, shouldRetry(&StatusError{StatusCode: http.StatusBadGateway}))
	assert.True(t, shouldRetry(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, shouldRetry(&StatusError{StatusCode: http.StatusForbidden}))
	assert.True(t, shouldRetry(errors.New("connection reset by peer")))
	assert.False(t, shouldRetry(context.DeadlineExceeded))
}
