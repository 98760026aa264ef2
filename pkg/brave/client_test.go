package brave

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/web/search", r.URL.Path)
		assert.Equal(t, "pymes en colombia", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		assert.Equal(t, "test-token", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": {"original": "pymes en colombia"},
			"web": {"results": [
				{"title": "Acme Logistics", "url": "https://acme.co", "description": "Freight in Bogotá"},
				{"title": "Beta Foods", "url": "https://betafoods.com.co/", "description": "Snacks", "age": "2 days ago"}
			]}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", WithBaseURL(srv.URL))
	resp, err := client.WebSearch(context.Background(), "pymes en colombia", 5)

	require.NoError(t, err)
	require.Len(t, resp.Results(), 2)
	assert.Equal(t, "pymes en colombia", resp.Query.Original)
	assert.Equal(t, "Acme Logistics", resp.Results()[0].Title)
	assert.Equal(t, "https://acme.co", resp.Results()[0].URL)
	assert.Equal(t, "Freight in Bogotá", resp.Results()[0].Description)
	assert.Equal(t, "2 days ago", resp.Results()[1].Age)
}

func TestWebSearch_CountClamped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL)).WebSearch(context.Background(), "q", 50)
	require.NoError(t, err)
	assert.Empty(t, resp.Results())
}

func TestWebSearch_NoCountParam(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("count"))
		_, _ = w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).WebSearch(context.Background(), "q", 0)
	require.NoError(t, err)
}

func TestWebSearch_APIError(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"ErrorResponse","error":{"code":"RATE_LIMITED"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).WebSearch(context.Background(), "q", 5)

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "RATE_LIMITED")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestWebSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).WebSearch(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestWebSearch_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("k", WithBaseURL(srv.URL)).WebSearch(ctx, "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestResults_Nil(t *testing.T) {
	var r *SearchResponse
	assert.Nil(t, r.Results())
}
