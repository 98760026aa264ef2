package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_CleanHTML(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><head><title>Acme Corp</title></head><body><h1>Welcome</h1></body></html>`))
	}))
	defer srv.Close()

	res := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, 200, res.StatusCode)
	assert.Contains(t, res.HTML, "Acme Corp")
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestHTTPFetcher_CustomUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer srv.Close()

	res := NewHTTPFetcher(WithUserAgent("LeadBot/2.0")).Fetch(context.Background(), srv.URL)
	require.NoError(t, res.Err)
	assert.Equal(t, "LeadBot/2.0", gotUA)
}

func TestHTTPFetcher_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<html><body>Not here</body></html>`))
	}))
	defer srv.Close()

	res := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, res.Err)
	assert.False(t, res.OK())
	assert.Empty(t, res.HTML)
	assert.Equal(t, 404, res.StatusCode)
	assert.Contains(t, res.Err.Error(), "status 404")
}

func TestHTTPFetcher_Cloudflare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cf-Ray", "abc123")
		w.WriteHeader(403)
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	res := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, res.Err)
	assert.Equal(t, BlockCloudflare, res.Block)
	assert.Contains(t, res.Err.Error(), "blocked (cloudflare)")
	assert.Empty(t, res.HTML)
}

func TestHTTPFetcher_JSShellKeepsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>App</title></head><noscript>You need to enable JavaScript</noscript></html>`))
	}))
	defer srv.Close()

	res := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, res.Err)
	assert.Equal(t, BlockJSShell, res.Block)
	assert.Contains(t, res.HTML, "<title>App</title>")
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	res := NewHTTPFetcher(WithTimeout(50*time.Millisecond)).Fetch(context.Background(), srv.URL)
	require.Error(t, res.Err)
	assert.Empty(t, res.HTML)
	assert.Contains(t, res.Err.Error(), "fetch: request")
}

func TestHTTPFetcher_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	res := NewHTTPFetcher().Fetch(context.Background(), addr)
	assert.Error(t, res.Err)
	assert.False(t, res.OK())
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	res := NewHTTPFetcher().Fetch(context.Background(), "://bad")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "create request")
}

func TestHTTPFetcher_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	res := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "empty page")
}

func TestHTTPFetcher_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>0123456789abcdef</body></html>`))
	}))
	defer srv.Close()

	res := NewHTTPFetcher(WithMaxBodyBytes(16)).Fetch(context.Background(), srv.URL)
	require.NoError(t, res.Err)
	assert.Equal(t, `<html><body>0123`, res.HTML)
}

func TestHTTPFetcher_Latin1Charset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		// "Compañía" in Latin-1.
		_, _ = w.Write([]byte("<html><head><title>Compa\xf1\xeda</title></head><body>x</body></html>"))
	}))
	defer srv.Close()

	res := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, res.Err)
	assert.Contains(t, res.HTML, "Compañía")
}

func TestDecodeBody_MetaCharset(t *testing.T) {
	body := []byte("<html><head><meta charset=\"windows-1252\"><title>Caf\xe9</title></head></html>")
	assert.Contains(t, decodeBody(body, "text/html"), "Café")
}

func TestDecodeBody_UnknownCharsetPassesThrough(t *testing.T) {
	body := []byte("<html>plain</html>")
	assert.Equal(t, "<html>plain</html>", decodeBody(body, "text/html; charset=x-made-up"))
}
