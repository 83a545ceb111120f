package gositemaptree

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	return buf.Bytes()
}

func newTestClient() *HTTPWebClient {
	return NewHTTPWebClient(ClientOptions{RetryBaseDelay: time.Millisecond})
}

func TestHTTPWebClient_FinalURLAfterRedirect(t *testing.T) {
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		case "/new":
			_, _ = w.Write([]byte("hello"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !resp.Success() {
		t.Fatalf("expected success, got %d", resp.StatusCode)
	}
	if resp.FinalURL != server.URL+"/new" {
		t.Fatalf("expected final URL %s/new, got %s", server.URL, resp.FinalURL)
	}
	if string(resp.Body) != "hello" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}

func TestHTTPWebClient_RetriesRetryableStatuses(t *testing.T) {
	var requests int32
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL+"/flaky")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(resp.Body) != "recovered" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
}

func TestHTTPWebClient_NoRetryOnPlainClientError(t *testing.T) {
	var requests int32
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL+"/forbidden")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}

func TestHTTPWebClient_GunzipsBySignature(t *testing.T) {
	payload := gzipBytes(t, []byte("compressed payload"))
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL+"/data.gz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(resp.Body) != "compressed payload" {
		t.Fatalf("expected transparent gunzip, got %q", resp.Body)
	}
}

func TestHTTPWebClient_BrokenGzipPassesThrough(t *testing.T) {
	broken := []byte{0x1f, 0x8b, 0xff, 0x00, 0x01, 0x02}
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(broken)
	}))
	defer server.Close()

	resp, err := newTestClient().Get(context.Background(), server.URL+"/broken.gz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(resp.Body, broken) {
		t.Fatalf("expected original bytes to pass through, got %v", resp.Body)
	}
}

func TestHTTPWebClient_ReadTimeout(t *testing.T) {
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	client := NewHTTPWebClient(ClientOptions{
		ReadTimeout:    10 * time.Millisecond,
		RetryBaseDelay: time.Millisecond,
	})
	if _, err := client.Get(context.Background(), server.URL+"/slow"); err == nil {
		t.Fatalf("expected timeout error, got nil")
	}
}

func TestHTTPWebClient_TransportErrorAfterRetries(t *testing.T) {
	client := NewHTTPWebClient(ClientOptions{
		ConnectTimeout: 50 * time.Millisecond,
		ReadTimeout:    50 * time.Millisecond,
		RetryBaseDelay: time.Millisecond,
	})
	_, err := client.Get(context.Background(), "http://127.0.0.1:1/unreachable")
	if err == nil {
		t.Fatalf("expected transport error, got nil")
	}
	var transportErr *ErrTransport
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected ErrTransport, got %T: %v", err, err)
	}
}
