package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if !strings.HasPrefix(r.UserAgent(), UserAgentName+"/") {
				http.Error(w, "bad agent", http.StatusForbidden)
				return
			}
			if r.Header.Get("X-Test") != "yes" {
				http.Error(w, "missing header", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte("hello"))
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	data, err := Fetch(ctx, srv.URL+"/ok", FetchOptions{Headers: map[string]string{"X-Test": "yes"}})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Fetch() = %q, want hello", data)
	}

	if _, err := Fetch(ctx, srv.URL+"/missing", FetchOptions{}); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Fetch(404) error = %v, want HTTP 404", err)
	}

	if _, err := Fetch(ctx, srv.URL+"/big", FetchOptions{MaxBytes: 16}); err == nil {
		t.Error("Fetch over MaxBytes expected error")
	}
	if data, err := Fetch(ctx, srv.URL+"/big", FetchOptions{MaxBytes: 64}); err != nil || len(data) != 64 {
		t.Errorf("Fetch at MaxBytes = %d bytes, %v", len(data), err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Fetch(cancelled, srv.URL+"/ok", FetchOptions{}); err == nil {
		t.Error("Fetch with cancelled context expected error")
	}
}
