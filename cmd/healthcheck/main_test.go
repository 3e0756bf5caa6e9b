package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "127.0.0.1:8080"},
		{raw: "0.0.0.0:9090", want: "127.0.0.1:9090"},
		{raw: ":9090", want: "127.0.0.1:9090"},
		{raw: "[::]:9090", want: "127.0.0.1:9090"},
		{raw: "10.0.0.5:8080", want: "10.0.0.5:8080"},
		{raw: "not-an-addr", want: "127.0.0.1:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddr(tt.raw))
		})
	}
}

func TestCheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	t.Setenv("FWCHECKS_LISTEN_ADDR", strings.TrimPrefix(srv.URL, "http://"))
	assert.Equal(t, 0, check())

	status.Store(http.StatusServiceUnavailable)
	assert.Equal(t, 1, check())
}

func TestProbe_RejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer srv.Close()

	err := probe(strings.TrimPrefix(srv.URL, "http://"))

	assert.ErrorContains(t, err, "degraded")
}
