package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allowlistRequest(cidrs []string, remoteAddr string) *httptest.ResponseRecorder {
	mw := IPAllowlist(cidrs, discardLogger())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = remoteAddr
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIPAllowlist_SourceAddressDecisions(t *testing.T) {
	operatorNets := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

	tests := []struct {
		name   string
		cidrs  []string
		remote string
		status int
	}{
		{"loopback allowed", []string{"127.0.0.0/8"}, "127.0.0.1:12345", http.StatusOK},
		{"outside range denied", []string{"10.0.0.0/8"}, "192.168.1.1:12345", http.StatusForbidden},
		{"first operator net", operatorNets, "10.1.2.3:1234", http.StatusOK},
		{"second operator net", operatorNets, "172.16.5.5:1234", http.StatusOK},
		{"third operator net", operatorNets, "192.168.1.1:1234", http.StatusOK},
		{"public address denied", operatorNets, "8.8.8.8:1234", http.StatusForbidden},
		{"ipv6 loopback", []string{"::1/128"}, "[::1]:1234", http.StatusOK},
		{"no port in remote addr", []string{"127.0.0.0/8"}, "127.0.0.1", http.StatusOK},
		{"empty allowlist denies all", nil, "127.0.0.1:1234", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := allowlistRequest(tt.cidrs, tt.remote)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestIPAllowlist_DeniedResponseBody(t *testing.T) {
	rec := allowlistRequest([]string{"10.0.0.0/8"}, "192.168.1.1:12345")

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body, "error")
}

func TestIPAllowlist_InvalidCIDRSkipped(t *testing.T) {
	// The bad entry is dropped, the valid one still applies.
	rec := allowlistRequest([]string{"not-a-cidr", "127.0.0.0/8"}, "127.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func pprofRequest(t *testing.T, cidrs []string, remoteAddr, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	RegisterPprof(r, cidrs, discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegisterPprof_IndexFromAllowedNet(t *testing.T) {
	rec := pprofRequest(t, []string{"127.0.0.0/8"}, "127.0.0.1:1234", "/debug/pprof/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pprof")
}

func TestRegisterPprof_DeniedOutsideAllowlist(t *testing.T) {
	rec := pprofRequest(t, []string{"10.0.0.0/8"}, "192.168.1.1:1234", "/debug/pprof/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterPprof_NamedProfiles(t *testing.T) {
	// cmdline and symbol have dedicated routes; heap goes through the
	// catch-all index handler.
	for _, path := range []string{"/debug/pprof/cmdline", "/debug/pprof/symbol", "/debug/pprof/heap"} {
		rec := pprofRequest(t, []string{"127.0.0.0/8"}, "127.0.0.1:1234", path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
