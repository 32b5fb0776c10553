package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logOne(t *testing.T, target string, status int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := SecureLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", target, nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	entry := logOne(t, "/api/requests?email=jane@example.com", http.StatusOK)
	assert.Equal(t, "/api/requests?[REDACTED]", entry["path"])
	assert.Equal(t, "http_request", entry["msg"])
}

func TestSecureLogger_KeepsPlainQuery(t *testing.T) {
	entry := logOne(t, "/api/requests?status=Pending&page=2", http.StatusOK)
	assert.Equal(t, "/api/requests?status=Pending&page=2", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestSecureLogger_LevelByStatus(t *testing.T) {
	assert.Equal(t, "WARN", logOne(t, "/api/requests/9", http.StatusNotFound)["level"])
	assert.Equal(t, "ERROR", logOne(t, "/api/stats", http.StatusInternalServerError)["level"])
}
