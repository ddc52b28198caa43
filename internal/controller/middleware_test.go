package controller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggedController(level slog.Level) (controller, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))

	return controller{logger: logger}, &buf
}

func TestLoggerWSMwSkipsStatsWithoutDebug(t *testing.T) {
	errHandled := errors.New("handled")

	tests := []struct {
		name      string
		level     slog.Level
		wantStats bool
	}{
		{"info", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, buf := newLoggedController(tt.level)

			called := false
			handler := c.loggerWSMw()(func(ctx context.Context, conn *websocket.Conn, payload any) error {
				called = true
				return errHandled
			})

			err := handler(context.Background(), nil, nil)
			assert.ErrorIs(t, err, errHandled)
			assert.True(t, called)
			assert.Equal(t, tt.wantStats, bytes.Contains(buf.Bytes(), []byte(`"goroutines"`)))
		})
	}
}

func TestRequestIdMw(t *testing.T) {
	c, _ := newLoggedController(slog.LevelInfo)

	var seen string
	h := c.requestIdMw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIdHeader)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(requestIdHeader, "from-proxy")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "from-proxy", w.Header().Get(requestIdHeader))
	assert.Equal(t, "from-proxy", seen)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, w.Header().Get(requestIdHeader))
	assert.NotEqual(t, "from-proxy", w.Header().Get(requestIdHeader))
}

func TestRequestLoggingMwRecordsStatus(t *testing.T) {
	c, buf := newLoggedController(slog.LevelInfo)

	h := c.requestLoggingMw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))

	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/api/v1/healthz"`)
}
