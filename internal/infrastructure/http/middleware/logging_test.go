package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	ctxutil "praxisdesk/ms_invoicing/internal/infrastructure/context"
	"praxisdesk/ms_invoicing/internal/testutil"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestRequestLogger_SetsCorrelationID(t *testing.T) {
	var gotCorrelation string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation = ctxutil.GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := chimw.RequestID(RequestLogger(testutil.NewTestLogger())(inner))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if gotCorrelation == "" {
		t.Error("expected a correlation ID in the request context")
	}
}

func TestResponseWriter_CapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}

	rw.WriteHeader(http.StatusBadGateway)
	rw.Write([]byte("upstream engine unavailable"))

	if rw.statusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rw.statusCode)
	}
	if rw.bytesWritten != int64(len("upstream engine unavailable")) {
		t.Errorf("unexpected bytes written %d", rw.bytesWritten)
	}
}
