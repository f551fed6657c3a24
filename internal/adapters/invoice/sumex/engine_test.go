package sumex

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"praxisdesk/ms_invoicing/internal/infrastructure/config"
	"praxisdesk/ms_invoicing/internal/testutil"
)

// Handles the fake engine hands out per interface.
var fakeHandles = map[string]int{
	ifaceRequestManager:  11,
	ifaceAddress:         33,
	ifaceServiceInput:    44,
	ifaceResponseManager: 55,
}

const (
	fakeRequestHandle  = 22
	fakeResponseHandle = 66
)

// responder overrides the canned answer for one operation; n is the
// 1-based call count for that operation.
type responder func(n int, body []byte) (status int, response string)

// fakeEngine is an in-memory stand-in for both remote engines. It records
// every call in order together with its decoded JSON body, and answers
// success unless an override says otherwise.
type fakeEngine struct {
	mu        sync.Mutex
	calls     []string
	bodies    map[string][]map[string]any
	rawBodies map[string][][]byte
	counts    map[string]int
	overrides map[string]responder
	document  []byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		bodies:    make(map[string][]map[string]any),
		rawBodies: make(map[string][][]byte),
		counts:    make(map[string]int),
		overrides: make(map[string]responder),
		document:  []byte("<generalInvoiceRequest/>"),
	}
}

func (e *fakeEngine) override(op string, fn responder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overrides[op] = fn
}

func (e *fakeEngine) count(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[op]
}

func (e *fakeEngine) body(t *testing.T, op string, idx int) map[string]any {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	bodies := e.bodies[op]
	if idx >= len(bodies) {
		t.Fatalf("no recorded body %d for %s (have %d)", idx, op, len(bodies))
	}
	return bodies[idx]
}

func (e *fakeEngine) callOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/files/") {
			w.Write(e.document)
			return
		}

		op := strings.Trim(r.URL.Path, "/")
		raw, _ := io.ReadAll(r.Body)

		e.mu.Lock()
		e.calls = append(e.calls, op)
		e.counts[op]++
		n := e.counts[op]
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
			var decoded map[string]any
			if json.Unmarshal(raw, &decoded) == nil {
				e.bodies[op] = append(e.bodies[op], decoded)
			}
		} else if len(raw) > 0 {
			e.rawBodies[op] = append(e.rawBodies[op], raw)
		}
		fn := e.overrides[op]
		e.mu.Unlock()

		if fn != nil {
			status, response := fn(n, raw)
			w.WriteHeader(status)
			io.WriteString(w, response)
			return
		}

		switch {
		case r.Method == http.MethodGet && !strings.Contains(op, "/"):
			if handle, ok := fakeHandles[op]; ok {
				writeJSON(w, map[string]any{"handle": handle})
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case strings.HasSuffix(op, "/GetGeneralInvoiceRequest"):
			writeJSON(w, map[string]any{"pbStatus": true, "handle": fakeRequestHandle})
		case strings.HasSuffix(op, "/GetGeneralInvoiceResponse"):
			writeJSON(w, map[string]any{"pbStatus": true, "handle": fakeResponseHandle})
		case strings.HasSuffix(op, "/GetXML"):
			writeJSON(w, map[string]any{
				"pbStatus":          true,
				"plValidationError": 0,
				"pbstrOutFile":      "/files/invoice.xml",
			})
		case strings.HasSuffix(op, "/Print"):
			writeJSON(w, map[string]any{"pbStatus": true, "pbstrOutFile": "/files/rendered.pdf"})
		case strings.HasSuffix(op, "Notification"):
			// An empty cursor by default, so traversal terminates.
			writeJSON(w, map[string]any{"pbStatus": false})
		default:
			writeJSON(w, map[string]any{"pbStatus": true})
		}
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestGateway(t *testing.T, server *httptest.Server) *Gateway {
	t.Helper()
	return NewGateway(GatewayConfig{
		BaseURL:         server.URL,
		CallTimeout:     5 * time.Second,
		GenerateTimeout: 5 * time.Second,
		XMLRetryDelay:   5 * time.Millisecond,
	}, server.Client(), nil, testutil.NewTestLogger())
}

func newTestBuilder(t *testing.T, server *httptest.Server, strategy config.CloseStrategy) *SessionBuilder {
	t.Helper()
	gw := newTestGateway(t, server)
	sessions := NewSessionManager(gw, NewSessionLimiter(4), strategy, testutil.NewTestLogger())
	return NewSessionBuilder(gw, sessions, testutil.NewTestLogger())
}
