package sumex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Doer executes HTTP requests. Satisfied by *http.Client and by the traced
// client used in production.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// EngineError is a transport-level failure: the engine answered outside 2xx.
// When the error body carried an abort record, its code and message are
// included.
type EngineError struct {
	Operation    string
	StatusCode   int
	AbortCode    int
	AbortMessage string
}

func (e *EngineError) Error() string {
	if e.AbortMessage != "" {
		return fmt.Sprintf("engine call %s failed: %s (abort code %d, http %d)",
			e.Operation, e.AbortMessage, e.AbortCode, e.StatusCode)
	}
	return fmt.Sprintf("engine call %s failed with http %d", e.Operation, e.StatusCode)
}

// AbortError is a session-level failure: a call came back 2xx but with a
// false engine status. The orchestrator enriches it with the engine's abort
// explanation before surfacing it.
type AbortError struct {
	Step    string
	Code    int
	Message string
}

func (e *AbortError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("engine rejected %s: %s (abort code %d)", e.Step, e.Message, e.Code)
	}
	return fmt.Sprintf("engine rejected %s", e.Step)
}

// GatewayConfig configures one engine endpoint.
type GatewayConfig struct {
	BaseURL         string
	CallTimeout     time.Duration
	GenerateTimeout time.Duration
	XMLRetryDelay   time.Duration
}

// Gateway performs typed remote operations against one engine endpoint:
// factory GET, method POST with JSON body, property GET, and octet-stream
// POST. It normalizes non-2xx answers into EngineError and enforces the
// per-call timeout.
type Gateway struct {
	baseURL         string
	client          Doer
	breaker         *CircuitBreaker
	log             *slog.Logger
	callTimeout     time.Duration
	generateTimeout time.Duration
	xmlRetryDelay   time.Duration
}

// NewGateway creates a gateway for one engine base URL.
func NewGateway(cfg GatewayConfig, client Doer, breaker *CircuitBreaker, log *slog.Logger) *Gateway {
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = 30 * time.Second
	}
	xmlRetryDelay := cfg.XMLRetryDelay
	if xmlRetryDelay <= 0 {
		xmlRetryDelay = 2 * time.Second
	}

	return &Gateway{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		client:          client,
		breaker:         breaker,
		log:             log,
		callTimeout:     callTimeout,
		generateTimeout: generateTimeout,
		xmlRetryDelay:   xmlRetryDelay,
	}
}

// Factory allocates a fresh handle for the given interface.
func (g *Gateway) Factory(ctx context.Context, iface string) (int, error) {
	body, err := g.execute(ctx, http.MethodGet, g.baseURL+"/"+iface, "", nil, iface, g.callTimeout)
	if err != nil {
		return 0, err
	}

	var fr factoryResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return 0, fmt.Errorf("decode factory response for %s: %w", iface, err)
	}
	if fr.Handle == 0 {
		return 0, fmt.Errorf("factory for %s returned no handle", iface)
	}
	return fr.Handle, nil
}

// Invoke calls one method on a handle. params are merged into the JSON body
// alongside the handle; out, when non-nil, receives the decoded response.
func (g *Gateway) Invoke(ctx context.Context, iface, method string, handle int, params map[string]any, out any) error {
	payload := make(map[string]any, len(params)+1)
	payload["handle"] = handle
	for k, v := range params {
		payload[k] = v
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s/%s request: %w", iface, method, err)
	}

	operation := iface + "/" + method
	body, err := g.execute(ctx, http.MethodPost, g.baseURL+"/"+operation, "application/json", encoded, operation, g.callTimeout)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}

// InvokeStatus calls one method and returns the engine's boolean status.
func (g *Gateway) InvokeStatus(ctx context.Context, iface, method string, handle int, params map[string]any) (bool, error) {
	var sr statusResponse
	if err := g.Invoke(ctx, iface, method, handle, params, &sr); err != nil {
		return false, err
	}
	return sr.PbStatus, nil
}

// Property reads one handle-scoped property.
func (g *Gateway) Property(ctx context.Context, iface, property string, handle int, out any) error {
	operation := iface + "/" + property
	url := g.baseURL + "/" + operation + "?handle=" + strconv.Itoa(handle)

	body, err := g.execute(ctx, http.MethodGet, url, "", nil, operation, g.callTimeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// LoadBinary posts raw document bytes to a handle-scoped load operation.
func (g *Gateway) LoadBinary(ctx context.Context, iface, method string, handle int, document []byte) (bool, error) {
	operation := iface + "/" + method
	url := g.baseURL + "/" + operation + "?handle=" + strconv.Itoa(handle)

	body, err := g.execute(ctx, http.MethodPost, url, "application/octet-stream", document, operation, g.callTimeout)
	if err != nil {
		return false, err
	}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return false, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return sr.PbStatus, nil
}

// InvokeGenerate runs the document generation call on a request handle. The
// engine may answer HTTP 200 with an empty body before the document is
// ready; in that case the call is retried exactly once after a short delay,
// then fails explicitly rather than returning an empty document.
func (g *Gateway) InvokeGenerate(ctx context.Context, handle int) (*generateResponse, error) {
	operation := ifaceRequest + "/GetXML"
	encoded, err := json.Marshal(map[string]any{"handle": handle})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", operation, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			g.log.Warn("empty document generation response, retrying once",
				"operation", operation,
				"delay", g.xmlRetryDelay.String(),
			)
			select {
			case <-time.After(g.xmlRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := g.execute(ctx, http.MethodPost, g.baseURL+"/"+operation, "application/json", encoded, operation, g.generateTimeout)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			continue
		}

		var gr generateResponse
		if err := json.Unmarshal(body, &gr); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", operation, err)
		}
		return &gr, nil
	}

	return nil, fmt.Errorf("engine returned an empty body for %s twice", operation)
}

// AbortInfo fetches the engine's explanation of the last failure on a
// handle.
func (g *Gateway) AbortInfo(ctx context.Context, iface string, handle int) (abortInfo, error) {
	var air abortInfoResponse
	if err := g.Invoke(ctx, iface, "GetAbortInfo", handle, nil, &air); err != nil {
		return abortInfo{}, err
	}
	return air.abortInfo, nil
}

// Download fetches generated document bytes from the path the engine
// returned. Relative paths are resolved against the engine base URL.
func (g *Gateway) Download(ctx context.Context, path string) ([]byte, error) {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = g.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	return g.execute(ctx, http.MethodGet, url, "", nil, "download", g.callTimeout)
}

// execute performs one HTTP round trip under the circuit breaker, returning
// the response body or a normalized error.
func (g *Gateway) execute(ctx context.Context, method, url, contentType string, payload []byte, operation string, timeout time.Duration) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body []byte
	call := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(callCtx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return fmt.Errorf("engine call %s: %w", operation, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s response: %w", operation, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			engineErr := &EngineError{Operation: operation, StatusCode: resp.StatusCode}
			var info abortInfo
			if json.Unmarshal(data, &info) == nil {
				engineErr.AbortCode = info.AAbortCode
				engineErr.AbortMessage = info.AAbortMessage
			}
			return engineErr
		}

		body = data
		return nil
	}

	if g.breaker != nil {
		if err := g.breaker.Execute(callCtx, call); err != nil {
			return nil, err
		}
		return body, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return body, nil
}

// engineDate formats a timestamp the way the engine expects dates.
func engineDate(t time.Time) string {
	return t.Format("2006-01-02")
}
