// Package invoice exposes the invoice build and response interpretation
// use cases over HTTP.
package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"praxisdesk/ms_invoicing/internal/adapters/invoice/sumex"
	appinvoice "praxisdesk/ms_invoicing/internal/application/invoice"
	"praxisdesk/ms_invoicing/internal/core/invoice"
	"praxisdesk/ms_invoicing/internal/core/response"
	httperrors "praxisdesk/ms_invoicing/internal/infrastructure/http"
)

// maxDocumentSize bounds uploaded response documents.
const maxDocumentSize = 10 << 20 // 10 MiB

// Handler bridges HTTP traffic with the invoice application service.
type Handler struct {
	service *appinvoice.Service
	log     *slog.Logger
}

// NewHandler creates a new invoice HTTP handler.
func NewHandler(service *appinvoice.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// BuildRequest is the request body of a single invoice build.
type BuildRequest struct {
	Invoice invoice.Request         `json:"invoice"`
	Options invoice.GenerateOptions `json:"options"`
}

// BuildResponse wraps one build result.
type BuildResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Result  *invoice.BuildResult `json:"result"`
}

// BatchRequest is the request body of a batch build.
type BatchRequest struct {
	Invoices []invoice.Request       `json:"invoices"`
	Options  invoice.GenerateOptions `json:"options"`
}

// BatchResponse wraps the ordered batch results.
type BatchResponse struct {
	Status  string                   `json:"status"`
	Message string                   `json:"message"`
	Total   int                      `json:"total"`
	Results []appinvoice.BatchResult `json:"results"`
}

// ParseResponseBody wraps one response interpretation.
type ParseResponseBody struct {
	Status         string                   `json:"status"`
	Message        string                   `json:"message"`
	Interpretation *response.Interpretation `json:"interpretation"`
}

// Build handles POST /api/v1/invoices/build requests.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	var reqBody BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"request body is not valid JSON"}, h.log)
		return
	}

	result, err := h.service.BuildInvoice(r.Context(), reqBody.Invoice, reqBody.Options)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BuildResponse{
		Status:  "200",
		Message: buildMessage(result),
		Result:  result,
	})
}

// BuildBatch handles POST /api/v1/invoices/build/batch requests.
func (h *Handler) BuildBatch(w http.ResponseWriter, r *http.Request) {
	var reqBody BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"request body is not valid JSON"}, h.log)
		return
	}

	results, err := h.service.BuildBatch(r.Context(), reqBody.Invoices, reqBody.Options)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		Status:  "200",
		Message: "Batch processed",
		Total:   len(results),
		Results: results,
	})
}

// Parse handles POST /api/v1/responses/parse requests. The body carries
// the raw response document; an optional filename hint comes via query.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	document, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	interp, err := h.service.ParseResponse(r.Context(), document, r.URL.Query().Get("filename"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ParseResponseBody{
		Status:         "200",
		Message:        "Response interpreted",
		Interpretation: interp,
	})
}

// Print handles POST /api/v1/responses/print requests and answers with the
// rendered document bytes.
func (h *Handler) Print(w http.ResponseWriter, r *http.Request) {
	document, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	rendered, err := h.service.PrintResponse(r.Context(), document)
	if err != nil {
		h.handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered)
}

func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	document, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"could not read request body"}, h.log)
		return nil, false
	}
	if len(document) == 0 {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{"response document is empty"}, h.log)
		return nil, false
	}
	if len(document) > maxDocumentSize {
		httperrors.WriteError(w, http.StatusRequestEntityTooLarge, "Validation error", []string{"response document exceeds the size limit"}, h.log)
		return nil, false
	}
	return document, true
}

// handleError maps service errors onto HTTP status codes: engine aborts to
// 422, transport problems to 502, an open circuit to 503, timeouts to 504,
// anything else counts as caller input error.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var abortErr *sumex.AbortError
	var engineErr *sumex.EngineError
	var breakerErr *sumex.CircuitBreakerError
	var urlErr *url.Error

	switch {
	case errors.As(err, &abortErr):
		httperrors.WriteError(w, http.StatusUnprocessableEntity, "Engine rejected the document", []string{abortErr.Error()}, h.log)
	case errors.As(err, &breakerErr):
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Engine temporarily unavailable", []string{err.Error()}, h.log)
	case errors.Is(err, context.DeadlineExceeded):
		httperrors.WriteError(w, http.StatusGatewayTimeout, "Engine call timed out", []string{err.Error()}, h.log)
	case errors.As(err, &engineErr), errors.As(err, &urlErr):
		httperrors.WriteError(w, http.StatusBadGateway, "Engine call failed", []string{err.Error()}, h.log)
	default:
		httperrors.WriteError(w, http.StatusBadRequest, "Validation error", []string{err.Error()}, h.log)
	}
}

func buildMessage(result *invoice.BuildResult) string {
	if result.Success {
		return "Invoice generated"
	}
	return "Invoice build aborted by engine"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
