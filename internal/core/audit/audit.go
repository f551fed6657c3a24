package audit

import (
	"context"
	"encoding/json"
	"time"
)

// EngineCallLog is an audit record for one call to a remote invoicing
// engine endpoint. It captures the full request/response exchange for
// debugging and compliance review of billing traffic.
type EngineCallLog struct {
	ID              int64
	CorrelationID   string
	Engine          string // "request" or "response" engine
	Operation       string // interface/method, e.g. IGeneralInvoiceRequest/Finalize
	RequestMethod   string
	RequestURL      string
	RequestHeaders  map[string]string
	RequestBody     json.RawMessage
	ResponseStatus  *int
	ResponseHeaders map[string]string
	ResponseBody    json.RawMessage
	DurationMs      int64
	ErrorMessage    string
	CreatedAt       time.Time
}

// Repository defines the contract for persisting and retrieving engine
// call logs.
type Repository interface {
	// Save persists an audit entry to storage.
	Save(ctx context.Context, log EngineCallLog) error

	// FindByCorrelationID retrieves all entries of one correlation ID, i.e.
	// the complete call sequence of a single build or parse.
	FindByCorrelationID(ctx context.Context, correlationID string) ([]EngineCallLog, error)
}
