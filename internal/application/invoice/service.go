// Package invoice orchestrates invoice-related use cases: single and batch
// document builds against the request engine, and parsing/rendering of
// insurer response documents.
package invoice

import (
	"context"
	"fmt"
	"log/slog"

	"praxisdesk/ms_invoicing/internal/core/invoice"
	"praxisdesk/ms_invoicing/internal/core/response"
)

// Interpreter parses and renders insurer response documents.
type Interpreter interface {
	Parse(ctx context.Context, document []byte, filename string) (*response.Interpretation, error)
	Print(ctx context.Context, document []byte) ([]byte, error)
}

// Service exposes the invoice use cases to adapters.
type Service struct {
	builder        invoice.Builder
	interpreter    Interpreter
	workerPoolSize int
	maxBatchSize   int
	log            *slog.Logger
}

// NewService creates a new invoice service.
func NewService(builder invoice.Builder, interpreter Interpreter, workerPoolSize, maxBatchSize int, log *slog.Logger) *Service {
	if workerPoolSize <= 0 {
		workerPoolSize = 4
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 200
	}
	return &Service{
		builder:        builder,
		interpreter:    interpreter,
		workerPoolSize: workerPoolSize,
		maxBatchSize:   maxBatchSize,
		log:            log,
	}
}

// BuildInvoice validates one invoice input and drives a full engine session
// for it.
func (s *Service) BuildInvoice(ctx context.Context, req invoice.Request, opts invoice.GenerateOptions) (*invoice.BuildResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	result, err := s.builder.Build(ctx, req, opts)
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.log.Info("invoice built",
			"invoice_id", req.InvoiceID,
			"document_path", result.DocumentPath,
			"validation_error", result.ValidationError,
		)
	} else {
		s.log.Warn("invoice build aborted",
			"invoice_id", req.InvoiceID,
			"abort_code", result.AbortCode,
			"abort_message", result.AbortMessage,
		)
	}

	return result, nil
}

// BuildBatch builds many invoices concurrently through the worker pool.
// Results come back in input order; one failing invoice never stops the
// others.
func (s *Service) BuildBatch(ctx context.Context, reqs []invoice.Request, opts invoice.GenerateOptions) ([]BatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}
	if len(reqs) > s.maxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds the maximum of %d", len(reqs), s.maxBatchSize)
	}
	for i, req := range reqs {
		if err := validateRequest(req); err != nil {
			return nil, fmt.Errorf("invoice %d (%s): %w", i, req.InvoiceID, err)
		}
	}

	pool := NewBuildWorkerPool(ctx, s.workerPoolSize, s.builder, s.log)
	return pool.ProcessBatch(ctx, reqs, opts), nil
}

// ParseResponse interprets a raw insurer response document.
func (s *Service) ParseResponse(ctx context.Context, document []byte, filename string) (*response.Interpretation, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("response document is empty")
	}

	interp, err := s.interpreter.Parse(ctx, document, filename)
	if err != nil {
		return nil, err
	}

	s.log.Info("response interpreted",
		"filename", filename,
		"outcome", interp.Outcome,
		"notifications", len(interp.Notifications),
	)
	return interp, nil
}

// PrintResponse renders a raw insurer response document.
func (s *Service) PrintResponse(ctx context.Context, document []byte) ([]byte, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("response document is empty")
	}
	return s.interpreter.Print(ctx, document)
}

// validateRequest checks the structural minimum an engine session needs.
// Business-level validation stays with the engine, which owns the invoice
// schema.
func validateRequest(req invoice.Request) error {
	if req.InvoiceID == "" {
		return fmt.Errorf("invoice id is required")
	}
	if req.InvoiceDate.IsZero() {
		return fmt.Errorf("invoice date is required")
	}
	if !req.Mode.Valid() {
		return fmt.Errorf("invalid billing mode %q", req.Mode)
	}
	if req.Law == "" {
		return fmt.Errorf("law is required")
	}
	if req.Biller.GLN == "" {
		return fmt.Errorf("biller GLN is required")
	}
	if req.Provider.GLN == "" {
		return fmt.Errorf("provider GLN is required")
	}
	if req.Patient.Address.IsZero() {
		return fmt.Errorf("patient address is required")
	}
	if len(req.Services) == 0 {
		return fmt.Errorf("at least one service line is required")
	}
	if req.Transport.FromGLN == "" || req.Transport.ToGLN == "" {
		return fmt.Errorf("transport from/to GLNs are required")
	}
	return nil
}
