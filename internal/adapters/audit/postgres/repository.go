// Package postgres persists engine call audit logs in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"praxisdesk/ms_invoicing/internal/core/audit"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the audit.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) audit.Repository {
	return &Repository{pool: pool, log: log}
}

// Save persists an audit entry. One invoice build produces dozens of rows
// sharing a correlation ID; rows are written asynchronously by the traced
// client, so failures here must only surface as an error, never block a
// build.
func (r *Repository) Save(ctx context.Context, entry audit.EngineCallLog) error {
	query := `
		INSERT INTO engine_audit_log (
			correlation_id, engine, operation, request_method, request_url,
			request_headers, request_body, response_status, response_headers,
			response_body, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	requestHeadersJSON, err := json.Marshal(entry.RequestHeaders)
	if err != nil {
		return fmt.Errorf("marshal request headers: %w", err)
	}
	responseHeadersJSON, err := json.Marshal(entry.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("marshal response headers: %w", err)
	}

	// nil instead of empty slices so the JSONB columns stay NULL
	var requestBodyJSON, responseBodyJSON interface{}
	if len(entry.RequestBody) > 0 {
		requestBodyJSON = entry.RequestBody
	}
	if len(entry.ResponseBody) > 0 {
		responseBodyJSON = entry.ResponseBody
	}

	_, err = r.pool.Exec(ctx, query,
		entry.CorrelationID,
		entry.Engine,
		entry.Operation,
		entry.RequestMethod,
		entry.RequestURL,
		requestHeadersJSON,
		requestBodyJSON,
		entry.ResponseStatus,
		responseHeadersJSON,
		responseBodyJSON,
		entry.DurationMs,
		entry.ErrorMessage,
	)
	if err != nil {
		r.log.Error("Failed to insert engine audit log",
			"correlation_id", entry.CorrelationID,
			"engine", entry.Engine,
			"operation", entry.Operation,
			"error", err,
		)
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

// FindByCorrelationID retrieves the complete engine call sequence of one
// build or parse, newest first.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) ([]audit.EngineCallLog, error) {
	query := `
		SELECT id, correlation_id, engine, operation, request_method, request_url,
		       request_headers, request_body, response_status, response_headers,
		       response_body, duration_ms, error_message, created_at
		FROM engine_audit_log
		WHERE correlation_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []audit.EngineCallLog
	for rows.Next() {
		var entry audit.EngineCallLog
		var requestHeadersJSON, responseHeadersJSON []byte
		var requestBodyJSON, responseBodyJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.CorrelationID,
			&entry.Engine,
			&entry.Operation,
			&entry.RequestMethod,
			&entry.RequestURL,
			&requestHeadersJSON,
			&requestBodyJSON,
			&entry.ResponseStatus,
			&responseHeadersJSON,
			&responseBodyJSON,
			&entry.DurationMs,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}

		if err := json.Unmarshal(requestHeadersJSON, &entry.RequestHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal request headers: %w", err)
		}
		if err := json.Unmarshal(responseHeadersJSON, &entry.ResponseHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal response headers: %w", err)
		}

		entry.RequestBody = requestBodyJSON
		entry.ResponseBody = responseBodyJSON

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}
