package postgres

import (
	"testing"

	"praxisdesk/ms_invoicing/internal/core/audit"
)

// Note: exercising Save/FindByCorrelationID requires a PostgreSQL
// database; those paths are covered by integration runs against a test
// database. The structural contract is checked here.

func TestRepositoryImplementsInterface(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	var _ audit.Repository = (*Repository)(nil)
}
