package health

import (
	"context"
	"testing"
)

func TestService_Status(t *testing.T) {
	s := NewService(Metadata{
		Service:     "ms_invoicing",
		Version:     "1.2.3",
		Environment: "test",
	})

	status := s.Status(context.Background())

	if status.Service != "ms_invoicing" {
		t.Errorf("unexpected service name %q", status.Service)
	}
	if status.Version != "1.2.3" {
		t.Errorf("unexpected version %q", status.Version)
	}
	if status.Status != "UP" {
		t.Errorf("expected UP status, got %q", status.Status)
	}
	if status.StartedAt.IsZero() {
		t.Error("expected a start timestamp")
	}
}
