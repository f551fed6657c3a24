package invoice

import "context"

// Builder drives a remote invoicing engine to assemble one invoice
// document. Implementations own the whole session lifecycle; each call is
// an independent engine session, so concurrent builds are safe.
type Builder interface {
	// Build runs the full session protocol for one invoice and returns a
	// structured result. A non-nil error means the session could not even
	// produce a structured outcome (transport-level failure); engine-side
	// aborts are reported through BuildResult with Success=false.
	Build(ctx context.Context, req Request, opts GenerateOptions) (*BuildResult, error)
}
