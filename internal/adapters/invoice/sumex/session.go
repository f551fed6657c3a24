package sumex

import (
	"context"
	"fmt"
	"log/slog"

	"praxisdesk/ms_invoicing/internal/infrastructure/config"
)

// SessionManager opens and closes engine sessions. A session is the
// manager/request/address handle triple one build lives on; the limiter
// caps how many are open at once.
type SessionManager struct {
	gw       *Gateway
	limiter  *SessionLimiter
	strategy config.CloseStrategy
	log      *slog.Logger
}

// NewSessionManager creates a session manager over one request-builder
// engine gateway.
func NewSessionManager(gw *Gateway, limiter *SessionLimiter, strategy config.CloseStrategy, log *slog.Logger) *SessionManager {
	return &SessionManager{
		gw:       gw,
		limiter:  limiter,
		strategy: strategy,
		log:      log,
	}
}

// Session holds the three handles of one open engine session. The address
// handle is a single-slot scratch buffer shared by every address-bearing
// call; it must be rewritten immediately before each use.
type Session struct {
	manager int
	request int
	address int

	m      *SessionManager
	closed bool
}

// Open allocates a fresh manager, request, and address handle. Any failure
// aborts immediately: there is no partial session to clean up, the engine
// reclaims stray handles on its own inactivity timeout.
func (m *SessionManager) Open(ctx context.Context) (*Session, error) {
	if err := m.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire session slot: %w", err)
	}

	manager, err := m.gw.Factory(ctx, ifaceRequestManager)
	if err != nil {
		m.limiter.Release()
		return nil, fmt.Errorf("create request manager: %w", err)
	}

	var hr handleResponse
	if err := m.gw.Invoke(ctx, ifaceRequestManager, "GetGeneralInvoiceRequest", manager, nil, &hr); err != nil {
		m.limiter.Release()
		return nil, fmt.Errorf("create invoice request: %w", err)
	}
	if !hr.PbStatus || hr.Handle == 0 {
		m.limiter.Release()
		return nil, fmt.Errorf("request manager refused to hand out an invoice request handle")
	}

	address, err := m.gw.Factory(ctx, ifaceAddress)
	if err != nil {
		m.limiter.Release()
		return nil, fmt.Errorf("create address handle: %w", err)
	}

	return &Session{
		manager: manager,
		request: hr.Handle,
		address: address,
		m:       m,
	}, nil
}

// Close releases the session. With the eager strategy it issues best-effort
// destruct calls; with the idle strategy it leaves cleanup to the engine's
// inactivity garbage collection. Either way the limiter slot is freed.
func (s *Session) Close(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true
	defer s.m.limiter.Release()

	if s.m.strategy != config.CloseEager {
		return
	}

	for _, target := range []struct {
		iface  string
		handle int
	}{
		{ifaceRequest, s.request},
		{ifaceAddress, s.address},
		{ifaceRequestManager, s.manager},
	} {
		if _, err := s.m.gw.InvokeStatus(ctx, target.iface, "Destruct", target.handle, nil); err != nil {
			s.m.log.Debug("session destruct failed, engine will garbage-collect",
				"interface", target.iface,
				"error", err,
			)
		}
	}
}
