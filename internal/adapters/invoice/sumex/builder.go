package sumex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"praxisdesk/ms_invoicing/internal/core/invoice"
	"praxisdesk/ms_invoicing/internal/core/reference"
)

// softwarePackage identifies this client toward the engine.
const (
	softwarePackage = "praxisdesk"
	softwareVersion = "1.0"
)

// SessionBuilder drives one engine session through the full ordered
// population sequence, Finalize, and document generation. It implements
// invoice.Builder.
//
// Ordering is a correctness requirement: later calls depend on the side
// effects of earlier ones (most visibly the shared address handle), so a
// build is a single linear call sequence. Concurrent builds are safe, each
// gets its own session.
type SessionBuilder struct {
	gw       *Gateway
	sessions *SessionManager
	router   *tariffRouter
	log      *slog.Logger
}

// NewSessionBuilder creates the session orchestrator.
func NewSessionBuilder(gw *Gateway, sessions *SessionManager, log *slog.Logger) *SessionBuilder {
	return &SessionBuilder{
		gw:       gw,
		sessions: sessions,
		router:   &tariffRouter{gw: gw, log: log},
		log:      log,
	}
}

// Build assembles one invoice document. Engine-side rejections of a
// mandatory step come back as a failed BuildResult carrying the engine's
// abort explanation; transport failures come back as an error.
func (b *SessionBuilder) Build(ctx context.Context, req invoice.Request, opts invoice.GenerateOptions) (*invoice.BuildResult, error) {
	s, err := b.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close(context.WithoutCancel(ctx))

	if err := b.populate(ctx, s, req); err != nil {
		return b.failed(err)
	}

	if err := b.finalize(ctx, s); err != nil {
		return b.failed(err)
	}

	gen, err := b.gw.InvokeGenerate(ctx, s.request)
	if err != nil {
		return nil, err
	}
	if !gen.PbStatus {
		return b.failed(b.abortErr(ctx, s, "GetXML"))
	}
	if gen.PlValidationError != 0 {
		b.log.Warn("document generated with validation warning",
			"invoice_id", req.InvoiceID,
			"validation_error", gen.PlValidationError,
		)
	}

	result := &invoice.BuildResult{
		Success:         true,
		DocumentPath:    gen.PbstrOutFile,
		ValidationError: gen.PlValidationError,
	}

	// Download is best effort: a failure degrades to "path known, bytes
	// unavailable" rather than failing the build.
	if document, err := b.gw.Download(ctx, gen.PbstrOutFile); err != nil {
		b.log.Warn("document download failed",
			"invoice_id", req.InvoiceID,
			"path", gen.PbstrOutFile,
			"error", err,
		)
	} else {
		result.Document = document
	}

	if opts.Render {
		b.render(ctx, s, req.InvoiceID, result)
	}

	return result, nil
}

// populate issues the fixed field-population sequence. Optional steps
// degrade gracefully; mandatory steps abort the build with the engine's
// explanation.
func (b *SessionBuilder) populate(ctx context.Context, s *Session, req invoice.Request) error {
	if err := b.call(ctx, s, "SetPackage", map[string]any{
		"aSoftwarePackage": softwarePackage,
		"aSoftwareVersion": softwareVersion,
	}); err != nil {
		return err
	}

	if err := b.call(ctx, s, "SetRequest", map[string]any{
		"aLanguage": "de",
		"aRemark":   req.Remarks,
	}); err != nil {
		return err
	}

	if err := b.call(ctx, s, "SetTiers", map[string]any{
		"aTiersMode": string(req.Mode),
	}); err != nil {
		return err
	}

	if err := b.call(ctx, s, "SetInvoice", map[string]any{
		"aRequestInvoiceID": req.InvoiceID,
		"aRequestDate":      engineDate(req.InvoiceDate),
	}); err != nil {
		return err
	}

	if req.CreditAmount != nil {
		if err := b.call(ctx, s, "SetCredit", map[string]any{
			"dAmount": *req.CreditAmount,
		}); err != nil {
			return err
		}
	}

	if req.Reminder != nil {
		if err := b.call(ctx, s, "SetReminder", map[string]any{
			"aLevel": req.Reminder.Level,
			"aDate":  engineDate(req.Reminder.Date),
			"aText":  req.Reminder.Text,
		}); err != nil {
			return err
		}
	}

	lawParams := map[string]any{"aLaw": string(req.Law)}
	if req.CaseID != "" {
		lawParams["aCaseID"] = req.CaseID
	}
	if !req.CaseDate.IsZero() {
		lawParams["aCaseDate"] = engineDate(req.CaseDate)
	}
	if err := b.call(ctx, s, "SetLaw", lawParams); err != nil {
		return err
	}

	esr := req.ESRReference
	if esr == "" {
		esr = reference.FromInvoiceID(req.InvoiceID)
	}
	if err := b.call(ctx, s, "SetEsr", map[string]any{
		"aReferenceNumber": esr,
	}); err != nil {
		return err
	}

	if err := b.callWithAddress(ctx, s, "SetBiller", req.Biller.Address, map[string]any{
		"aGLN": req.Biller.GLN,
	}); err != nil {
		return err
	}
	b.setZSR(ctx, s, "SetBillerZSR", req.Biller.ZSR)

	if err := b.callWithAddress(ctx, s, "SetProvider", req.Provider.Address, map[string]any{
		"aGLN": req.Provider.GLN,
	}); err != nil {
		return err
	}
	b.setZSR(ctx, s, "SetProviderZSR", req.Provider.ZSR)

	if req.Insurer != nil {
		if err := b.callWithAddress(ctx, s, "SetInsurance", req.Insurer.Address, map[string]any{
			"aGLN": req.Insurer.GLN,
		}); err != nil {
			return err
		}
	}

	if err := b.callWithAddress(ctx, s, "SetPatient", req.Patient.Address, map[string]any{
		"aBirthDate": engineDate(req.Patient.BirthDate),
		"aSex":       req.Patient.Sex,
		"aSSN":       req.Patient.SSN,
	}); err != nil {
		return err
	}

	if req.Insured != nil {
		if err := b.callWithAddress(ctx, s, "SetInsured", *req.Insured, nil); err != nil {
			return err
		}
	}

	// The engine auto-clones the patient address as guarantor, so the
	// explicit call is only issued for a genuinely distinct guarantor.
	if req.Guarantor != nil && *req.Guarantor != req.Patient.Address {
		if err := b.callWithAddress(ctx, s, "SetGuarantor", *req.Guarantor, nil); err != nil {
			return err
		}
	}

	if err := b.callWithAddress(ctx, s, "SetDebtor", req.ResolveDebtor(), nil); err != nil {
		return err
	}

	if err := b.call(ctx, s, "SetTreatment", map[string]any{
		"aCanton":        req.Treatment.Canton,
		"aDateBegin":     engineDate(req.Treatment.DateBegin),
		"aDateEnd":       engineDate(req.Treatment.DateEnd),
		"aReason":        req.Treatment.Reason,
		"aTreatmentType": req.Treatment.Type,
		"aAPCase":        req.Treatment.APCase,
	}); err != nil {
		return err
	}

	for _, diag := range req.Diagnoses {
		b.optionalCall(ctx, s, "AddDiagnosis", map[string]any{
			"aType": diag.Type,
			"aCode": diag.Code,
			"aText": diag.Text,
		})
	}

	for _, partner := range req.Partners {
		if err := writeAddress(ctx, b.gw, s.address, partner.Address); err != nil {
			return err
		}
		b.optionalCall(ctx, s, "AddPartner", map[string]any{
			"aGLN":      partner.GLN,
			"ahAddress": s.address,
		})
	}

	registered, err := b.router.registerServices(ctx, s, req)
	if err != nil {
		return err
	}
	if registered < len(req.Services) {
		b.log.Warn("not every service line was accepted",
			"invoice_id", req.InvoiceID,
			"registered", registered,
			"total", len(req.Services),
		)
	}

	if req.Processing != nil {
		b.optionalCall(ctx, s, "SetProcessing", map[string]any{
			"aPrintAtIntermediate": req.Processing.PrintAtIntermediate,
			"aPrintGuarantorCopy":  req.Processing.PrintGuarantorCopy,
		})
	}

	// Transport is mandatory: the engine refuses to generate without it.
	transportParams := map[string]any{
		"aFromGLN": req.Transport.FromGLN,
		"aToGLN":   req.Transport.ToGLN,
	}
	if req.Transport.ViaGLN != "" {
		transportParams["aViaGLN"] = req.Transport.ViaGLN
	}
	return b.call(ctx, s, "SetTransport", transportParams)
}

// finalize validates the assembled invoice. A false status is fatal; a
// true status may still carry a warning, which is logged only.
func (b *SessionBuilder) finalize(ctx context.Context, s *Session) error {
	var fr finalizeResponse
	if err := b.gw.Invoke(ctx, ifaceRequest, "Finalize", s.request, nil, &fr); err != nil {
		return err
	}
	if !fr.PbStatus {
		return b.abortErr(ctx, s, "Finalize")
	}
	if fr.PstrWarning != "" {
		b.log.Warn("finalize succeeded with warning", "warning", fr.PstrWarning)
	}
	return nil
}

// render asks the engine to print the generated invoice. Render is an
// enhancement: any failure here is logged and the build stays successful.
func (b *SessionBuilder) render(ctx context.Context, s *Session, invoiceID string, result *invoice.BuildResult) {
	var pr printResponse
	if err := b.gw.Invoke(ctx, ifaceRequest, "Print", s.request, nil, &pr); err != nil {
		b.log.Warn("print failed", "invoice_id", invoiceID, "error", err)
		return
	}
	if !pr.PbStatus {
		b.log.Warn("engine refused to print", "invoice_id", invoiceID)
		return
	}

	rendered, err := b.gw.Download(ctx, pr.PbstrOutFile)
	if err != nil {
		b.log.Warn("rendered document download failed",
			"invoice_id", invoiceID,
			"path", pr.PbstrOutFile,
			"error", err,
		)
		return
	}
	result.Rendered = rendered
}

// call issues one mandatory population method on the request handle and
// turns a false engine status into an enriched abort error.
func (b *SessionBuilder) call(ctx context.Context, s *Session, method string, params map[string]any) error {
	ok, err := b.gw.InvokeStatus(ctx, ifaceRequest, method, s.request, params)
	if err != nil {
		return err
	}
	if !ok {
		return b.abortErr(ctx, s, method)
	}
	return nil
}

// callWithAddress rewrites the shared address handle and issues a method
// that consumes it.
func (b *SessionBuilder) callWithAddress(ctx context.Context, s *Session, method string, addr invoice.Address, params map[string]any) error {
	if err := writeAddress(ctx, b.gw, s.address, addr); err != nil {
		var abort *AbortError
		if errors.As(err, &abort) && abort.Message == "" {
			abort.Step = fmt.Sprintf("%s (%s)", abort.Step, method)
			return b.enrichAbort(ctx, ifaceAddress, s.address, abort)
		}
		return err
	}

	merged := map[string]any{"ahAddress": s.address}
	for k, v := range params {
		merged[k] = v
	}
	return b.call(ctx, s, method, merged)
}

// optionalCall issues a non-fatal population method: a rejection is logged
// with the engine's explanation and the build continues. Transport errors
// are still logged, never returned — the next mandatory step will hit the
// same broken connection and fail the build.
func (b *SessionBuilder) optionalCall(ctx context.Context, s *Session, method string, params map[string]any) {
	ok, err := b.gw.InvokeStatus(ctx, ifaceRequest, method, s.request, params)
	if err != nil {
		b.log.Warn("optional step failed", "step", method, "error", err)
		return
	}
	if !ok {
		attrs := []any{"step", method}
		if info, infoErr := b.gw.AbortInfo(ctx, ifaceRequest, s.request); infoErr == nil {
			attrs = append(attrs, "abort_code", info.AAbortCode, "abort_message", info.AAbortMessage)
		}
		b.log.Warn("optional step rejected, continuing", attrs...)
	}
}

// setZSR issues a secondary registration number call only when the value
// matches the required shape; a malformed value is skipped with a warning
// rather than attempted and failed.
func (b *SessionBuilder) setZSR(ctx context.Context, s *Session, method, zsr string) {
	if zsr == "" {
		return
	}
	if !invoice.ValidZSR(zsr) {
		b.log.Warn("skipping malformed ZSR number", "step", method, "zsr", zsr)
		return
	}
	b.optionalCall(ctx, s, method, map[string]any{"aZSR": zsr})
}

// abortErr fetches the engine's abort explanation for a failed mandatory
// step.
func (b *SessionBuilder) abortErr(ctx context.Context, s *Session, step string) error {
	return b.enrichAbort(ctx, ifaceRequest, s.request, &AbortError{Step: step})
}

func (b *SessionBuilder) enrichAbort(ctx context.Context, iface string, handle int, abort *AbortError) error {
	info, err := b.gw.AbortInfo(ctx, iface, handle)
	if err != nil {
		b.log.Warn("could not fetch abort info", "step", abort.Step, "error", err)
		return abort
	}
	abort.Code = info.AAbortCode
	abort.Message = info.AAbortMessage
	return abort
}

// failed maps a population error to the build outcome: engine aborts
// become a failed result carrying the explanation, transport errors
// propagate as errors.
func (b *SessionBuilder) failed(err error) (*invoice.BuildResult, error) {
	var abort *AbortError
	if errors.As(err, &abort) {
		b.log.Error("invoice build aborted by engine",
			"step", abort.Step,
			"abort_code", abort.Code,
			"abort_message", abort.Message,
		)
		message := abort.Message
		if message == "" {
			message = fmt.Sprintf("engine rejected %s", abort.Step)
		}
		return &invoice.BuildResult{
			Success:      false,
			AbortCode:    abort.Code,
			AbortMessage: message,
		}, nil
	}
	return nil, err
}
