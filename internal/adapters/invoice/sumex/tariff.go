package sumex

import (
	"context"
	"log/slog"

	"praxisdesk/ms_invoicing/internal/core/invoice"
)

// tariffRouter registers service lines on an open session. Lines with the
// TARDOC tariff type go through the extended schema, everything else
// through the simple one; a line never takes both paths. Individual
// rejections are logged and skipped, the build continues with the
// remaining lines.
type tariffRouter struct {
	gw  *Gateway
	log *slog.Logger
}

// registerServices writes every service line of the request and returns
// how many the engine accepted. Only transport errors are fatal.
func (r *tariffRouter) registerServices(ctx context.Context, s *Session, req invoice.Request) (int, error) {
	registered := 0

	// Extended context is created lazily and initialized exactly once per
	// session, before the first extended line.
	exHandle := 0
	exFailed := false

	for _, line := range req.Services {
		if line.IsExtended() {
			if exFailed {
				r.log.Warn("skipping extended service line, context initialization failed earlier",
					"code", line.Code,
				)
				continue
			}
			if exHandle == 0 {
				handle, err := r.initExtendedContext(ctx, req)
				if err != nil {
					return registered, err
				}
				if handle == 0 {
					exFailed = true
					continue
				}
				exHandle = handle
			}

			ok, err := r.addExtended(ctx, s, exHandle, line)
			if err != nil {
				return registered, err
			}
			if ok {
				registered++
			}
			continue
		}

		ok, err := r.addSimple(ctx, s, line)
		if err != nil {
			return registered, err
		}
		if ok {
			registered++
		}
	}

	return registered, nil
}

// initExtendedContext allocates the extended service input handle and loads
// it with the physician, patient, and treatment context. A zero return
// with nil error means the engine refused the context; every extended line
// is then skipped with a warning, matching per-line failure semantics.
func (r *tariffRouter) initExtendedContext(ctx context.Context, req invoice.Request) (int, error) {
	handle, err := r.gw.Factory(ctx, ifaceServiceInput)
	if err != nil {
		return 0, err
	}

	ok, err := r.gw.InvokeStatus(ctx, ifaceServiceInput, "Initialize", handle, map[string]any{
		"aPhysicianGLN":  req.Provider.GLN,
		"aBillingRole":   "mc",
		"aMedicalRole":   "self_employed",
		"aBirthDate":     engineDate(req.Patient.BirthDate),
		"aSex":           req.Patient.Sex,
		"aCanton":        req.Treatment.Canton,
		"aLaw":           string(req.Law),
		"aTreatmentType": req.Treatment.Type,
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		info, infoErr := r.gw.AbortInfo(ctx, ifaceServiceInput, handle)
		if infoErr != nil {
			r.log.Warn("extended service context rejected", "error", infoErr)
		} else {
			r.log.Warn("extended service context rejected",
				"abort_code", info.AAbortCode,
				"abort_message", info.AAbortMessage,
			)
		}
		return 0, nil
	}

	return handle, nil
}

// addExtended registers one TARDOC line. The amount is always derived from
// the line's factors, overriding any caller-supplied amount.
func (r *tariffRouter) addExtended(ctx context.Context, s *Session, exHandle int, line invoice.ServiceLine) (bool, error) {
	amount := line.ExtendedAmount()
	r.log.Debug("derived extended service amount",
		"code", line.Code,
		"quantity", line.Quantity,
		"unit", line.Unit,
		"unit_factor", line.UnitFactor,
		"external_factor", line.ExternalFactor,
		"amount", amount,
	)

	ok, err := r.gw.InvokeStatus(ctx, ifaceRequest, "AddServiceEx", s.request, map[string]any{
		"ahServiceInput":  exHandle,
		"aTariffType":     line.TariffType,
		"aCode":           line.Code,
		"aReferenceCode":  line.RefCode,
		"aText":           line.Name,
		"aDate":           engineDate(line.Date),
		"aSession":        line.SessionNumber,
		"aQuantity":       line.Quantity,
		"aUnit":           line.Unit,
		"aUnitFactor":     line.UnitFactor,
		"aExternalFactor": line.ExternalFactor,
		"dAmount":         amount,
		"aProviderGLN":    line.ProviderGLN,
		"aResponsibleGLN": line.ResponsibleGLN,
		"aObligation":     line.Obligation,
	})
	if err != nil {
		return false, err
	}
	if !ok {
		r.warnRejected(ctx, s, "extended", line)
		return false, nil
	}
	return true, nil
}

func (r *tariffRouter) addSimple(ctx context.Context, s *Session, line invoice.ServiceLine) (bool, error) {
	ok, err := r.gw.InvokeStatus(ctx, ifaceRequest, "AddService", s.request, map[string]any{
		"aTariffType":     line.TariffType,
		"aCode":           line.Code,
		"aReferenceCode":  line.RefCode,
		"aText":           line.Name,
		"aDate":           engineDate(line.Date),
		"aSession":        line.SessionNumber,
		"aQuantity":       line.Quantity,
		"aUnit":           line.Unit,
		"aUnitFactor":     line.UnitFactor,
		"aExternalFactor": line.ExternalFactor,
		"dAmount":         line.Amount,
		"aObligation":     line.Obligation,
	})
	if err != nil {
		return false, err
	}
	if !ok {
		r.warnRejected(ctx, s, "simple", line)
		return false, nil
	}
	return true, nil
}

func (r *tariffRouter) warnRejected(ctx context.Context, s *Session, path string, line invoice.ServiceLine) {
	attrs := []any{
		"path", path,
		"tariff_type", line.TariffType,
		"code", line.Code,
	}
	if info, err := r.gw.AbortInfo(ctx, ifaceRequest, s.request); err == nil {
		attrs = append(attrs, "abort_code", info.AAbortCode, "abort_message", info.AAbortMessage)
	}
	r.log.Warn("service line rejected, continuing", attrs...)
}
