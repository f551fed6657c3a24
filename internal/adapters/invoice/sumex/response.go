package sumex

import (
	"context"
	"fmt"
	"log/slog"

	"praxisdesk/ms_invoicing/internal/core/response"
	"praxisdesk/ms_invoicing/internal/infrastructure/config"
)

// Interpreter drives the response-parser engine: it loads an insurer
// response document into a fresh session, classifies it into one of the
// three outcome variants, and walks the notification cursor.
type Interpreter struct {
	gw       *Gateway
	strategy config.CloseStrategy
	log      *slog.Logger
}

// NewInterpreter creates a response interpreter over one response-parser
// engine gateway.
func NewInterpreter(gw *Gateway, strategy config.CloseStrategy, log *slog.Logger) *Interpreter {
	return &Interpreter{gw: gw, strategy: strategy, log: log}
}

// Parse loads raw response-document bytes and returns the structured
// interpretation. The load is the only mandatory step; every accessor
// after it is best effort, since a document may legitimately omit sections
// for its outcome type.
func (i *Interpreter) Parse(ctx context.Context, document []byte, filename string) (*response.Interpretation, error) {
	manager, respHandle, err := i.open(ctx, document, filename)
	if err != nil {
		return nil, err
	}
	defer i.close(context.WithoutCancel(ctx), manager, respHandle)

	var summary summaryResponse
	if err := i.gw.Property(ctx, ifaceResponse, "GetResponseSummary", respHandle, &summary); err != nil {
		return nil, err
	}
	if !summary.PbStatus {
		return nil, i.abortErr(ctx, respHandle, "GetResponseSummary")
	}

	interp := &response.Interpretation{Success: true}

	switch summary.PeResponseType {
	case responseTypeAccepted:
		interp.Outcome = response.OutcomeAccepted
		interp.Accepted = i.readAccepted(ctx, respHandle)
	case responseTypeRejected:
		interp.Outcome = response.OutcomeRejected
		interp.Rejected = i.readRejected(ctx, respHandle)
	case responseTypePending:
		interp.Outcome = response.OutcomePending
		interp.Pending = i.readPending(ctx, respHandle)
	default:
		return nil, fmt.Errorf("unknown response type %d", summary.PeResponseType)
	}

	interp.Notifications = i.readNotifications(ctx, respHandle)

	if err := interp.Validate(); err != nil {
		return nil, fmt.Errorf("inconsistent interpretation: %w", err)
	}
	return interp, nil
}

// Print loads a response document and returns its rendered bytes.
func (i *Interpreter) Print(ctx context.Context, document []byte) ([]byte, error) {
	manager, respHandle, err := i.open(ctx, document, "")
	if err != nil {
		return nil, err
	}
	defer i.close(context.WithoutCancel(ctx), manager, respHandle)

	var pr printResponse
	if err := i.gw.Invoke(ctx, ifaceResponse, "Print", respHandle, nil, &pr); err != nil {
		return nil, err
	}
	if !pr.PbStatus {
		return nil, i.abortErr(ctx, respHandle, "Print")
	}

	rendered, err := i.gw.Download(ctx, pr.PbstrOutFile)
	if err != nil {
		return nil, fmt.Errorf("download rendered response: %w", err)
	}
	return rendered, nil
}

// open creates a response session and loads the document into it. A load
// rejection aborts the whole operation with the engine's explanation.
func (i *Interpreter) open(ctx context.Context, document []byte, filename string) (manager, respHandle int, err error) {
	manager, err = i.gw.Factory(ctx, ifaceResponseManager)
	if err != nil {
		return 0, 0, fmt.Errorf("create response manager: %w", err)
	}

	ok, err := i.gw.LoadBinary(ctx, ifaceResponseManager, "LoadXML", manager, document)
	if err != nil {
		i.close(context.WithoutCancel(ctx), manager, 0)
		return 0, 0, err
	}
	if !ok {
		abort := &AbortError{Step: "LoadXML"}
		if info, infoErr := i.gw.AbortInfo(ctx, ifaceResponseManager, manager); infoErr == nil {
			abort.Code = info.AAbortCode
			abort.Message = info.AAbortMessage
		}
		i.log.Error("response document rejected",
			"filename", filename,
			"abort_code", abort.Code,
			"abort_message", abort.Message,
		)
		i.close(context.WithoutCancel(ctx), manager, 0)
		return 0, 0, abort
	}

	var hr handleResponse
	if err := i.gw.Invoke(ctx, ifaceResponseManager, "GetGeneralInvoiceResponse", manager, nil, &hr); err != nil {
		i.close(context.WithoutCancel(ctx), manager, 0)
		return 0, 0, err
	}
	if !hr.PbStatus || hr.Handle == 0 {
		i.close(context.WithoutCancel(ctx), manager, 0)
		return 0, 0, &AbortError{Step: "GetGeneralInvoiceResponse"}
	}

	return manager, hr.Handle, nil
}

func (i *Interpreter) readAccepted(ctx context.Context, handle int) *response.Accepted {
	accepted := &response.Accepted{}

	var ar acceptedResponse
	if err := i.gw.Invoke(ctx, ifaceResponse, "GetAccepted", handle, nil, &ar); err != nil {
		i.log.Warn("could not read accepted details", "error", err)
	} else if ar.PbStatus {
		accepted.Explanation = ar.PstrExplanation
	}

	// The balance section is optional in the document; a failed read never
	// fails the interpretation.
	var br balanceResponse
	if err := i.gw.Invoke(ctx, ifaceResponse, "GetBalance", handle, nil, &br); err != nil {
		i.log.Warn("could not read balance details", "error", err)
	} else if br.PbStatus {
		accepted.Balance = &response.Balance{
			Currency:   br.PstrCurrency,
			Amount:     br.DAmount,
			AmountPaid: br.DAmountPaid,
			AmountDue:  br.DAmountDue,
		}
	}

	return accepted
}

func (i *Interpreter) readRejected(ctx context.Context, handle int) *response.Rejected {
	rejected := &response.Rejected{}

	var rr rejectedResponse
	if err := i.gw.Invoke(ctx, ifaceResponse, "GetRejected", handle, nil, &rr); err != nil {
		i.log.Warn("could not read rejected details", "error", err)
	} else if rr.PbStatus {
		rejected.Explanation = rr.PstrExplanation
		rejected.HasError = rr.PeHasError
	}

	return rejected
}

func (i *Interpreter) readPending(ctx context.Context, handle int) *response.Pending {
	pending := &response.Pending{}

	var pr pendingResponse
	if err := i.gw.Invoke(ctx, ifaceResponse, "GetPending", handle, nil, &pr); err != nil {
		i.log.Warn("could not read pending details", "error", err)
	} else if pr.PbStatus {
		pending.Explanation = pr.PstrExplanation
		pending.HasMessage = pr.PeHasMessage
	}

	return pending
}

// readNotifications walks the engine's forward-only cursor: first one
// GetFirstNotification, then GetNextNotification until a read reports
// failure. The cursor cannot be restarted, so this is a single pass.
func (i *Interpreter) readNotifications(ctx context.Context, handle int) []response.Notification {
	var notifications []response.Notification

	method := "GetFirstNotification"
	for {
		var nr notificationResponse
		if err := i.gw.Invoke(ctx, ifaceResponse, method, handle, nil, &nr); err != nil {
			i.log.Warn("notification traversal interrupted", "error", err)
			return notifications
		}
		if !nr.PbStatus {
			return notifications
		}

		notifications = append(notifications, response.Notification{
			Code:     nr.PstrCode,
			Text:     nr.PstrText,
			IsError:  nr.PbError,
			RecordID: nr.PlRecordID,
			Observed: nr.PstrObserved,
			Expected: nr.PstrExpected,
		})
		method = "GetNextNotification"
	}
}

func (i *Interpreter) abortErr(ctx context.Context, handle int, step string) error {
	abort := &AbortError{Step: step}
	if info, err := i.gw.AbortInfo(ctx, ifaceResponse, handle); err == nil {
		abort.Code = info.AAbortCode
		abort.Message = info.AAbortMessage
	}
	return abort
}

// close releases the response session with the configured strategy.
func (i *Interpreter) close(ctx context.Context, manager, respHandle int) {
	if i.strategy != config.CloseEager {
		return
	}

	if respHandle != 0 {
		if _, err := i.gw.InvokeStatus(ctx, ifaceResponse, "Destruct", respHandle, nil); err != nil {
			i.log.Debug("response destruct failed, engine will garbage-collect", "error", err)
		}
	}
	if _, err := i.gw.InvokeStatus(ctx, ifaceResponseManager, "Destruct", manager, nil); err != nil {
		i.log.Debug("response manager destruct failed, engine will garbage-collect", "error", err)
	}
}
