package sumex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"praxisdesk/ms_invoicing/internal/core/response"
	"praxisdesk/ms_invoicing/internal/infrastructure/config"
	"praxisdesk/ms_invoicing/internal/testutil"
)

func newTestInterpreter(t *testing.T, server *httptest.Server, strategy config.CloseStrategy) *Interpreter {
	t.Helper()
	return NewInterpreter(newTestGateway(t, server), strategy, testutil.NewTestLogger())
}

// withNotifications wires a forward-only cursor with n entries into the
// fake engine: n successful reads, then one failed read.
func withNotifications(engine *fakeEngine, n int) {
	read := 0
	next := func(int, []byte) (int, string) {
		read++
		if read > n {
			return http.StatusOK, `{"pbStatus":false}`
		}
		return http.StatusOK, fmt.Sprintf(
			`{"pbStatus":true,"pstrCode":"N%d","pstrText":"notification %d","pbError":%t,"plRecordId":%d}`,
			read, read, read == 1, read*100,
		)
	}
	engine.override("IGeneralInvoiceResponse/GetFirstNotification", next)
	engine.override("IGeneralInvoiceResponse/GetNextNotification", next)
}

func TestInterpreter_Parse_Rejected(t *testing.T) {
	engine := newFakeEngine()
	engine.override("IGeneralInvoiceResponse/GetResponseSummary", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"peResponseType":1}`
	})
	engine.override("IGeneralInvoiceResponse/GetRejected", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"pstrExplanation":"tariff position unknown","peHasError":true}`
	})
	withNotifications(engine, 2)
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseIdle)

	interp, err := i.Parse(context.Background(), []byte("<generalInvoiceResponse/>"), "resp.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if interp.Outcome != response.OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %q", interp.Outcome)
	}
	if interp.Rejected == nil || !interp.Rejected.HasError {
		t.Error("expected rejected details with error flag set")
	}
	if interp.Rejected != nil && interp.Rejected.Explanation != "tariff position unknown" {
		t.Errorf("unexpected explanation %q", interp.Rejected.Explanation)
	}
	if interp.Accepted != nil || interp.Pending != nil {
		t.Error("only the rejected sub-record may be populated")
	}
	if len(interp.Notifications) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(interp.Notifications))
	}
}

func TestInterpreter_Parse_AcceptedWithBalance(t *testing.T) {
	engine := newFakeEngine()
	engine.override("IGeneralInvoiceResponse/GetResponseSummary", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"peResponseType":0}`
	})
	engine.override("IGeneralInvoiceResponse/GetAccepted", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"pstrExplanation":"invoice accepted"}`
	})
	engine.override("IGeneralInvoiceResponse/GetBalance", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"pstrCurrency":"CHF","dAmount":250.40,"dAmountPaid":0,"dAmountDue":250.40}`
	})
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseIdle)

	interp, err := i.Parse(context.Background(), []byte("<generalInvoiceResponse/>"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if interp.Outcome != response.OutcomeAccepted {
		t.Fatalf("expected accepted outcome, got %q", interp.Outcome)
	}
	if interp.Accepted == nil || interp.Accepted.Balance == nil {
		t.Fatal("expected accepted details with balance")
	}
	balance := interp.Accepted.Balance
	if balance.Currency != "CHF" || balance.AmountDue != 250.40 {
		t.Errorf("unexpected balance %+v", balance)
	}
}

func TestInterpreter_Parse_MissingBalanceIsNotFatal(t *testing.T) {
	engine := newFakeEngine()
	engine.override("IGeneralInvoiceResponse/GetResponseSummary", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"peResponseType":0}`
	})
	engine.override("IGeneralInvoiceResponse/GetAccepted", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true}`
	})
	engine.override("IGeneralInvoiceResponse/GetBalance", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":false}`
	})
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseIdle)

	interp, err := i.Parse(context.Background(), []byte("<generalInvoiceResponse/>"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interp.Accepted == nil {
		t.Fatal("expected accepted details")
	}
	if interp.Accepted.Balance != nil {
		t.Error("expected no balance when the document omits the section")
	}
}

func TestInterpreter_Parse_Pending(t *testing.T) {
	engine := newFakeEngine()
	engine.override("IGeneralInvoiceResponse/GetResponseSummary", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"peResponseType":2}`
	})
	engine.override("IGeneralInvoiceResponse/GetPending", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"pstrExplanation":"under review","peHasMessage":true}`
	})
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseIdle)

	interp, err := i.Parse(context.Background(), []byte("<generalInvoiceResponse/>"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interp.Outcome != response.OutcomePending {
		t.Fatalf("expected pending outcome, got %q", interp.Outcome)
	}
	if interp.Pending == nil || !interp.Pending.HasMessage {
		t.Error("expected pending details with message flag")
	}
}

func TestInterpreter_Parse_NotificationTraversalIsExhaustive(t *testing.T) {
	engine := newFakeEngine()
	engine.override("IGeneralInvoiceResponse/GetResponseSummary", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"peResponseType":1}`
	})
	withNotifications(engine, 3)
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseIdle)

	interp, err := i.Parse(context.Background(), []byte("<generalInvoiceResponse/>"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(interp.Notifications) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(interp.Notifications))
	}
	if interp.Notifications[0].Code != "N1" || !interp.Notifications[0].IsError {
		t.Errorf("unexpected first notification %+v", interp.Notifications[0])
	}

	// For N entries: one first read, N-1 successful next reads, one failed
	// next read ending the cursor.
	first := engine.count("IGeneralInvoiceResponse/GetFirstNotification")
	next := engine.count("IGeneralInvoiceResponse/GetNextNotification")
	if first != 1 {
		t.Errorf("expected 1 first-notification read, got %d", first)
	}
	if next != 3 {
		t.Errorf("expected 3 next-notification reads, got %d", next)
	}
}

func TestInterpreter_Parse_LoadRejectionIsFatal(t *testing.T) {
	engine := newFakeEngine()
	engine.override("IGeneralInvoiceResponseManager/LoadXML", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":false}`
	})
	engine.override("IGeneralInvoiceResponseManager/GetAbortInfo", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"aAbortCode":2205,"aAbortMessage":"not a generalInvoiceResponse document"}`
	})
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseIdle)

	_, err := i.Parse(context.Background(), []byte("garbage"), "resp.xml")
	if err == nil {
		t.Fatal("expected an error")
	}

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected AbortError, got %T: %v", err, err)
	}
	if abort.Code != 2205 {
		t.Errorf("expected abort code 2205, got %d", abort.Code)
	}
}

func TestInterpreter_Parse_EagerCloseDestructsHandles(t *testing.T) {
	engine := newFakeEngine()
	engine.override("IGeneralInvoiceResponse/GetResponseSummary", func(n int, body []byte) (int, string) {
		return http.StatusOK, `{"pbStatus":true,"peResponseType":0}`
	})
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseEager)

	if _, err := i.Parse(context.Background(), []byte("<generalInvoiceResponse/>"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := engine.count("IGeneralInvoiceResponse/Destruct"); got != 1 {
		t.Errorf("expected 1 response destruct, got %d", got)
	}
	if got := engine.count("IGeneralInvoiceResponseManager/Destruct"); got != 1 {
		t.Errorf("expected 1 manager destruct, got %d", got)
	}
}

func TestInterpreter_Print(t *testing.T) {
	engine := newFakeEngine()
	engine.document = []byte("%PDF-rendered")
	server := httptest.NewServer(engine.handler())
	defer server.Close()

	i := newTestInterpreter(t, server, config.CloseIdle)

	rendered, err := i.Print(context.Background(), []byte("<generalInvoiceResponse/>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rendered) != "%PDF-rendered" {
		t.Errorf("unexpected rendered bytes %q", rendered)
	}
}
