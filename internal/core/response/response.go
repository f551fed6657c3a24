// Package response models the interpretation of an insurer
// generalInvoiceResponse document. A response resolves to exactly one of
// three outcomes, each with its own sub-record, plus an ordered list of
// notifications read from the engine's forward-only cursor.
package response

import "fmt"

// Outcome is the discriminant of a response interpretation.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomePending  Outcome = "pending"
)

// Accepted carries the sub-record of an accepted response.
type Accepted struct {
	Explanation string   `json:"explanation,omitempty"`
	Balance     *Balance `json:"balance,omitempty"`
}

// Balance is the settlement detail of an accepted response. The section is
// optional in the document; a missing balance does not fail interpretation.
type Balance struct {
	Currency   string  `json:"currency"`
	Amount     float64 `json:"amount"`
	AmountPaid float64 `json:"amountPaid"`
	AmountDue  float64 `json:"amountDue"`
}

// Rejected carries the sub-record of a rejected response.
type Rejected struct {
	Explanation string `json:"explanation,omitempty"`
	HasError    bool   `json:"hasError"`
}

// Pending carries the sub-record of a pending response.
type Pending struct {
	Explanation string `json:"explanation,omitempty"`
	HasMessage  bool   `json:"hasMessage"`
}

// Notification is one entry of the response's repeated notification
// structure.
type Notification struct {
	Code     string `json:"code"`
	Text     string `json:"text,omitempty"`
	IsError  bool   `json:"isError"`
	RecordID int64  `json:"recordId,omitempty"`
	Observed string `json:"observed,omitempty"`
	Expected string `json:"expected,omitempty"`
}

// Interpretation is the structured reading of one response document.
// Exactly one of Accepted/Rejected/Pending is non-nil, matching Outcome.
type Interpretation struct {
	Success       bool           `json:"success"`
	Outcome       Outcome        `json:"outcome"`
	Accepted      *Accepted      `json:"accepted,omitempty"`
	Rejected      *Rejected      `json:"rejected,omitempty"`
	Pending       *Pending       `json:"pending,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// Validate enforces the exactly-one-outcome invariant.
func (i Interpretation) Validate() error {
	set := 0
	if i.Accepted != nil {
		set++
		if i.Outcome != OutcomeAccepted {
			return fmt.Errorf("accepted details populated for outcome %q", i.Outcome)
		}
	}
	if i.Rejected != nil {
		set++
		if i.Outcome != OutcomeRejected {
			return fmt.Errorf("rejected details populated for outcome %q", i.Outcome)
		}
	}
	if i.Pending != nil {
		set++
		if i.Outcome != OutcomePending {
			return fmt.Errorf("pending details populated for outcome %q", i.Outcome)
		}
	}
	if set != 1 {
		return fmt.Errorf("expected exactly one outcome sub-record, got %d", set)
	}
	return nil
}
