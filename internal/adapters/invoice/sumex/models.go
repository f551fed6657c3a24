package sumex

// Engine interface names. Each factory GET on one of these returns a fresh
// handle; methods and properties are scoped to a handle.
const (
	ifaceRequestManager  = "IGeneralInvoiceRequestManager"
	ifaceRequest         = "IGeneralInvoiceRequest"
	ifaceAddress         = "IAddress"
	ifaceServiceInput    = "IServiceExInput"
	ifaceResponseManager = "IGeneralInvoiceResponseManager"
	ifaceResponse        = "IGeneralInvoiceResponse"
)

// factoryResponse is the body of a factory GET.
type factoryResponse struct {
	Handle int `json:"handle"`
}

// handleResponse is the body of a method call that hands out a sub-handle,
// e.g. GetGeneralInvoiceRequest on the request manager.
type handleResponse struct {
	PbStatus bool `json:"pbStatus"`
	Handle   int  `json:"handle"`
}

// statusResponse is the minimal method result: the engine's boolean status.
type statusResponse struct {
	PbStatus bool `json:"pbStatus"`
}

// abortInfo carries the engine's own explanation of the last failure on a
// handle. It also appears verbatim in non-2xx error bodies.
type abortInfo struct {
	AAbortCode    int    `json:"aAbortCode"`
	AAbortMessage string `json:"aAbortMessage"`
}

type abortInfoResponse struct {
	PbStatus bool `json:"pbStatus"`
	abortInfo
}

// finalizeResponse may carry a non-fatal post-validation warning alongside a
// true status.
type finalizeResponse struct {
	PbStatus    bool   `json:"pbStatus"`
	PstrWarning string `json:"pstrWarning"`
}

// generateResponse is the body of GetXML. PlValidationError is a warning
// code, not a failure: the engine still produced a usable document.
type generateResponse struct {
	PbStatus          bool   `json:"pbStatus"`
	PlValidationError int    `json:"plValidationError"`
	PbstrOutFile      string `json:"pbstrOutFile"`
}

// printResponse is the body of Print on either engine.
type printResponse struct {
	PbStatus     bool   `json:"pbStatus"`
	PbstrOutFile string `json:"pbstrOutFile"`
}

// Response-parser discriminant values returned by GetResponseSummary.
const (
	responseTypeAccepted = 0
	responseTypeRejected = 1
	responseTypePending  = 2
)

type summaryResponse struct {
	PbStatus       bool `json:"pbStatus"`
	PeResponseType int  `json:"peResponseType"`
}

type acceptedResponse struct {
	PbStatus        bool   `json:"pbStatus"`
	PstrExplanation string `json:"pstrExplanation"`
}

type rejectedResponse struct {
	PbStatus        bool   `json:"pbStatus"`
	PstrExplanation string `json:"pstrExplanation"`
	PeHasError      bool   `json:"peHasError"`
}

type pendingResponse struct {
	PbStatus        bool   `json:"pbStatus"`
	PstrExplanation string `json:"pstrExplanation"`
	PeHasMessage    bool   `json:"peHasMessage"`
}

type balanceResponse struct {
	PbStatus     bool    `json:"pbStatus"`
	PstrCurrency string  `json:"pstrCurrency"`
	DAmount      float64 `json:"dAmount"`
	DAmountPaid  float64 `json:"dAmountPaid"`
	DAmountDue   float64 `json:"dAmountDue"`
}

// notificationResponse is one read of the forward-only notification cursor.
// A false status terminates traversal.
type notificationResponse struct {
	PbStatus     bool   `json:"pbStatus"`
	PstrCode     string `json:"pstrCode"`
	PstrText     string `json:"pstrText"`
	PbError      bool   `json:"pbError"`
	PlRecordID   int64  `json:"plRecordId"`
	PstrObserved string `json:"pstrObserved"`
	PstrExpected string `json:"pstrExpected"`
}
