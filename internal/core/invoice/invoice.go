// Package invoice holds the domain model for building Swiss medical
// insurance invoices (the generalInvoiceRequest document family) through a
// remote invoicing engine.
package invoice

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// BillingMode identifies who is financially billed for a treatment.
type BillingMode string

const (
	// ModeGarant bills the patient, who reclaims from the insurer.
	ModeGarant BillingMode = "garant"
	// ModePayant bills the insurer directly.
	ModePayant BillingMode = "payant"
	// ModeSoldant settles through a hybrid third-party arrangement.
	ModeSoldant BillingMode = "soldant"
)

// Valid reports whether the billing mode is one of the known values.
func (m BillingMode) Valid() bool {
	switch m {
	case ModeGarant, ModePayant, ModeSoldant:
		return true
	}
	return false
}

// Law classifies the insurance law the invoice is issued under.
type Law string

const (
	LawKVG Law = "KVG" // health insurance
	LawUVG Law = "UVG" // accident insurance
	LawIVG Law = "IVG" // disability insurance
	LawMVG Law = "MVG" // military insurance
	LawVVG Law = "VVG" // private supplementary insurance
)

// TariffTypeTardoc is the tariff-type code of TARDOC service lines, which
// must be registered through the engine's extended service schema.
const TariffTypeTardoc = "001"

// zsrPattern is the required shape of a ZSR registration number: one letter
// followed by six digits.
var zsrPattern = regexp.MustCompile(`^[A-Za-z][0-9]{6}$`)

// ValidZSR reports whether a ZSR registration number is well formed.
// Malformed values are skipped by the orchestrator rather than sent.
func ValidZSR(zsr string) bool {
	return zsrPattern.MatchString(zsr)
}

// Address is a logical postal/contact record for one party role. A record
// with a company name is written to the engine as a business party; one
// with only a family name as an individual. Company presence takes
// precedence when both are set.
type Address struct {
	CompanyName string `json:"companyName,omitempty"`
	Salutation  string `json:"salutation,omitempty"`
	Title       string `json:"title,omitempty"`
	GivenName   string `json:"givenName,omitempty"`
	FamilyName  string `json:"familyName,omitempty"`
	Street      string `json:"street"`
	POBox       string `json:"poBox,omitempty"`
	ZIP         string `json:"zip"`
	City        string `json:"city"`
	StateCode   string `json:"stateCode,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Email       string `json:"email,omitempty"`
	URL         string `json:"url,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// IsCompany reports whether the record describes a business party.
func (a Address) IsCompany() bool { return a.CompanyName != "" }

// IsZero reports whether the record carries no identity at all.
func (a Address) IsZero() bool {
	return a.CompanyName == "" && a.FamilyName == "" && a.Street == "" && a.City == ""
}

// Party couples a billing identity (GLN, optional ZSR) with its address.
type Party struct {
	GLN     string  `json:"gln"`
	ZSR     string  `json:"zsr,omitempty"`
	Address Address `json:"address"`
}

// Patient carries the demographic context the engine needs beyond the
// postal record.
type Patient struct {
	Address   Address   `json:"address"`
	BirthDate time.Time `json:"birthDate"`
	Sex       string    `json:"sex"` // "male" or "female"
	SSN       string    `json:"ssn,omitempty"`
}

// Diagnosis is one diagnosis entry; registrations are independent of each
// other and individually non-fatal.
type Diagnosis struct {
	Type string `json:"type"` // e.g. "ICD", "ICPC"
	Code string `json:"code"`
	Text string `json:"text,omitempty"`
}

// Partner is a third party referenced by the invoice (e.g. a lab).
type Partner struct {
	GLN     string  `json:"gln"`
	Address Address `json:"address"`
}

// ServiceLine is a single billed service. TariffType selects the engine
// registration path: TariffTypeTardoc goes through the extended schema,
// everything else through the simple one.
type ServiceLine struct {
	TariffType     string    `json:"tariffType"`
	Code           string    `json:"code"`
	RefCode        string    `json:"refCode,omitempty"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	SessionNumber  int       `json:"sessionNumber,omitempty"`
	Quantity       float64   `json:"quantity"`
	Unit           float64   `json:"unit"`
	UnitFactor     float64   `json:"unitFactor"`
	ExternalFactor float64   `json:"externalFactor"`
	Amount         float64   `json:"amount,omitempty"`
	ProviderGLN    string    `json:"providerGln,omitempty"`
	ResponsibleGLN string    `json:"responsibleGln,omitempty"`
	Obligation     bool      `json:"obligation,omitempty"`
}

// IsExtended reports whether the line must use the extended registration
// path.
func (l ServiceLine) IsExtended() bool { return l.TariffType == TariffTypeTardoc }

// internalScaling is the fixed internal scaling factor of the extended
// amount formula.
const internalScaling = 1

// ExtendedAmount derives the amount of an extended-tariff line, rounded to
// two decimals. It always wins over any caller-supplied Amount.
func (l ServiceLine) ExtendedAmount() float64 {
	amount := decimal.NewFromFloat(l.Quantity).
		Mul(decimal.NewFromFloat(l.Unit)).
		Mul(decimal.NewFromFloat(l.UnitFactor)).
		Mul(decimal.NewFromInt(internalScaling)).
		Mul(decimal.NewFromFloat(l.ExternalFactor)).
		Round(2)
	f, _ := amount.Float64()
	return f
}

// Treatment carries the treatment metadata of the invoice.
type Treatment struct {
	Canton    string    `json:"canton"`
	DateBegin time.Time `json:"dateBegin"`
	DateEnd   time.Time `json:"dateEnd"`
	Reason    string    `json:"reason"` // e.g. "disease", "accident"
	Type      string    `json:"type,omitempty"`
	APCase    string    `json:"apCase,omitempty"`
}

// Reminder marks the invoice as a payment reminder of a given level.
type Reminder struct {
	Level int       `json:"level"`
	Date  time.Time `json:"date"`
	Text  string    `json:"text,omitempty"`
}

// ProcessingFlags are optional engine hints; their registration is
// non-fatal when rejected.
type ProcessingFlags struct {
	PrintAtIntermediate bool `json:"printAtIntermediate,omitempty"`
	PrintGuarantorCopy  bool `json:"printGuarantorCopy,omitempty"`
}

// Transport names the routing of the generated document. It is mandatory:
// the engine refuses to generate without it.
type Transport struct {
	FromGLN string `json:"fromGln"`
	ToGLN   string `json:"toGln"`
	ViaGLN  string `json:"viaGln,omitempty"`
}

// Request is the immutable invoice input assembled by the (out-of-scope)
// clinic layers and consumed by the session orchestrator.
type Request struct {
	InvoiceID    string    `json:"invoiceId"`
	InvoiceDate  time.Time `json:"invoiceDate"`
	CaseID       string    `json:"caseId,omitempty"`
	CaseDate     time.Time `json:"caseDate,omitempty"`
	Law          Law       `json:"law"`
	Mode         BillingMode `json:"mode"`
	ESRReference string    `json:"esrReference,omitempty"` // derived from InvoiceID when empty

	Biller   Party    `json:"biller"`
	Provider Party    `json:"provider"`
	Insurer  *Party   `json:"insurer,omitempty"`
	Patient  Patient  `json:"patient"`
	Insured  *Address `json:"insured,omitempty"`
	// Guarantor is only sent when it differs from the patient; the engine
	// auto-clones the patient address otherwise.
	Guarantor *Address `json:"guarantor,omitempty"`
	// Debtor overrides the computed debtor when set.
	Debtor *Address `json:"debtor,omitempty"`

	Treatment    Treatment        `json:"treatment"`
	Diagnoses    []Diagnosis      `json:"diagnoses,omitempty"`
	Partners     []Partner        `json:"partners,omitempty"`
	Services     []ServiceLine    `json:"services"`
	CreditAmount *float64         `json:"creditAmount,omitempty"`
	Reminder     *Reminder        `json:"reminder,omitempty"`
	Processing   *ProcessingFlags `json:"processing,omitempty"`
	Transport    Transport        `json:"transport"`
	Remarks      string           `json:"remarks,omitempty"`
}

// ResolveDebtor applies the debtor selection rule: an explicit override
// always wins; otherwise the insurer is the debtor when the insurer is
// billed directly (payant) and an insurer address exists; otherwise the
// patient.
func (r Request) ResolveDebtor() Address {
	if r.Debtor != nil {
		return *r.Debtor
	}
	if r.Mode == ModePayant && r.Insurer != nil && !r.Insurer.Address.IsZero() {
		return r.Insurer.Address
	}
	return r.Patient.Address
}

// GenerateOptions are the per-build flags of the orchestrator.
type GenerateOptions struct {
	// Render additionally asks the engine to print the generated invoice;
	// print failures never fail the build.
	Render bool `json:"render,omitempty"`
}

// BuildResult is the outcome of one orchestrated build.
type BuildResult struct {
	Success         bool   `json:"success"`
	DocumentPath    string `json:"documentPath,omitempty"`
	Document        []byte `json:"document,omitempty"`
	Rendered        []byte `json:"rendered,omitempty"`
	ValidationError int    `json:"validationError,omitempty"`
	// AbortCode and AbortMessage are only set when Success is false.
	AbortCode    int    `json:"abortCode,omitempty"`
	AbortMessage string `json:"abortMessage,omitempty"`
}
