package invoice

import (
	"testing"
	"time"
)

func TestResolveDebtor(t *testing.T) {
	patient := Address{FamilyName: "Muster", Street: "Weg 1", ZIP: "3000", City: "Bern"}
	insurer := Address{CompanyName: "Helsana", Street: "Postfach", ZIP: "8081", City: "Zürich"}
	override := Address{CompanyName: "Gemeinde Bern", Street: "Amt 2", ZIP: "3011", City: "Bern"}

	cases := []struct {
		name string
		req  Request
		want Address
	}{
		{
			name: "payant with insurer picks insurer",
			req: Request{
				Mode:    ModePayant,
				Insurer: &Party{GLN: "7601003000001", Address: insurer},
				Patient: Patient{Address: patient},
			},
			want: insurer,
		},
		{
			name: "payant without insurer falls back to patient",
			req: Request{
				Mode:    ModePayant,
				Patient: Patient{Address: patient},
			},
			want: patient,
		},
		{
			name: "garant picks patient even with insurer present",
			req: Request{
				Mode:    ModeGarant,
				Insurer: &Party{Address: insurer},
				Patient: Patient{Address: patient},
			},
			want: patient,
		},
		{
			name: "explicit override always wins",
			req: Request{
				Mode:    ModePayant,
				Insurer: &Party{Address: insurer},
				Patient: Patient{Address: patient},
				Debtor:  &override,
			},
			want: override,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.req.ResolveDebtor(); got != tc.want {
				t.Errorf("ResolveDebtor() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestServiceLine_ExtendedAmount(t *testing.T) {
	cases := []struct {
		name string
		line ServiceLine
		want float64
	}{
		{
			name: "spec scenario",
			line: ServiceLine{Quantity: 2, Unit: 10, UnitFactor: 1.5, ExternalFactor: 1, Amount: 999},
			want: 30.00,
		},
		{
			name: "rounds to two decimals",
			line: ServiceLine{Quantity: 3, Unit: 1.111, UnitFactor: 1, ExternalFactor: 1},
			want: 3.33,
		},
		{
			name: "external factor applies",
			line: ServiceLine{Quantity: 1, Unit: 100, UnitFactor: 0.89, ExternalFactor: 0.9},
			want: 80.10,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.line.ExtendedAmount(); got != tc.want {
				t.Errorf("ExtendedAmount() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestServiceLine_IsExtended(t *testing.T) {
	if !(ServiceLine{TariffType: TariffTypeTardoc}).IsExtended() {
		t.Error("tariff type 001 must route to the extended path")
	}
	for _, tt := range []string{"", "002", "312", "590"} {
		if (ServiceLine{TariffType: tt}).IsExtended() {
			t.Errorf("tariff type %q must route to the simple path", tt)
		}
	}
}

func TestValidZSR(t *testing.T) {
	valid := []string{"P123456", "a000001", "Z999999"}
	for _, z := range valid {
		if !ValidZSR(z) {
			t.Errorf("ValidZSR(%q) = false, want true", z)
		}
	}
	invalid := []string{"", "1234567", "PP12345", "P12345", "P1234567", "P12345X"}
	for _, z := range invalid {
		if ValidZSR(z) {
			t.Errorf("ValidZSR(%q) = true, want false", z)
		}
	}
}

func TestAddress_IsCompanyPrecedence(t *testing.T) {
	a := Address{CompanyName: "Praxis am See", FamilyName: "Muster"}
	if !a.IsCompany() {
		t.Error("company name must take precedence over a person name")
	}
}

func TestBillingMode_Valid(t *testing.T) {
	for _, m := range []BillingMode{ModeGarant, ModePayant, ModeSoldant} {
		if !m.Valid() {
			t.Errorf("mode %q should be valid", m)
		}
	}
	if BillingMode("tiers").Valid() {
		t.Error("unknown mode accepted")
	}
}

func TestRequest_GuarantorOmittedWhenPatient(t *testing.T) {
	// The input model intentionally leaves Guarantor nil when the guarantor
	// is the patient; the engine clones the patient address itself.
	req := Request{
		Mode:        ModeGarant,
		InvoiceDate: time.Now(),
		Patient:     Patient{Address: Address{FamilyName: "Muster"}},
	}
	if req.Guarantor != nil {
		t.Error("guarantor must default to nil")
	}
}
