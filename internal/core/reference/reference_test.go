package reference

import (
	"strings"
	"testing"
)

func TestFromInvoiceID_Length(t *testing.T) {
	ids := []string{
		"",
		"INV-2024-000123",
		"abc",
		"9",
		"999999999999999999999999999999999", // longer than 26 digits
		"Fälligkeit-Ø",                      // multibyte, no digits
	}

	for _, id := range ids {
		ref := FromInvoiceID(id)
		if len(ref) != Length {
			t.Errorf("FromInvoiceID(%q) length = %d, want %d", id, len(ref), Length)
		}
	}
}

func TestFromInvoiceID_SelfVerifying(t *testing.T) {
	ids := []string{
		"",
		"INV-2024-000123",
		"4477",
		"no digits here",
		"2024/08/123456789",
		strings.Repeat("7", 40),
	}

	for _, id := range ids {
		ref := FromInvoiceID(id)
		if !Verify(ref) {
			t.Errorf("FromInvoiceID(%q) = %q does not verify", id, ref)
		}
	}
}

func TestFromInvoiceID_KeepsRightmostDigits(t *testing.T) {
	ref := FromInvoiceID("INV-2024-000123")
	if !strings.HasSuffix(ref[:Length-1], "2024000123") {
		t.Errorf("expected reference body to end with invoice digits, got %q", ref)
	}
	if !strings.HasPrefix(ref, "0") {
		t.Errorf("expected zero padding on the left, got %q", ref)
	}
}

func TestModulo10CheckDigit_KnownValues(t *testing.T) {
	// Reference values computed with the standard ESR carry table.
	cases := []struct {
		digits string
		want   int
	}{
		{"", 0},
		{"0", 0},
		{"1", 1}, // carry table[1] = 9, (10-9)%10 = 1
		{"96111690000000660000000928", 4},
	}

	for _, tc := range cases {
		if got := Modulo10CheckDigit(tc.digits); got != tc.want {
			t.Errorf("Modulo10CheckDigit(%q) = %d, want %d", tc.digits, got, tc.want)
		}
	}
}

func TestVerify_Rejects(t *testing.T) {
	cases := []string{
		"",
		"123",                          // too short
		strings.Repeat("1", Length+1),  // too long
		strings.Repeat("a", Length),    // non-digits
		"961116900000006600000009285",  // wrong check digit (want 4)
	}
	for _, ref := range cases {
		if Verify(ref) {
			t.Errorf("Verify(%q) = true, want false", ref)
		}
	}

	ok := FromInvoiceID("INV-77")
	// Flip the check digit to an invalid value.
	bad := ok[:Length-1] + string(rune('0'+(int(ok[Length-1]-'0')+1)%10))
	if Verify(bad) {
		t.Errorf("Verify(%q) with corrupted check digit = true, want false", bad)
	}
}
