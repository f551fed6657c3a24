// Package reference generates and verifies structured ESR/QR payment
// references for Swiss medical invoices. A reference is a fixed-width
// 27-digit string whose last digit is a recursive Modulo-10 check digit,
// so any reference produced here is self-verifying.
package reference

import (
	"fmt"
	"strings"
)

// Length is the fixed width of an ESR/QR payment reference.
const Length = 27

// modulo10Table is the carry transition table of the recursive Modulo-10
// algorithm used by Swiss payment slips.
var modulo10Table = [10]int{0, 9, 4, 6, 8, 2, 7, 1, 3, 5}

// Modulo10CheckDigit computes the recursive Modulo-10 check digit over a
// string of decimal digits. Non-digit runes must have been removed by the
// caller.
func Modulo10CheckDigit(digits string) int {
	carry := 0
	for _, r := range digits {
		carry = modulo10Table[(carry+int(r-'0'))%10]
	}
	return (10 - carry) % 10
}

// FromInvoiceID derives a 27-digit payment reference from an arbitrary
// invoice identifier. Digits of the identifier are kept as-is; if the
// identifier carries no digits at all, a numeric surrogate is built from the
// character codes. The result is left-padded with zeros to 26 digits and
// terminated with the Modulo-10 check digit. It never fails.
func FromInvoiceID(invoiceID string) string {
	digits := extractDigits(invoiceID)
	if digits == "" {
		digits = numericSurrogate(invoiceID)
	}

	// Keep the rightmost 26 digits, pad on the left when shorter.
	if len(digits) > Length-1 {
		digits = digits[len(digits)-(Length-1):]
	} else {
		digits = strings.Repeat("0", Length-1-len(digits)) + digits
	}

	return digits + string(rune('0'+Modulo10CheckDigit(digits)))
}

// Verify reports whether ref is a well-formed 27-digit reference whose
// trailing digit matches the Modulo-10 check digit of the first 26.
func Verify(ref string) bool {
	if len(ref) != Length {
		return false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return false
		}
	}
	return Modulo10CheckDigit(ref[:Length-1]) == int(ref[Length-1]-'0')
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// numericSurrogate concatenates the numeric code of every character,
// zero-padded to three digits, so purely alphabetic identifiers still map
// to a deterministic digit run.
func numericSurrogate(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteString(fmt.Sprintf("%03d", r))
	}
	return b.String()
}
