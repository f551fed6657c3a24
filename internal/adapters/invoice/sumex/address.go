package sumex

import (
	"context"

	"praxisdesk/ms_invoicing/internal/core/invoice"
)

// writeAddress maps a logical postal record onto the session's shared
// address handle: Initialize resets it, then exactly one of
// SetCompany/SetPerson, then SetPostal, then the optional online and phone
// sub-calls. Company presence takes precedence when both a company and a
// family name are supplied. The handle holds the result only until the next
// writeAddress call, so callers must consume it immediately.
func writeAddress(ctx context.Context, gw *Gateway, handle int, a invoice.Address) error {
	if ok, err := gw.InvokeStatus(ctx, ifaceAddress, "Initialize", handle, nil); err != nil {
		return err
	} else if !ok {
		return &AbortError{Step: "Initialize address"}
	}

	if a.IsCompany() {
		ok, err := gw.InvokeStatus(ctx, ifaceAddress, "SetCompany", handle, map[string]any{
			"aCompanyName": a.CompanyName,
		})
		if err != nil {
			return err
		}
		if !ok {
			return &AbortError{Step: "SetCompany"}
		}
	} else {
		ok, err := gw.InvokeStatus(ctx, ifaceAddress, "SetPerson", handle, map[string]any{
			"aSalutation": a.Salutation,
			"aTitle":      a.Title,
			"aGivenName":  a.GivenName,
			"aFamilyName": a.FamilyName,
		})
		if err != nil {
			return err
		}
		if !ok {
			return &AbortError{Step: "SetPerson"}
		}
	}

	ok, err := gw.InvokeStatus(ctx, ifaceAddress, "SetPostal", handle, map[string]any{
		"aStreet":      a.Street,
		"aPoBox":       a.POBox,
		"aZip":         a.ZIP,
		"aCity":        a.City,
		"aStateCode":   a.StateCode,
		"aCountryCode": a.CountryCode,
	})
	if err != nil {
		return err
	}
	if !ok {
		return &AbortError{Step: "SetPostal"}
	}

	if a.Email != "" || a.URL != "" {
		ok, err := gw.InvokeStatus(ctx, ifaceAddress, "SetOnline", handle, map[string]any{
			"aEmail": a.Email,
			"aUrl":   a.URL,
		})
		if err != nil {
			return err
		}
		if !ok {
			return &AbortError{Step: "SetOnline"}
		}
	}

	if a.Phone != "" {
		ok, err := gw.InvokeStatus(ctx, ifaceAddress, "AddPhone", handle, map[string]any{
			"aPhone": a.Phone,
		})
		if err != nil {
			return err
		}
		if !ok {
			return &AbortError{Step: "AddPhone"}
		}
	}

	return nil
}
