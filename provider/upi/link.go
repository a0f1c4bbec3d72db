// Package upi builds UPI deep links (upi://pay?...) and their QR codes.
package upi

import (
	"net/url"
	"strings"

	"github.com/mstgnz/upipay/infra/validate"
	"github.com/mstgnz/upipay/provider"
	"github.com/shopspring/decimal"
)

const scheme = "upi://pay"

// LinkParams are the fields of a UPI payment link
type LinkParams struct {
	PayeeAddress string          `json:"pa"`
	PayeeName    string          `json:"pn"`
	Amount       decimal.Decimal `json:"am"`
	Currency     string          `json:"cu,omitempty"`
	Note         string          `json:"tn,omitempty"`
	Reference    string          `json:"tr,omitempty"`
	MerchantCode string          `json:"mc,omitempty"`
	CallbackURL  string          `json:"url,omitempty"`
}

// IsValidVPA reports whether vpa matches localpart@handle
func IsValidVPA(vpa string) bool {
	return validate.IsValidVPA(vpa)
}

// Build composes the deep link. Parameters appear in the order pa, pn, am,
// cu, tn, tr, mc, url; optional ones only when non-empty.
func Build(p LinkParams) (string, error) {
	details := map[string]any{}
	if !IsValidVPA(p.PayeeAddress) {
		details["pa"] = "must be a valid UPI address (name@bank)"
	}
	if strings.TrimSpace(p.PayeeName) == "" {
		details["pn"] = "is required"
	}
	if !p.Amount.IsPositive() {
		details["am"] = "must be a positive number"
	}
	if len(details) > 0 {
		return "", provider.NewValidationError("invalid UPI link parameters", details)
	}

	currency := p.Currency
	if currency == "" {
		currency = provider.DefaultCurrency
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteByte('?')
	writeParam(&b, "pa", p.PayeeAddress, true)
	writeParam(&b, "pn", p.PayeeName, false)
	writeParam(&b, "am", p.Amount.String(), false)
	writeParam(&b, "cu", currency, false)
	writeParam(&b, "tn", p.Note, false)
	writeParam(&b, "tr", p.Reference, false)
	writeParam(&b, "mc", p.MerchantCode, false)
	writeParam(&b, "url", p.CallbackURL, false)
	return b.String(), nil
}

func writeParam(b *strings.Builder, key, value string, first bool) {
	if value == "" {
		return
	}
	if !first {
		b.WriteByte('&')
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(escape(value))
}

// escape percent-encodes a query value, spaces as %20
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
