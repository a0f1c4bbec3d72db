package provider

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mstgnz/upipay/infra/validate"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidateOrderRequest rejects orders no vendor would accept: a non-positive
// amount, a currency other than INR, or malformed customer fields.
func ValidateOrderRequest(name Name, req OrderRequest) error {
	details := map[string]any{}

	if !req.Amount.IsPositive() {
		details["amount"] = "must be a positive number"
	} else if !wholePaise(req.Amount) {
		details["amount"] = "must not have more than 2 decimal places"
	}

	if req.Currency != "" && !strings.EqualFold(req.Currency, DefaultCurrency) {
		details["currency"] = fmt.Sprintf("only %s is supported", DefaultCurrency)
	}

	if req.Customer.Contact != "" && !validate.IsValidPhone(SanitizePhone(req.Customer.Contact)) {
		details["customer.contact"] = "must be a 10 digit Indian mobile number"
	}

	fieldErrs, err := validate.Struct(req)
	if err != nil {
		return NewValidationError(fmt.Sprintf("%s: invalid order request", name), map[string]any{"error": err.Error()})
	}
	for _, fe := range fieldErrs {
		details[fe.Field] = "failed " + fe.Tag
	}

	if len(details) > 0 {
		e := NewValidationError(fmt.Sprintf("%s: invalid order request", name), details)
		e.Provider = name
		return e
	}
	return nil
}

// ValidateRefundAmount rejects negative amounts and fractions of a paisa.
// Zero stays valid and means a full refund.
func ValidateRefundAmount(name Name, amount decimal.Decimal) error {
	var problem string
	switch {
	case amount.IsNegative():
		problem = "must not be negative"
	case !wholePaise(amount):
		problem = "must not have more than 2 decimal places"
	default:
		return nil
	}
	e := NewValidationError(fmt.Sprintf("%s: refund amount %s", name, problem), map[string]any{"amount": amount.String()})
	e.Provider = name
	return e
}

func wholePaise(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// CurrencyOrDefault returns the request currency, defaulting to INR
func (r OrderRequest) CurrencyOrDefault() string {
	if r.Currency == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(r.Currency)
}

// ToPaise converts rupees to the integer minor unit, rounding half away from zero
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromPaise converts an integer minor-unit amount to rupees
func FromPaise(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(hundred)
}

// FormatAmount renders an amount the Indian way, e.g. ₹1,23,456.78
func FormatAmount(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		grouped = strings.Join(groups, ",") + "," + tail
	}

	return sign + "₹" + grouped + "." + frac
}

// ParseAmount reads an amount that may carry a rupee sign and digit grouping
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("₹", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, NewValidationError(fmt.Sprintf("invalid amount %q", s), map[string]any{"amount": s})
	}
	return amount, nil
}

// SanitizePhone keeps digits only and drops a leading 91 country code from
// twelve digit numbers
func SanitizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		return digits[2:]
	}
	return digits
}
