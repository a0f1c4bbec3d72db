package provider

import (
	"fmt"
	"regexp"
	"strings"
)

// ConfigField describes one credential a provider reads
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
	Example     string `json:"example"`
	Pattern     string `json:"pattern,omitempty"`   // regex the value must match
	MinLength   int    `json:"minLength,omitempty"` // minimum length for string fields
	MaxLength   int    `json:"maxLength,omitempty"` // maximum length for string fields
}

var requiredConfig = map[Name][]ConfigField{
	Razorpay: {
		{Key: "keyId", Required: true, Description: "Razorpay API key id", Example: "rzp_test_1DP5mmOlF5G5ag"},
		{Key: "keySecret", Required: true, Description: "Razorpay API key secret", Example: "thisissecret"},
		{Key: "webhookSecret", Description: "Secret configured on the Razorpay webhook; keySecret is used when absent"},
	},
	Cashfree: {
		{Key: "appId", Required: true, Description: "Cashfree client id", Example: "TEST1234abcd"},
		{Key: "secretKey", Required: true, Description: "Cashfree client secret", Example: "cfsk_ma_test_abc"},
	},
	PhonePe: {
		{Key: "merchantId", Required: true, Description: "PhonePe merchant id", Example: "PGTESTPAYUAT"},
		{Key: "saltKey", Required: true, Description: "PhonePe salt key", Example: "099eb0cd-02cf-4e2a-8aca-3e6c6aff0399"},
		{Key: "saltIndex", Required: true, Description: "PhonePe salt index", Example: "1", Pattern: `^[0-9]+$`},
	},
	Paytm: {
		{Key: "mid", Required: true, Description: "Paytm merchant id", Example: "DIY12386817555501617"},
		{Key: "merchantKey", Required: true, Description: "Paytm merchant key", Example: "bKMfNxPPf_QdZppa"},
		{Key: "website", Description: "Paytm website name", Example: "WEBSTAGING"},
	},
	GooglePay: {
		{Key: "merchantUPI", Required: true, Description: "Merchant VPA payments are sent to", Example: "merchant@okaxis", Pattern: `^[a-zA-Z0-9._-]+@[a-zA-Z0-9]+$`},
		{Key: "merchantName", Required: true, Description: "Payee name shown in the UPI app", Example: "Demo Store"},
		{Key: "merchantCode", Description: "Merchant category code", Example: "5411", Pattern: `^[0-9]{4}$`},
	},
	BharatPe: {
		{Key: "apiKey", Required: true, Description: "BharatPe API key", Example: "bp_live_abc"},
		{Key: "webhookSecret", Description: "BharatPe webhook secret; apiKey is used when absent"},
	},
	PayU: {
		{Key: "merchantKey", Required: true, Description: "PayU merchant key", Example: "gtKFFx"},
		{Key: "merchantSalt", Required: true, Description: "PayU merchant salt", Example: "eCwWELxi"},
	},
}

// RequiredConfig returns the credential fields a provider reads
func RequiredConfig(name Name) []ConfigField {
	return requiredConfig[name]
}

// ValidateConfigFields checks credentials against field definitions. Every
// missing required key is reported together in a single ValidationError;
// malformed values are reported once presence is satisfied.
func ValidateConfigFields(name Name, credentials Credentials, fields []ConfigField) error {
	var missing []string
	for _, field := range fields {
		if field.Required && credentials.Get(field.Key) == "" {
			missing = append(missing, field.Key)
		}
	}
	if len(missing) > 0 {
		return NewMissingFieldsError(name, missing)
	}

	var problems []string
	for _, field := range fields {
		value := credentials.Get(field.Key)
		if value == "" {
			continue
		}
		if err := validateFieldPattern(field, value); err != nil {
			problems = append(problems, err.Error())
		}
		if err := validateFieldLength(field, value); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return NewValidationError(
			fmt.Sprintf("%s: invalid credentials: %s", name, strings.Join(problems, "; ")),
			map[string]any{"provider": string(name), "problems": problems},
		)
	}

	return nil
}

// validateFieldPattern validates field against regex pattern
func validateFieldPattern(field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return fmt.Errorf("invalid pattern for field '%s': %v", field.Key, err)
	}

	if !matched {
		return fmt.Errorf("field '%s' does not match required pattern", field.Key)
	}

	return nil
}

// validateFieldLength validates field length constraints
func validateFieldLength(field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return fmt.Errorf("field '%s' must be at least %d characters", field.Key, field.MinLength)
	}

	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return fmt.Errorf("field '%s' must not exceed %d characters", field.Key, field.MaxLength)
	}

	return nil
}
