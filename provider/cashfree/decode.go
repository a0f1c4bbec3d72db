package cashfree

import (
	"encoding/json"

	"github.com/mstgnz/upipay/provider"
)

// the payments endpoint answers with a bare JSON array
func decodeList(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return provider.NewProviderError(provider.Cashfree, "unreadable response", err)
	}
	return nil
}

func rawList(data []byte) []any {
	var out []any
	_ = json.Unmarshal(data, &out)
	return out
}

// flexID accepts ids Cashfree sends either as numbers or strings
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = flexID(str)
		return nil
	}
	*f = flexID(s)
	return nil
}
