package customers

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone formats a valid number as E.164 using region for local
// numbers. Anything that does not parse as valid is only trimmed.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
