package domain

import "strings"

// Contact is a counterpart phone number scoped to a tenant.
// (TenantID, Number) is unique; contacts are created lazily on the first
// inbound message and never deleted by the bridge.
type Contact struct {
	ID            int64
	Name          string
	Number        string // normalized, no leading "+"
	ProfilePicURL string
	TenantID      int64
	ChannelID     int64
}

// NormalizePhone applies the provider's sender-identity rule: when the raw
// number carries no international prefix and does not already start with the
// sender's country code, the country code and dial code are prefixed.
// The result is stable, so repeated resolution of the same sender yields the
// same stored number.
func NormalizePhone(phone, countryCode, dialCode string) string {
	if strings.HasPrefix(phone, "+") {
		return strings.TrimPrefix(phone, "+")
	}
	if countryCode != "" && !strings.HasPrefix(phone, countryCode) {
		return countryCode + dialCode + phone
	}
	return phone
}
