// Package reasons derives static, content-based reason tags from an event.
//
// Extraction is a pure function of the payload and the policy's reason
// settings. Tags annotate a decision; they never change its category.
package reasons

import (
	"sort"
	"strings"

	"github.com/mbd888/fraudgate/internal/event"
	"github.com/mbd888/fraudgate/internal/policy"
)

// Reason tags.
const (
	SuspiciousMessagePattern = "suspicious_message_pattern"
	HighPaymentAttempts      = "high_payment_attempts"
	NewAccount               = "new_account"
	HighDeviceReuse          = "high_device_reuse"
	PriorChargeback          = "prior_chargeback"
	HighRiskCountry          = "high_risk_country"
)

const (
	highPaymentAttempts = 4
	newAccountDays      = 7
	highDeviceReuse     = 4
)

// riskTokens are matched as case-insensitive substrings of the message text.
var riskTokens = []string{"otp", "urgent", "click", "transfer", "outside platform"}

// HasRiskToken reports whether text contains any lexicon token.
func HasRiskToken(text string) bool {
	lower := strings.ToLower(text)
	for _, tok := range riskTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Extract returns the sorted, de-duplicated reason tags for ev. A nil cfg
// uses policy.DefaultHighRiskCountries.
func Extract(ev *event.Event, cfg *policy.Config) []string {
	tags := make([]string, 0, 6)

	if HasRiskToken(ev.MessageText) {
		tags = append(tags, SuspiciousMessagePattern)
	}
	if ev.PaymentAttempts >= highPaymentAttempts {
		tags = append(tags, HighPaymentAttempts)
	}
	if ev.AccountAgeDays < newAccountDays {
		tags = append(tags, NewAccount)
	}
	if ev.DeviceReuseCount >= highDeviceReuse {
		tags = append(tags, HighDeviceReuse)
	}
	if ev.ChargebackHistory == 1 {
		tags = append(tags, PriorChargeback)
	}
	if isHighRiskCountry(cfg, ev.Country) {
		tags = append(tags, HighRiskCountry)
	}

	sort.Strings(tags)
	return tags
}

func isHighRiskCountry(cfg *policy.Config, country string) bool {
	country = strings.TrimSpace(country)
	if cfg != nil {
		return cfg.IsHighRiskCountry(country)
	}
	for _, c := range policy.DefaultHighRiskCountries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}
