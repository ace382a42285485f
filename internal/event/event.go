// Package event defines the payload the decision engine evaluates.
package event

import (
	"strings"
	"time"

	"github.com/mbd888/fraudgate/internal/validation"
)

// Sentinel identifiers used when an entity identifier is absent. All
// unidentified traffic for a dimension shares one synthetic identity.
const (
	UnknownUser     = "unknown_user"
	UnknownDevice   = "unknown_device"
	UnknownIP       = "unknown_ip"
	UnknownCard     = "unknown_card"
	UnknownMerchant = "unknown_merchant"
)

// MaxClockSkew bounds how far an event timestamp may run ahead of the
// receiving clock.
const MaxClockSkew = 5 * time.Minute

// Event is one inbound event (marketplace message, payment attempt, ...)
// together with the externally computed risk score.
type Event struct {
	MessageText       string  `json:"message_text"`
	Country           string  `json:"country"`
	UserID            string  `json:"user_id,omitempty"`
	DeviceID          string  `json:"device_id,omitempty"`
	IPID              string  `json:"ip_id,omitempty"`
	CardID            string  `json:"card_id,omitempty"`
	MerchantID        string  `json:"merchant_id,omitempty"`
	PaymentAttempts   int     `json:"payment_attempts"`
	AccountAgeDays    int     `json:"account_age_days"`
	DeviceReuseCount  int     `json:"device_reuse_count"`
	ChargebackHistory int     `json:"chargeback_history"`
	EventTS           float64 `json:"event_ts,omitempty"` // unix seconds
	RiskScore         float64 `json:"risk_score"`
}

// Normalize returns a copy with sentinel identifiers filled in and the
// country code upper-cased. The message text is left as received.
func (e Event) Normalize() Event {
	e.UserID = orDefault(e.UserID, UnknownUser)
	e.DeviceID = orDefault(e.DeviceID, UnknownDevice)
	e.IPID = orDefault(e.IPID, UnknownIP)
	e.CardID = orDefault(e.CardID, UnknownCard)
	e.MerchantID = orDefault(e.MerchantID, UnknownMerchant)
	e.Country = strings.ToUpper(strings.TrimSpace(e.Country))
	return e
}

// Validate performs the caller-side checks the engine relies on. A non-zero
// event_ts may not lead now by more than MaxClockSkew. It returns
// validation.ValidationErrors, or nil when the payload is well formed.
func (e *Event) Validate(now time.Time) error {
	latest := float64(now.Add(MaxClockSkew).UnixNano()) / 1e9
	errs := validation.Validate(
		validation.AtMost("event_ts", e.EventTS, latest),
		validation.Required("message_text", e.MessageText),
		validation.MaxLength("message_text", e.MessageText, validation.MaxStringLength),
		validation.ExactLength("country", strings.TrimSpace(e.Country), 2),
		validation.NonNegative("payment_attempts", e.PaymentAttempts),
		validation.NonNegative("account_age_days", e.AccountAgeDays),
		validation.NonNegative("device_reuse_count", e.DeviceReuseCount),
		validation.OneOf("chargeback_history", e.ChargebackHistory, 0, 1),
		validation.InRange("risk_score", e.RiskScore, 0, 1),
		validation.MaxLength("user_id", e.UserID, 256),
		validation.MaxLength("device_id", e.DeviceID, 256),
		validation.MaxLength("ip_id", e.IPID, 256),
	)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
