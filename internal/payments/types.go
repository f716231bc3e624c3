package payments

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the state of a payment as reported by the backend.
type Outcome string

const (
	Pending   Outcome = "PENDING"
	Completed Outcome = "COMPLETED"
	Failed    Outcome = "FAILED"
)

// Terminal reports whether no further polling should happen after o.
func (o Outcome) Terminal() bool {
	return o == Completed || o == Failed
}

// Kind selects which backend verify endpoint an intent is checked against.
type Kind string

const (
	KindRent         Kind = "rent"
	KindSubscription Kind = "subscription"
)

// Intent is the client-side record of an initiated payment awaiting
// confirmation from the gateway. It is immutable once created.
type Intent struct {
	OrderID       string    `json:"order_id"`
	Kind          Kind      `json:"kind"`
	Amount        int64     `json:"amount"` // minor units (paise)
	Currency      string    `json:"currency"`
	PayerID       string    `json:"payer_id"`
	PayerName     string    `json:"payer_name,omitempty"`
	PayerEmail    string    `json:"payer_email,omitempty"`
	PushToken     string    `json:"push_token,omitempty"`
	PlanOrUnitRef string    `json:"plan_or_unit_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

type VerifyResponse struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
}

// Classify maps a verify response onto an Outcome. Anything the backend does
// not explicitly mark as terminal is treated as still pending.
func Classify(resp VerifyResponse) Outcome {
	if !resp.Success {
		return Pending
	}
	switch strings.ToUpper(strings.TrimSpace(resp.State)) {
	case string(Completed):
		return Completed
	case string(Failed):
		return Failed
	default:
		return Pending
	}
}

// FormatAmount renders an amount in minor units as a decimal string.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
