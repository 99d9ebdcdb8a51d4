// Package otp issues six digit one-time codes, stores them in the expiring cache,
// and consumes them exactly once.
package otp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/pkg/mail"
)

// Purpose scopes a code to one flow.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email-verification"
	PurposeForgotPassword    Purpose = "forgot-password"
)

// JobSendOTP is the queue job type that delivers a code by email.
const JobSendOTP = "send-otp"

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposeForgotPassword
}

// ParsePurpose validates a purpose received from a client.
func ParsePurpose(value string) (Purpose, bool) {
	p := Purpose(strings.TrimSpace(value))
	return p, p.Valid()
}

// Key returns the cache key for an email and purpose: otp:<email>:<purpose>.
func Key(email string, purpose Purpose) string {
	return fmt.Sprintf("otp:%s:%s", models.NormalizeEmail(email), purpose)
}

// Record is the JSON value stored under Key. ExpiresAt is in unix milliseconds.
type Record struct {
	OTP       string `json:"otp"`
	ExpiresAt int64  `json:"expiresAt"`
}

// DeliveryPayload is the body of a send-otp job.
type DeliveryPayload struct {
	Email    string        `json:"email"`
	OTP      string        `json:"otp"`
	Template mail.Template `json:"template"`
}

// Code is a one-time code received from a client. It decodes from a JSON number
// or a JSON string.
type Code string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("otp: code must be a number or string")
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("otp: code must be an integer")
	}
	*c = Code(n.String())
	return nil
}

// String returns the code as text.
func (c Code) String() string {
	return string(c)
}
