package models

import "strings"

// User is an account that can authenticate with a password, a Google identity, or both.
type User struct {
	BaseModel

	Fullname string `gorm:"not null" json:"fullname"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	// Password holds the bcrypt hash and is never serialised.
	Password string `gorm:"not null" json:"-"`

	GoogleID        *string `gorm:"uniqueIndex" json:"googleId,omitempty"`
	IsEmailVerified bool    `gorm:"default:false" json:"isEmailVerified"`

	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`
	Media    []Media   `gorm:"foreignKey:UserID" json:"-"`
}

// NormalizeEmail lower-cases and trims an address so lookups and OTP keys agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasGoogleID reports whether the account is linked to a Google identity.
func (u *User) HasGoogleID() bool {
	return u != nil && u.GoogleID != nil && *u.GoogleID != ""
}
