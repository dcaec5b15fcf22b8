package model

import (
	"unicode/utf8"

	"userdesk/internal/common"
)

const (
	FlagOff = "0"
	FlagOn  = "1"

	// MaxUsernameLen and MaxPasswordLen match the varchar(45) columns.
	MaxUsernameLen = 45
	MaxPasswordLen = 45
)

// User is a row of the accounts table. Password is stored and returned in
// plaintext; rights and enabled are recorded but never enforced.
type User struct {
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"password"`
	Rights   string `db:"rights" json:"rights"`
	Enabled  string `db:"enabled" json:"enabled"`
}

// ValidFlag reports whether v is one of the two recognized flag values.
func ValidFlag(v string) bool {
	return v == FlagOff || v == FlagOn
}

// ValidateFlag returns an ErrInvalidFlag carrying the client-facing detail
// when value is not "0" or "1". name is the query parameter name.
func ValidateFlag(name, value string) error {
	if ValidFlag(value) {
		return nil
	}
	return common.WithDetail(common.ErrInvalidFlag, "Incorrect `"+name+"` parameter value")
}

// Validate checks every field against the column constraints.
func (u User) Validate() error {
	if u.Username == "" {
		return common.WithDetail(common.ErrValidation, "username is required")
	}
	if !utf8.ValidString(u.Username) {
		return common.WithDetail(common.ErrValidation, "username must be valid UTF-8")
	}
	if len([]rune(u.Username)) > MaxUsernameLen {
		return common.WithDetail(common.ErrValidation, "username must be at most 45 characters")
	}
	if u.Password == "" {
		return common.WithDetail(common.ErrValidation, "password is required")
	}
	if !utf8.ValidString(u.Password) {
		return common.WithDetail(common.ErrValidation, "password must be valid UTF-8")
	}
	if len([]rune(u.Password)) > MaxPasswordLen {
		return common.WithDetail(common.ErrValidation, "password must be at most 45 characters")
	}
	if err := ValidateFlag("rights", u.Rights); err != nil {
		return err
	}
	return ValidateFlag("enabled", u.Enabled)
}
