package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the minimum number of characters a password needs.
const DefaultMinLength = 8

var (
	// ErrPolicy is the parent of every policy rejection.
	ErrPolicy = errors.New("password policy violation")
	// ErrEmpty rejects empty or whitespace-only input.
	ErrEmpty = fmt.Errorf("%w: password cannot be empty", ErrPolicy)
	// ErrTooShort rejects input below the configured minimum.
	ErrTooShort = fmt.Errorf("%w: password too short", ErrPolicy)
	// ErrTooLong rejects input above the hasher's byte bound.
	ErrTooLong = fmt.Errorf("%w: password too long", ErrPolicy)
)

// Policy validates plaintext before it reaches the hasher.
type Policy struct {
	// MinLength counts characters, not bytes. Zero means DefaultMinLength.
	MinLength int
}

// Check returns nil when plaintext is acceptable.
func (p Policy) Check(plaintext string) error {
	if strings.TrimSpace(plaintext) == "" {
		return ErrEmpty
	}

	min := p.MinLength
	if min <= 0 {
		min = DefaultMinLength
	}
	if utf8.RuneCountInString(plaintext) < min {
		return fmt.Errorf("%w: minimum is %d characters", ErrTooShort, min)
	}

	return nil
}
