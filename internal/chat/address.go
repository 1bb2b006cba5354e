package chat

import (
	"regexp"
	"strings"
)

const (
	AddressSigil = "@"
	UserCodeLen  = 10
)

var addressRe = regexp.MustCompile(`^@(\d{10})(?:\s+([\s\S]*))?$`)

// Address is a conversation target written into the message input, e.g.
// "@1234567890 hello": Code is the user code, Text the optional first message.
type Address struct {
	Code string
	Text string
}

// IsAddress reports whether input is meant as an address rather than plain text.
func IsAddress(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), AddressSigil)
}

// ParseAddress extracts the user code and trailing text from input.
func ParseAddress(input string) (Address, error) {
	m := addressRe.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Address{}, ErrInvalidAddress
	}
	return Address{Code: m[1], Text: strings.TrimSpace(m[2])}, nil
}

// ValidUserCode reports whether code has the user code shape.
func ValidUserCode(code string) bool {
	if len(code) != UserCodeLen {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
