// Package barcode builds and checks the EAN-13 codes printed on unit labels.
package barcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Length     = 13
	bodyLength = Length - 1

	// DefaultPrefix sits in the 200-299 range reserved for in-store numbering.
	DefaultPrefix = "200"
)

var (
	ErrLength   = errors.New("barcode must have 13 digits")
	ErrDigits   = errors.New("barcode must contain digits only")
	ErrChecksum = errors.New("barcode check digit mismatch")
)

// Checksum returns the EAN-13 check digit for a 12 digit body.
func Checksum(body string) (int, error) {
	if len(body) != bodyLength {
		return 0, fmt.Errorf("checksum body must have %d digits, got %d", bodyLength, len(body))
	}
	sum := 0
	for i, r := range body {
		if r < '0' || r > '9' {
			return 0, ErrDigits
		}
		digit := int(r - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	return (10 - sum%10) % 10, nil
}

// Generate builds a full code from a numeric prefix and a sequence number.
func Generate(prefix string, seq int64) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if len(prefix) < 2 || len(prefix) > 7 {
		return "", fmt.Errorf("barcode prefix must have 2-7 digits, got %q", prefix)
	}
	if !allDigits(prefix) {
		return "", fmt.Errorf("barcode prefix %q: %w", prefix, ErrDigits)
	}
	if seq < 0 {
		return "", fmt.Errorf("barcode sequence cannot be negative")
	}

	width := bodyLength - len(prefix)
	number := strconv.FormatInt(seq, 10)
	if len(number) > width {
		return "", fmt.Errorf("barcode sequence %d does not fit in %d digits", seq, width)
	}
	body := prefix + strings.Repeat("0", width-len(number)) + number

	check, err := Checksum(body)
	if err != nil {
		return "", err
	}
	return body + strconv.Itoa(check), nil
}

func Validate(code string) error {
	code = strings.TrimSpace(code)
	if len(code) != Length {
		return ErrLength
	}
	if !allDigits(code) {
		return ErrDigits
	}
	check, err := Checksum(code[:bodyLength])
	if err != nil {
		return err
	}
	if int(code[bodyLength]-'0') != check {
		return ErrChecksum
	}
	return nil
}

func allDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
