// Package codec converts between human-typed hex strings, raw byte frames,
// and the CRC16/Modbus checksum appended to outbound frames.
package codec

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/HaxIOX/Portax/errors"
)

// ParseHex decodes a human-typed hex string into bytes. Every character
// outside 0-9a-fA-F is stripped first, so "DE AD", "de:ad" and "DEAD" all
// decode the same way. The remaining digits must be non-empty and of even
// length.
func ParseHex(s string) ([]byte, error) {
	var digits strings.Builder
	for _, r := range s {
		if isHexDigit(r) {
			digits.WriteRune(r)
		}
	}

	cleaned := digits.String()
	if cleaned == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidHex, "Codec", "ParseHex",
			"no hex digits in input")
	}
	if len(cleaned)%2 != 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidHex, "Codec", "ParseHex",
			fmt.Sprintf("odd number of hex digits (%d)", len(cleaned)))
	}

	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "ParseHex", "hex decoding")
	}
	return decoded, nil
}

// FormatBytes renders bytes as two uppercase hex digits each,
// space-separated, in input order. It is the left inverse of ParseHex up
// to whitespace and case.
func FormatBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return fmt.Sprintf("% X", b)
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}
