package pairing

import (
	"crypto/rand"
	"fmt"
)

const (
	// CodeAlphabet has 32 symbols, without 0/O and 1/I.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 8

	// MaxCodeAttempts bounds redraws after a unique-index collision.
	MaxCodeAttempts = 5
)

// CodeGenerator draws a fresh invite code.
type CodeGenerator func() (string, error)

// GenerateCode draws CodeLength symbols uniformly from CodeAlphabet.
// 256 is a multiple of 32, so masking a random byte has no bias.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[b&31]
	}
	return string(buf), nil
}
