// Package utils holds logging setup shared by every package
package utils

import (
	"fmt"
	"strings"
	"unicode"

	logging "github.com/ipfs/go-log/v2"
)

// MaxLogStringLength defines the maximum number of runes kept from user-provided strings in logs
const MaxLogStringLength = 128

// ConfigureLogging applies the given level (debug, info, warn, error) to every named logger
func ConfigureLogging(level string) error {
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logging.SetAllLoggers(lvl)
	return nil
}

// SanitizeLogString makes a client-supplied string (room id, username, upload title) safe to log.
// Line breaks and other control characters become spaces, non-printable runes are dropped
// and the result is truncated to MaxLogStringLength runes.
func SanitizeLogString(input string) string {
	if input == "" {
		return ""
	}

	input = strings.ReplaceAll(input, "\r\n", "\n")

	var b strings.Builder
	count := 0
	for _, r := range input {
		if count == MaxLogStringLength {
			b.WriteString("...(truncated)")
			break
		}
		switch {
		case unicode.IsControl(r):
			b.WriteRune(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		default:
			continue
		}
		count++
	}
	return b.String()
}
