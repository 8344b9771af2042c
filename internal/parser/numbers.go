package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// parseIntLiteral parses a lexed integer lexeme: decimal, or 0x/0o/0b with an
// optional leading '-'.
func parseIntLiteral(lexeme string) (int64, error) {
	neg := false
	s := lexeme
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var n int64
	var err error
	switch {
	case strings.HasPrefix(s, "0x"):
		n, err = strconv.ParseInt(s[2:], 16, 64)
	case strings.HasPrefix(s, "0o"):
		n, err = strconv.ParseInt(s[2:], 8, 64)
	case strings.HasPrefix(s, "0b"):
		n, err = strconv.ParseInt(s[2:], 2, 64)
	default:
		n, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q: %w", lexeme, err)
	}
	if neg {
		n = -n
	}
	return n, nil
}
