package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// parseValue reads an entry value: decimal or "0x"-prefixed hex.
func parseValue(literal string) (uint32, error) {
	s := strings.TrimSpace(literal)
	base := 10
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		s, base = rest, 16
	} else if rest, ok := strings.CutPrefix(s, "0X"); ok {
		s, base = rest, 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, literal)
	}
	return uint32(v), nil
}

// parseSince reads a since/version attribute. Absent means def; a present
// value must be a positive decimal.
func parseSince(attr, literal string, def uint32) (uint32, error) {
	s := strings.TrimSpace(literal)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, attr, literal)
	}
	return uint32(v), nil
}

// parseDeprecated reads deprecated-since; absent is 0.
func parseDeprecated(literal string) (uint32, error) {
	if strings.TrimSpace(literal) == "" {
		return 0, nil
	}
	return parseSince("deprecated-since", literal, 0)
}
