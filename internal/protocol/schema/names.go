package schema

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const corePrefix = "wl_"

// CoreProtocol is the document name whose interfaces carry corePrefix.
const CoreProtocol = "wayland"

// normalizeInterfaceName strips the core prefix, for the core document only.
func normalizeInterfaceName(protocol, name string) string {
	if protocol != CoreProtocol {
		return name
	}
	if trimmed := strings.TrimPrefix(name, corePrefix); trimmed != "" {
		return trimmed
	}
	return name
}

// TypeName derives an exported identifier from a schema symbol:
// "set_buffer_scale" -> "SetBufferScale", "90" -> "_90".
func TypeName(symbol string) string {
	parts := strings.FieldsFunc(symbol, isWordSeparator)
	var b strings.Builder
	b.Grow(len(symbol) + 1)
	for _, part := range parts {
		r, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[size:])
	}
	name := b.String()
	if !isIdentifier(name) {
		return "_" + name
	}
	return name
}

func isWordSeparator(r rune) bool {
	switch r {
	case '_', '-', '.', ' ':
		return true
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
