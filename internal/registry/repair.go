package registry

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// canonicalParamB lists the known-correct url_param_b values that carry
// leading zeros. When the registry has passed through a tool that coerced
// these to numbers, the stripped form is matched back to its canonical
// spelling. The list only grows; entries are never edited.
var canonicalParamB = []string{
	"0039004100390050",
	"0030003900310031",
	"0038003800460031",
	"0030003100300033",
	"0039006200390039",
}

// repairCoercedCode restores a value that lost leading zeros to numeric
// coercion. Returns the corrected value and whether a correction applied.
func repairCoercedCode(value string) (string, bool) {
	if value == "" || value[0] == '0' {
		return value, false
	}
	if !isASCIIDigits(value) {
		return value, false
	}
	for _, canonical := range canonicalParamB {
		if strings.TrimLeft(canonical, "0") == value {
			return canonical, true
		}
	}
	return value, false
}

func isASCIIDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// HasMojibake reports whether a display name shows the classic
// double-encoding symptom: Latin-1 high-bit characters where CJK text is
// expected. Legitimately repaired names contain Han runes; corrupted ones
// contain runes from the U+0080..U+00FF block instead.
func HasMojibake(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	suspicious := false
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return false
		}
		if r >= 0x80 && r <= 0xFF {
			suspicious = true
		}
	}
	return suspicious
}

// RepairMojibake attempts the one-shot re-decode: encode the corrupted text
// back to Latin-1 bytes and interpret those bytes as UTF-8. If the result
// still triggers the detector, the repair is abandoned and the caller keeps
// the original text rather than guessing further.
func RepairMojibake(s string) (string, bool) {
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s, false
	}
	if !utf8.ValidString(raw) {
		return s, false
	}
	if HasMojibake(raw) {
		return s, false
	}
	return raw, true
}
