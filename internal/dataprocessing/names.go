package dataprocessing

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// Sentinel codes for counterparties that are not regular broker branches.
const (
	CodeETF     = "ETF"
	CodeStock   = "STOCK"
	CodeUnknown = "UNKNOWN"
)

// etfKeywords mark fund-family and ETF counterparty names. Issuer names
// first, generic fund descriptors after.
var etfKeywords = []string{
	"元大",
	"富邦VIX",
	"國泰永續",
	"復華",
	"永豐台灣",
	"ETF",
	"基金",
	"台灣50",
	"高股息",
	"存股",
	"正2",
	"反1",
}

var (
	brokerPattern      = regexp.MustCompile(`^([0-9A-Z]{2,})(.+)$`)
	// The suffix must contain a letter, otherwise a bare 5-6 digit run
	// would be truncated to its first four digits here instead of being
	// kept whole by the leading-run rule below.
	stockSuffixPattern = regexp.MustCompile(`^(\d{4})[A-Za-z][0-9A-Za-z]*$`)
	leadingRunPattern  = regexp.MustCompile(`^(\d{4,6})`)
)

// ResolveCounterparty maps a free-text counterparty cell onto a
// (code, name) pair via an ordered heuristic cascade. The order is
// load-bearing: later rules are deliberately broader catch-alls, so the
// rules must not be reordered.
func ResolveCounterparty(raw string) (code, name string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return CodeUnknown, ""
	}

	// Rule 1: standard broker form, a code run followed by a CJK name.
	if m := brokerPattern.FindStringSubmatch(text); m != nil && containsHan(m[2]) {
		return m[1], m[2]
	}

	// Rule 2: fund family / ETF keywords.
	for _, kw := range etfKeywords {
		if strings.Contains(text, kw) {
			return CodeETF, text
		}
	}

	// Rule 3: four-digit stock code with an alphanumeric suffix (warrants).
	if m := stockSuffixPattern.FindStringSubmatch(text); m != nil {
		return m[1], text
	}

	// Rule 4: plain CJK text is a stock name.
	if isAllHan(text) {
		return CodeStock, text
	}

	// Rule 5: leading 4-6 digit run with or without trailing text.
	if m := leadingRunPattern.FindStringSubmatch(text); m != nil {
		return m[1], text
	}

	slog.Debug("unresolved counterparty name", slog.String("name", text))
	return CodeUnknown, text
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func isAllHan(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
	}
	return true
}
