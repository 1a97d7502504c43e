package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minVendorLen       = 2
	maxVendorLen       = 99
	headerLines        = 6
	minHeaderVendorLen = 3
	maxHeaderVendorLen = 60
	maxHeaderDigitFrac = 0.3
)

var (
	// phrases that introduce the seller; the colon is optional
	reVendorPhrase = regexp.MustCompile(`(?i)\b(?:invoice\s+from|bill\s+from|receipt\s+from|sold\s+by|purchased\s+from|billed\s+by|issued\s+by)\b\s*[:\-]?\s*([^\n]+)`)
	// single-word labels need a colon to count
	reVendorLabel = regexp.MustCompile(`(?i)\b(?:vendor|biller|store|merchant|seller|company|shop)\s*:\s*([^\n]+)`)
	// the vendor name ends where contact details or a corporate suffix start;
	// a suffix must stand alone, so "Co-op" survives
	reVendorJunk = regexp.MustCompile(`(?i)[,;|]|\b(?:phone|tel|ph|email|e-mail|website|fax|gstin|vat\s+no)\b|www\.|https?://|\b(?:inc|llc|ltd|pvt|plc|gmbh|corp|co)(?:[.,;|\s]|$)`)
	// header lines that are addresses, totals or boilerplate rather than names
	reHeaderReject = regexp.MustCompile(`(?i)\b(?:date|time|total|amount|subtotal|invoice|receipt|bill\s+to|tax|gst|vat|cashier|table|order|thank|welcome|street|road|avenue|ave|blvd|lane|suite|floor|phone|tel|www|http)\b|\b(?:st|rd)\.|\bp\.?\s?o\.?\s+box\b|@`)
)

// NormalizeVendor trims, collapses inner whitespace and title-cases a name.
// It is idempotent.
func NormalizeVendor(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

func cleanVendor(raw string) string {
	if loc := reVendorJunk.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	return strings.Trim(strings.TrimSpace(raw), " .:-–—*#")
}

// namedVendorRule reads the text after an explicit seller label.
type namedVendorRule struct{}

func (namedVendorRule) Name() string { return "named" }

func (namedVendorRule) FindVendor(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{reVendorPhrase, reVendorLabel} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := cleanVendor(m[1])
			if n := len([]rune(v)); n >= minVendorLen && n <= maxVendorLen && hasLetters(v, 2) {
				return v, true
			}
		}
	}
	return "", false
}

// headerVendorRule picks the first name-like line near the top of the page,
// where receipts print the shop name.
type headerVendorRule struct{}

func (headerVendorRule) Name() string { return "header" }

func (headerVendorRule) FindVendor(text string) (string, bool) {
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if seen++; seen > headerLines {
			break
		}
		if looksLikeVendorLine(line) {
			return strings.Trim(line, " .:-*#"), true
		}
	}
	return "", false
}

func looksLikeVendorLine(line string) bool {
	runes := []rune(line)
	if len(runes) < minHeaderVendorLen || len(runes) > maxHeaderVendorLen {
		return false
	}
	if reHeaderReject.MatchString(line) || !hasLetters(line, 2) {
		return false
	}
	var digits int
	for _, r := range runes {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if float64(digits)/float64(len(runes)) > maxHeaderDigitFrac {
		return false
	}
	return nameLike(line)
}

// nameLike accepts lines that start with a capital, are all caps, or have
// several words.
func nameLike(line string) bool {
	first := []rune(line)[0]
	if unicode.IsUpper(first) {
		return true
	}
	if strings.ToUpper(line) == line {
		return true
	}
	return len(strings.Fields(line)) > 1
}

func hasLetters(s string, min int) bool {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if n++; n >= min {
				return true
			}
		}
	}
	return false
}

// DefaultVendorRules returns the vendor rules in priority order.
func DefaultVendorRules() []VendorRule {
	return []VendorRule{namedVendorRule{}, headerVendorRule{}}
}
