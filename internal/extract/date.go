package extract

import (
	"regexp"
	"strings"
	"time"
)

const monthNames = `jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec`

// datePatterns locate date-like substrings, most specific first.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}\b`),
	regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:` + monthNames + `)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?[\s-]+(?:` + monthNames + `)[a-z]*\.?[\s,-]+\d{4}\b`),
	regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}[\s-]+(?:` + monthNames + `)[a-z]*\.?[\s-]+\d{2}\b`),
}

// numericLayouts are tried in order: day-first before month-first, so
// 03/04/2023 is 3 April and 04/15/2023 falls through to April 15.
var numericLayouts = []string{
	"2006/1/2",
	"2/1/2006",
	"1/2/2006",
	"2/1/06",
	"1/2/06",
}

var namedLayouts = []string{
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2 Jan 06",
	"2 January 06",
}

var (
	reOrdinal   = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
	reSept      = regexp.MustCompile(`(?i)\bsept\b`)
	reNamedSeps = regexp.MustCompile(`[\s,./-]+`)
	reHasLetter = regexp.MustCompile(`[A-Za-z]`)
)

// ParseDate parses s against the supported formats; the first that fits wins.
// Years outside 1900-2100 are rejected.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	var candidate string
	var layouts []string
	if reHasLetter.MatchString(s) {
		candidate = reOrdinal.ReplaceAllString(s, "$1")
		candidate = reSept.ReplaceAllString(candidate, "Sep")
		candidate = strings.TrimSpace(reNamedSeps.ReplaceAllString(candidate, " "))
		layouts = namedLayouts
	} else {
		candidate = strings.NewReplacer("-", "/", ".", "/").Replace(s)
		layouts = numericLayouts
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, candidate)
		if err != nil {
			continue
		}
		if y := t.Year(); y < 1900 || y > 2100 {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// findDate runs every pattern over text and returns the first match that parses.
func findDate(text string) (time.Time, bool) {
	for _, re := range datePatterns {
		for _, m := range re.FindAllString(text, -1) {
			if t, ok := ParseDate(m); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

var (
	reDateKeyword = regexp.MustCompile(`(?i)\b(?:date|dated|issued|invoice\s+date|bill\s+date|receipt\s+date|purchase\s+date|transaction\s+date|txn\s+date)\b`)
	// lines that carry a date which is not the transaction date
	reOtherDateLine = regexp.MustCompile(`(?i)\b(?:due\s+date|due\s+by|period|expiry|expires|valid\s+(?:until|thru))\b`)
)

// keywordLineDateRule only looks at lines labelled as a date.
type keywordLineDateRule struct{}

func (keywordLineDateRule) Name() string { return "keyword-line" }

func (keywordLineDateRule) FindDate(text string) (time.Time, bool) {
	for _, line := range strings.Split(text, "\n") {
		if !reDateKeyword.MatchString(line) || reOtherDateLine.MatchString(line) {
			continue
		}
		if t, ok := findDate(line); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// wholeTextDateRule scans the whole document.
type wholeTextDateRule struct{}

func (wholeTextDateRule) Name() string { return "whole-text" }

func (wholeTextDateRule) FindDate(text string) (time.Time, bool) {
	return findDate(text)
}

// DefaultDateRules returns the date rules in priority order.
func DefaultDateRules() []DateRule {
	return []DateRule{keywordLineDateRule{}, wholeTextDateRule{}}
}
