package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const numPattern = `\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`

const symbolClass = `$€£₹¥`

// currencySymbols maps a printed symbol to its ISO code.
var currencySymbols = map[string]string{
	"$": money.USD,
	"€": money.EUR,
	"£": money.GBP,
	"₹": money.INR,
	"¥": money.JPY,
}

// currencyCodes lists the ISO codes recognized next to an amount. Matching
// arbitrary three-letter words would turn item names like "PEN" into currencies.
var currencyCodes = []string{
	money.USD, money.EUR, money.GBP, money.INR, money.CAD, money.AUD, money.JPY,
	money.CHF, money.CNY, money.SGD, money.NZD, money.HKD, money.SEK, money.NOK,
	money.DKK, money.ZAR, money.AED, money.MXN, money.BRL,
}

// currencyAliases are informal spellings accepted in place of a code.
var currencyAliases = map[string]string{
	"RS":  money.INR,
	"RS.": money.INR,
	"INR": money.INR,
}

// amount keywords, strongest first
var (
	strongAmountKeywords = `grand\s+total|total\s+due|amount\s+due|balance\s+due|amount\s+payable|total\s+amount`
	weakAmountKeywords   = `total|amount|sum|bill|paid|due|balance`
)

// gapReject drops keyword matches that label something other than a sum.
var gapReject = regexp.MustCompile(`(?i)\b(?:date|no|number|period|id|ref|account|invoice|tax|vat|gst|discount|savings|saved|change|tip|items?|qty|quantity)\b|#`)

// isSubtotal reports whether the keyword starting at pos is the tail of "subtotal".
func isSubtotal(text string, pos int) bool {
	head := strings.ToLower(strings.TrimRight(text[max(0, pos-5):pos], " -"))
	return strings.HasSuffix(head, "sub")
}

var (
	reSymbolBefore = regexp.MustCompile(`(?i)\b(` + strongAmountKeywords + `|` + weakAmountKeywords + `)\b([^\n\d` + symbolClass + `]{0,24}?)([` + symbolClass + `])\s*(` + numPattern + `)`)
	reSymbolAfter  = regexp.MustCompile(`(?i)\b(` + strongAmountKeywords + `|` + weakAmountKeywords + `)\b([^\n\d` + symbolClass + `]{0,24}?)(` + numPattern + `)\s*([` + symbolClass + `])`)
	reCodeBefore   = regexp.MustCompile(`(?i)\b(` + codeAlternation() + `)\s*(` + numPattern + `)`)
	reCodeAfter    = regexp.MustCompile(`(?i)(` + numPattern + `)\s*(` + codeAlternation() + `)\b`)
	reKeywordPlain = regexp.MustCompile(`(?i)\b(` + strongAmountKeywords + `|` + weakAmountKeywords + `)\b([^\n\d]{0,24}?)(` + numPattern + `)`)
	reBareSymbol   = regexp.MustCompile(`([` + symbolClass + `])\s*(` + numPattern + `)`)
	reStrongKw     = regexp.MustCompile(`(?i)^(?:` + strongAmountKeywords + `)$`)
	reAnyCode      = regexp.MustCompile(`\b(` + strings.Join(currencyCodes, "|") + `)\b`)
)

func codeAlternation() string {
	parts := append([]string{`rs\.?`}, currencyCodes...)
	return strings.Join(parts, "|")
}

func lookupCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if c, ok := currencyAliases[s]; ok {
		return c
	}
	for _, c := range currencyCodes {
		if c == s {
			return c
		}
	}
	return ""
}

// ParseAmount reads a number whose last '.' or ',' followed by one or two
// digits is the decimal separator; every other separator groups thousands.
// "1.234,56" and "1,234.56" both read as 1234.56.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	intPart, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 {
		if tail := s[i+1:]; len(tail) == 1 || len(tail) == 2 {
			intPart, frac = s[:i], tail
		}
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + frac {
		if r < '0' || r > '9' {
			return decimal.Decimal{}, false
		}
	}
	num := intPart
	if frac != "" {
		num += "." + frac
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// followedByDate reports whether a number at text[end:] continues as a date or time.
func followedByDate(text string, end int) bool {
	if end+1 >= len(text) {
		return false
	}
	c, next := text[end], text[end+1]
	return (c == '/' || c == '-' || c == ':') && next >= '0' && next <= '9'
}

type keywordMatch struct {
	rank int // 0 for strong keywords
	pos  int
	cand AmountCandidate
}

func sortKeywordMatches(ms []keywordMatch) []AmountCandidate {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].rank != ms[j].rank {
			return ms[i].rank < ms[j].rank
		}
		return ms[i].pos < ms[j].pos
	})
	out := make([]AmountCandidate, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.cand)
	}
	return out
}

func keywordRank(kw string) int {
	if reStrongKw.MatchString(strings.TrimSpace(kw)) {
		return 0
	}
	return 1
}

// symbolKeywordRule finds a symbol-marked amount near a total-like keyword.
type symbolKeywordRule struct{}

func (symbolKeywordRule) Name() string { return "symbol-keyword" }

func (r symbolKeywordRule) Candidates(text string) []AmountCandidate {
	var ms []keywordMatch
	for _, m := range reSymbolBefore.FindAllStringSubmatchIndex(text, -1) {
		kw, gap, sym, num := text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]], text[m[8]:m[9]]
		if gapReject.MatchString(gap) || isSubtotal(text, m[2]) || followedByDate(text, m[9]) {
			continue
		}
		if v, ok := ParseAmount(num); ok {
			ms = append(ms, keywordMatch{keywordRank(kw), m[0], AmountCandidate{v, currencySymbols[sym], r.Name()}})
		}
	}
	for _, m := range reSymbolAfter.FindAllStringSubmatchIndex(text, -1) {
		kw, gap, num, sym := text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]], text[m[8]:m[9]]
		if gapReject.MatchString(gap) || isSubtotal(text, m[2]) {
			continue
		}
		if v, ok := ParseAmount(num); ok {
			ms = append(ms, keywordMatch{keywordRank(kw), m[0], AmountCandidate{v, currencySymbols[sym], r.Name()}})
		}
	}
	return sortKeywordMatches(ms)
}

// isoCodeRule finds an amount written next to a currency code, on either side.
type isoCodeRule struct{}

func (isoCodeRule) Name() string { return "iso-code" }

func (r isoCodeRule) Candidates(text string) []AmountCandidate {
	type hit struct {
		pos  int
		cand AmountCandidate
	}
	var hits []hit
	for _, m := range reCodeBefore.FindAllStringSubmatchIndex(text, -1) {
		code, num := text[m[2]:m[3]], text[m[4]:m[5]]
		if followedByDate(text, m[5]) {
			continue
		}
		if v, ok := ParseAmount(num); ok {
			hits = append(hits, hit{m[0], AmountCandidate{v, lookupCode(code), r.Name()}})
		}
	}
	for _, m := range reCodeAfter.FindAllStringSubmatchIndex(text, -1) {
		num, code := text[m[2]:m[3]], text[m[4]:m[5]]
		if v, ok := ParseAmount(num); ok {
			hits = append(hits, hit{m[0], AmountCandidate{v, lookupCode(code), r.Name()}})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]AmountCandidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.cand)
	}
	return out
}

// keywordPlainRule takes a bare number after a total-like keyword. Totals
// sit near the bottom of a receipt, so later matches are tried first.
type keywordPlainRule struct{}

func (keywordPlainRule) Name() string { return "keyword-plain" }

func (r keywordPlainRule) Candidates(text string) []AmountCandidate {
	var out []AmountCandidate
	for _, m := range reKeywordPlain.FindAllStringSubmatchIndex(text, -1) {
		gap, num := text[m[4]:m[5]], text[m[6]:m[7]]
		if gapReject.MatchString(gap) || isSubtotal(text, m[2]) || followedByDate(text, m[7]) {
			continue
		}
		if v, ok := ParseAmount(num); ok {
			out = append(out, AmountCandidate{Value: v, Rule: r.Name()})
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// bareSymbolRule is the last resort: any symbol-marked amount, last first.
type bareSymbolRule struct{}

func (bareSymbolRule) Name() string { return "bare-symbol" }

func (r bareSymbolRule) Candidates(text string) []AmountCandidate {
	var out []AmountCandidate
	ms := reBareSymbol.FindAllStringSubmatch(text, -1)
	for i := len(ms) - 1; i >= 0; i-- {
		if v, ok := ParseAmount(ms[i][2]); ok {
			out = append(out, AmountCandidate{Value: v, Currency: currencySymbols[ms[i][1]], Rule: r.Name()})
		}
	}
	return out
}

// DefaultAmountRules returns the amount rules in priority order.
func DefaultAmountRules() []AmountRule {
	return []AmountRule{symbolKeywordRule{}, isoCodeRule{}, keywordPlainRule{}, bareSymbolRule{}}
}

// detectCurrency looks for any currency indicator in the text.
func detectCurrency(text string) string {
	if m := reAnyCode.FindString(text); m != "" {
		return m
	}
	for _, r := range text {
		if c, ok := currencySymbols[string(r)]; ok {
			return c
		}
	}
	return ""
}

// roundToCurrency rounds to the currency's minor units, e.g. none for JPY.
func roundToCurrency(v decimal.Decimal, code string) decimal.Decimal {
	if c := money.GetCurrency(code); c != nil {
		return v.Round(int32(c.Fraction))
	}
	return v.Round(2)
}
