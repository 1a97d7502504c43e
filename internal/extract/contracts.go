package extract

import (
	"time"

	"github.com/shopspring/decimal"
)

// Each field is extracted by an ordered list of rules. A rule either returns
// a candidate or nothing; the first plausible candidate wins.

// AmountCandidate is one amount a rule found, with the currency it implied.
type AmountCandidate struct {
	Value    decimal.Decimal
	Currency string // empty when the match carried no currency indicator
	Rule     string
}

type AmountRule interface {
	Name() string
	// Candidates returns matches in the order they should be tried.
	Candidates(text string) []AmountCandidate
}

type DateRule interface {
	Name() string
	FindDate(text string) (time.Time, bool)
}

type VendorRule interface {
	Name() string
	FindVendor(text string) (string, bool)
}

type CategoryRule interface {
	Name() string
	FindCategory(text, vendor string) (string, bool)
}
