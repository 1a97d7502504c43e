package extract

import (
	"regexp"
	"time"
)

const periodDate = `\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|[a-z]{3,9}\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}|\d{1,2}(?:st|nd|rd|th)?\s+[a-z]{3,9}\.?,?\s+\d{4}`

var reBillingPeriod = regexp.MustCompile(`(?i)\b(?:billing|service)\s*period\s*[:=]?\s*(?:from\s+)?(` + periodDate + `)\s*(?:to|through|thru|until|till|-|–)\s*(` + periodDate + `)`)

// findBillingPeriod returns both ends of a labelled billing period, or nothing
// when either end fails to parse or the range runs backwards.
func findBillingPeriod(text string) (time.Time, time.Time, bool) {
	for _, m := range reBillingPeriod.FindAllStringSubmatch(text, -1) {
		start, ok1 := ParseDate(m[1])
		end, ok2 := ParseDate(m[2])
		if ok1 && ok2 && !end.Before(start) {
			return start, end, true
		}
	}
	return time.Time{}, time.Time{}, false
}
