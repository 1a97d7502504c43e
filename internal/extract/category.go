package extract

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

// CategoryKeyword maps a lowercase keyword to a category name.
type CategoryKeyword struct {
	Keyword  string `yaml:"keyword"`
	Category string `yaml:"category"`
}

// DefaultCategoryKeywords is the built-in table. Order matters: the earliest
// entry that occurs in the text wins.
var DefaultCategoryKeywords = []CategoryKeyword{
	{"grocer", string(constants.Groceries)},
	{"supermart", string(constants.Groceries)},
	{"hypermarket", string(constants.Groceries)},
	{"supermarket", string(constants.Groceries)},
	{"electricity", string(constants.Utilities)},
	{"power bill", string(constants.Utilities)},
	{"light bill", string(constants.Utilities)},
	{"internet", string(constants.Utilities)},
	{"telecom", string(constants.Utilities)},
	{"broadband", string(constants.Utilities)},
	{"water bill", string(constants.Utilities)},
	{"restaurant", string(constants.Dining)},
	{"cafe", string(constants.Dining)},
	{"café", string(constants.Dining)},
	{"food", string(constants.Dining)},
	{"petrol", string(constants.Transport)},
	{"gas station", string(constants.Transport)},
	{"fuel", string(constants.Transport)},
	{"pharmacy", string(constants.Health)},
	{"medicine", string(constants.Health)},
	{"fashion", string(constants.Shopping)},
	{"clothing", string(constants.Shopping)},
	{"online store", string(constants.Shopping)},
	{"hotel", string(constants.Travel)},
	{"airline", string(constants.Travel)},
}

// CategoryTable finds the first table keyword present in a text.
type CategoryTable struct {
	entries []CategoryKeyword
	// the matcher keeps per-call state, so Match is serialized
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

// NewCategoryTable builds a matcher over entries, keeping their order as priority.
// Duplicate keywords keep their first category.
func NewCategoryTable(entries []CategoryKeyword) *CategoryTable {
	seen := make(map[string]struct{}, len(entries))
	t := &CategoryTable{}
	for _, e := range entries {
		kw := strings.ToLower(strings.TrimSpace(e.Keyword))
		cat := strings.TrimSpace(e.Category)
		if kw == "" || cat == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		t.entries = append(t.entries, CategoryKeyword{Keyword: kw, Category: cat})
	}
	if len(t.entries) > 0 {
		kws := make([]string, len(t.entries))
		for i, e := range t.entries {
			kws[i] = e.Keyword
		}
		t.matcher = ahocorasick.NewStringMatcher(kws)
	}
	return t
}

// Lookup returns the category of the highest-priority keyword in text.
func (t *CategoryTable) Lookup(text string) (string, bool) {
	if t == nil || t.matcher == nil {
		return "", false
	}
	t.mu.Lock()
	hits := t.matcher.Match([]byte(strings.ToLower(text)))
	t.mu.Unlock()
	if len(hits) == 0 {
		return "", false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h < best {
			best = h
		}
	}
	return t.entries[best].Category, true
}

type categoryRules struct {
	Categories []CategoryKeyword `yaml:"categories"`
}

// LoadCategoryRules reads extra keywords from a YAML file of the form
//
//	categories:
//	  - keyword: bakery
//	    category: Groceries
func LoadCategoryRules(path string) ([]CategoryKeyword, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading category rules: %w", err)
	}
	var rules categoryRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing category rules %s: %w", path, err)
	}
	return rules.Categories, nil
}

// WithOverlay puts extra keywords ahead of the built-in table.
func WithOverlay(extra []CategoryKeyword) []CategoryKeyword {
	out := make([]CategoryKeyword, 0, len(extra)+len(DefaultCategoryKeywords))
	out = append(out, extra...)
	return append(out, DefaultCategoryKeywords...)
}

var reCategoryLabel = regexp.MustCompile(`(?im)^[^\S\n]*(?:category|expense\s+type)[^\S\n]*[:=][^\S\n]*([^\n]+)$`)

// labelCategoryRule honours an explicit "Category: X" line naming a known category.
type labelCategoryRule struct{}

func (labelCategoryRule) Name() string { return "label" }

func (labelCategoryRule) FindCategory(text, _ string) (string, bool) {
	for _, m := range reCategoryLabel.FindAllStringSubmatch(text, -1) {
		if cat, ok := constants.Canonicalize(m[1]); ok {
			return string(cat), true
		}
	}
	return "", false
}

// keywordCategoryRule scans the text and vendor name against a keyword table.
type keywordCategoryRule struct {
	table *CategoryTable
}

func (keywordCategoryRule) Name() string { return "keyword" }

func (r keywordCategoryRule) FindCategory(text, vendor string) (string, bool) {
	return r.table.Lookup(text + "\n" + vendor)
}

// DefaultCategoryRules returns the category rules in priority order.
func DefaultCategoryRules(table *CategoryTable) []CategoryRule {
	if table == nil {
		table = NewCategoryTable(DefaultCategoryKeywords)
	}
	return []CategoryRule{labelCategoryRule{}, keywordCategoryRule{table: table}}
}
