package app

import (
	"fmt"
	"strings"
)

// KeywordRule maps a case-insensitive substring of a row label to a bin type
type KeywordRule struct {
	Pattern string  `yaml:"pattern"`
	BinType BinType `yaml:"bin_type"`
}

// KeywordTable is an ordered rule list; the first matching rule wins.
// Labels matching no rule are skipped by the scraper.
type KeywordTable []KeywordRule

// DefaultKeywordRules puts garden organics first so that "Green waste"
// or "Garden organics (lime lid)" never falls through to another rule.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{Pattern: "garden", BinType: GardenOrganics},
		{Pattern: "organic", BinType: GardenOrganics},
		{Pattern: "green waste", BinType: GardenOrganics},
		{Pattern: "recycl", BinType: Recycling},
		{Pattern: "rubbish", BinType: Rubbish},
		{Pattern: "general waste", BinType: Rubbish},
		{Pattern: "landfill", BinType: Rubbish},
		{Pattern: "red lid", BinType: Rubbish},
	}
}

// Match returns the bin type for label, or false when no rule applies
func (t KeywordTable) Match(label string) (BinType, bool) {
	l := strings.ToLower(label)
	for _, rule := range t {
		p := strings.ToLower(strings.TrimSpace(rule.Pattern))
		if p != "" && strings.Contains(l, p) {
			return rule.BinType, true
		}
	}
	return 0, false
}

// ParseBinType accepts display names and their snake/compact forms
func ParseBinType(s string) (BinType, error) {
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, b := range BinTypes {
		if strings.ReplaceAll(strings.ToLower(b.String()), " ", "") == key {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown bin type %q", s)
}

// UnmarshalText lets site profiles name bin types in YAML
func (b *BinType) UnmarshalText(text []byte) error {
	parsed, err := ParseBinType(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
