// Package rules provides the compliance rule library consulted by the
// checklist phase. Rules are loaded from YAML files and filtered by the
// category labels a case was classified into.
package rules

import (
	"strings"

	"github.com/matrixor/tsg-officer/state"
)

// Rule is one compliance requirement a submission is checked against.
type Rule struct {
	RuleID      string                  `yaml:"rule_id" json:"rule_id"`
	Title       string                  `yaml:"title" json:"title"`
	Description string                  `yaml:"description,omitempty" json:"description,omitempty"`
	Severity    state.ChecklistSeverity `yaml:"severity" json:"severity"`
	// AppliesTo lists the category labels this rule applies to. Empty means
	// the rule applies to every category.
	AppliesTo []string `yaml:"applies_to,omitempty" json:"applies_to,omitempty"`
	// Keywords are evidence hints used by deterministic evaluation.
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	// Question is asked when the rule cannot be resolved from evidence.
	Question string `yaml:"question,omitempty" json:"question,omitempty"`
}

// AppliesToCategory reports whether the rule applies to the given category.
func (r Rule) AppliesToCategory(category string) bool {
	if len(r.AppliesTo) == 0 {
		return true
	}
	for _, c := range r.AppliesTo {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(category)) {
			return true
		}
	}
	return false
}

// Repository serves the applicable rule set for a category.
type Repository interface {
	// ListRules returns the rules applying to one category, in file order.
	ListRules(category string) ([]Rule, error)
}

// Union returns the rules applying to any of the given categories,
// de-duplicated by rule_id with first-occurrence order preserved. A case may
// belong to several categories; the checklist runs against the union.
func Union(repo Repository, categories []string) ([]Rule, error) {
	var out []Rule
	seen := make(map[string]bool)
	for _, cat := range categories {
		rs, err := repo.ListRules(cat)
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			if seen[r.RuleID] {
				continue
			}
			seen[r.RuleID] = true
			out = append(out, r)
		}
	}
	return out, nil
}
