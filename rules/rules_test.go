package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matrixor/tsg-officer/state"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const builderRules = `
rules:
  - rule_id: ai-001
    title: Model inventory registered
    severity: BLOCKER
    applies_to: ["Internal AI Builder"]
    keywords: [inventory, registered]
    question: "Is the model registered in the model inventory?"
  - rule_id: ai-002
    title: Data retention documented
    severity: WARN
    applies_to: ["Internal AI Builder", "Consumer of External AI"]
    keywords: [retention]
`

const sharedRules = `
rules:
  - rule_id: gov-001
    title: Owner identified
    severity: INFO
    keywords: [owner]
`

func TestListRulesFiltersByCategory(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "builder.yaml", builderRules)
	writeRuleFile(t, dir, "nested/shared.yaml", sharedRules)

	repo := NewYAMLRepository(dir, "**/*.yaml")

	builder, err := repo.ListRules("Internal AI Builder")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(builder) != 3 {
		t.Fatalf("builder rules = %d, want 3", len(builder))
	}

	consumer, err := repo.ListRules("Consumer of External AI")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	// ai-002 (shared applies_to) and gov-001 (empty applies_to).
	if len(consumer) != 2 {
		t.Fatalf("consumer rules = %d, want 2", len(consumer))
	}
	if consumer[0].RuleID != "ai-002" || consumer[1].RuleID != "gov-001" {
		t.Errorf("consumer rules = %v", consumer)
	}
}

func TestUnionDeduplicatesByRuleID(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "builder.yaml", builderRules)
	writeRuleFile(t, dir, "shared.yaml", sharedRules)

	repo := NewYAMLRepository(dir, "*.yaml")

	union, err := Union(repo, []string{"Internal AI Builder", "Consumer of External AI"})
	if err != nil {
		t.Fatalf("Union: %v", err)
	}

	seen := make(map[string]int)
	for _, r := range union {
		seen[r.RuleID]++
	}
	// ai-002 applies to both categories but must appear exactly once.
	if seen["ai-002"] != 1 {
		t.Errorf("ai-002 appeared %d times, want 1", seen["ai-002"])
	}
	if len(union) != 3 {
		t.Errorf("union size = %d, want 3", len(union))
	}
	if union[0].RuleID != "ai-001" {
		t.Errorf("union order not preserved: first rule %s", union[0].RuleID)
	}
}

func TestDuplicateRuleIDAcrossFilesRejected(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.yaml", "rules:\n  - {rule_id: dup-1, title: A, severity: INFO}\n")
	writeRuleFile(t, dir, "b.yaml", "rules:\n  - {rule_id: dup-1, title: B, severity: INFO}\n")

	repo := NewYAMLRepository(dir, "*.yaml")
	if _, err := repo.ListRules("any"); err == nil {
		t.Error("expected duplicate rule_id error")
	}
}

func TestInvalidateReloads(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.yaml", "rules:\n  - {rule_id: r-1, title: One, severity: INFO}\n")

	repo := NewYAMLRepository(dir, "*.yaml")
	first, err := repo.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("rules = %d, want 1", len(first))
	}

	writeRuleFile(t, dir, "b.yaml", "rules:\n  - {rule_id: r-2, title: Two, severity: WARN}\n")

	// Cache still serves the old view until invalidated.
	cached, _ := repo.All()
	if len(cached) != 1 {
		t.Fatalf("cached rules = %d, want 1", len(cached))
	}

	repo.Invalidate()
	reloaded, err := repo.All()
	if err != nil {
		t.Fatalf("All after invalidate: %v", err)
	}
	if len(reloaded) != 2 {
		t.Errorf("reloaded rules = %d, want 2", len(reloaded))
	}
}

func TestAppliesToCategory(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		category string
		want     bool
	}{
		{"empty applies to all", Rule{RuleID: "r"}, "anything", true},
		{"exact match", Rule{RuleID: "r", AppliesTo: []string{"Internal AI Builder"}}, "Internal AI Builder", true},
		{"case insensitive", Rule{RuleID: "r", AppliesTo: []string{"internal ai builder"}}, "Internal AI Builder", true},
		{"no match", Rule{RuleID: "r", AppliesTo: []string{"Consumer of External AI"}}, "Internal AI Builder", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.AppliesToCategory(tt.category); got != tt.want {
				t.Errorf("AppliesToCategory(%q) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestSeverityParsesFromYAML(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.yaml", "rules:\n  - {rule_id: r-1, title: One, severity: BLOCKER}\n")

	repo := NewYAMLRepository(dir, "*.yaml")
	all, err := repo.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if all[0].Severity != state.SeverityBlocker {
		t.Errorf("severity = %v, want BLOCKER", all[0].Severity)
	}
}
