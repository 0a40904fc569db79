package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML document shape of one rule file.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// YAMLRepository loads rules from YAML files under a directory. Files are
// discovered by a doublestar glob and cached until Invalidate is called.
type YAMLRepository struct {
	dir  string
	glob string

	mu     sync.RWMutex
	loaded bool
	rules  []Rule
}

// NewYAMLRepository creates a repository over dir, selecting files matching
// the doublestar glob pattern (e.g. "**/*.yaml").
func NewYAMLRepository(dir, glob string) *YAMLRepository {
	return &YAMLRepository{dir: dir, glob: glob}
}

// ListRules returns the rules applying to category, in file order.
func (r *YAMLRepository) ListRules(category string) ([]Rule, error) {
	all, err := r.load()
	if err != nil {
		return nil, err
	}
	var out []Rule
	for _, rule := range all {
		if rule.AppliesToCategory(category) {
			out = append(out, rule)
		}
	}
	return out, nil
}

// All returns every loaded rule regardless of category.
func (r *YAMLRepository) All() ([]Rule, error) {
	return r.load()
}

// Invalidate drops the cached rule set so the next read reloads from disk.
func (r *YAMLRepository) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.rules = nil
}

// load returns the cached rules, reading files on first use.
func (r *YAMLRepository) load() ([]Rule, error) {
	r.mu.RLock()
	if r.loaded {
		rules := r.rules
		r.mu.RUnlock()
		return rules, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.rules, nil
	}

	paths, err := r.matchFiles()
	if err != nil {
		return nil, err
	}

	var rules []Rule
	seen := make(map[string]string)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", path, err)
		}
		var file ruleFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse rule file %s: %w", path, err)
		}
		for _, rule := range file.Rules {
			if rule.RuleID == "" {
				return nil, fmt.Errorf("rule file %s: rule with empty rule_id", path)
			}
			if prev, dup := seen[rule.RuleID]; dup {
				return nil, fmt.Errorf("duplicate rule_id %q in %s (first defined in %s)", rule.RuleID, path, prev)
			}
			seen[rule.RuleID] = path
			rules = append(rules, rule)
		}
	}

	r.rules = rules
	r.loaded = true
	return rules, nil
}

// matchFiles expands the glob to a deterministic, sorted file list.
func (r *YAMLRepository) matchFiles() ([]string, error) {
	pattern := filepath.Join(r.dir, r.glob)
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("resolve rule glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
