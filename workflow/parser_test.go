package workflow

import "testing"

func TestRegexFieldParserFields(t *testing.T) {
	p := RegexFieldParser{}

	parsed := p.Parse("Applicant name: Jordan Kim\nAPN: 123-456-789\nScope of work = kitchen remodel")
	want := map[string]string{
		"applicant_name": "Jordan Kim",
		"apn":            "123-456-789",
		"scope_of_work":  "kitchen remodel",
	}
	for field, value := range want {
		if parsed.Fields[field] != value {
			t.Errorf("field %s = %q, want %q", field, parsed.Fields[field], value)
		}
	}
	if _, ok := parsed.Fields["needs_flowchart"]; ok {
		t.Error("needs_flowchart should not be set")
	}
}

func TestRegexFieldParserIgnoresUnknownLabels(t *testing.T) {
	p := RegexFieldParser{}
	parsed := p.Parse("Favorite color: blue")
	if len(parsed.Fields) != 0 {
		t.Errorf("unknown label extracted: %v", parsed.Fields)
	}
}

func TestRegexFieldParserCategories(t *testing.T) {
	p := RegexFieldParser{}

	parsed := p.Parse("This falls under Consumer of External AI and also consumer of internal ai.")
	if len(parsed.Categories) != 2 ||
		parsed.Categories[0] != "Consumer of External AI" ||
		parsed.Categories[1] != "Consumer of Internal AI" {
		t.Fatalf("categories = %v", parsed.Categories)
	}

	// Duplicate mentions collapse.
	parsed = p.Parse("internal ai builder, Internal AI Builder")
	if len(parsed.Categories) != 1 || parsed.Categories[0] != "Internal AI Builder" {
		t.Errorf("categories = %v, want single Internal AI Builder", parsed.Categories)
	}
}

func TestRegexFieldParserFlowchartPhrase(t *testing.T) {
	p := RegexFieldParser{}

	parsed := p.Parse("The approval process needs a flowchart before filing.")
	if parsed.Fields["needs_flowchart"] != "yes" {
		t.Errorf("needs_flowchart = %q, want yes", parsed.Fields["needs_flowchart"])
	}

	// An explicit assignment wins over the phrase.
	parsed = p.Parse("needs_flowchart: no\nThe process requires a diagram.")
	if parsed.Fields["needs_flowchart"] != "no" {
		t.Errorf("needs_flowchart = %q, want no", parsed.Fields["needs_flowchart"])
	}
}
