package workflow

import (
	"regexp"
	"strings"
)

// ParsedFields is what a FieldParser pulls out of a free-text reply:
// explicit field assignments and any category labels the human named
// directly.
type ParsedFields struct {
	Fields     map[string]string
	Categories []string
}

// FieldParser extracts structured intake data from free text. The
// default is regex-based; swap in something heavier if replies get
// messier.
type FieldParser interface {
	Parse(text string) ParsedFields
}

// canonicalFieldNames maps the loose labels people type to intake
// field keys. Only listed names are accepted; anything else in a
// "label: value" line is ignored.
var canonicalFieldNames = map[string]string{
	"application type": "application_type",
	"application_type": "application_type",
	"applicant":        "applicant_name",
	"applicant name":   "applicant_name",
	"applicant_name":   "applicant_name",
	"apn":              "apn",
	"bsn":              "bsn",
	"address":          "address",
	"scope of work":    "scope_of_work",
	"scope_of_work":    "scope_of_work",
	"needs flowchart":  "needs_flowchart",
	"needs_flowchart":  "needs_flowchart",
	"submission":       "submission_text",
	"submission text":  "submission_text",
	"submission_text":  "submission_text",
	"description":      "submission_text",
}

// categoryMentions map direct phrasings to canonical labels, checked
// in order so extraction is deterministic.
var categoryMentions = []struct {
	mention string
	label   string
}{
	{"internal ai builder", "Internal AI Builder"},
	{"consumer of external ai", "Consumer of External AI"},
	{"consumer of internal ai", "Consumer of Internal AI"},
	{"external ai consumer", "Consumer of External AI"},
	{"internal ai consumer", "Consumer of Internal AI"},
}

var (
	fieldLineRe      = regexp.MustCompile(`(?m)^\s*([A-Za-z][A-Za-z0-9_ -]{0,40}?)\s*[:=]\s*(.+?)\s*$`)
	needsFlowchartRe = regexp.MustCompile(`(?i)\b(needs?|requires?)\s+a?\s*(flow\s*chart|flowchart|diagram)\b`)
)

// RegexFieldParser is the default light parser. It recognizes
// "label: value" lines for known fields, direct category mentions,
// and a "needs a flowchart" phrasing anywhere in the text.
type RegexFieldParser struct{}

func (RegexFieldParser) Parse(text string) ParsedFields {
	out := ParsedFields{Fields: map[string]string{}}
	for _, m := range fieldLineRe.FindAllStringSubmatch(text, -1) {
		label := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(m[1], "-", " ")))
		if field, ok := canonicalFieldNames[label]; ok {
			out.Fields[field] = strings.TrimSpace(m[2])
		}
	}

	lower := strings.ToLower(text)
	for _, cm := range categoryMentions {
		if strings.Contains(lower, cm.mention) && !containsLabel(out.Categories, cm.label) {
			out.Categories = append(out.Categories, cm.label)
		}
	}
	if needsFlowchartRe.MatchString(text) {
		if _, ok := out.Fields["needs_flowchart"]; !ok {
			out.Fields["needs_flowchart"] = "yes"
		}
	}
	return out
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
