package workflow

import "testing"

func TestIsClarificationRequest(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"plain clarification", "what does this mean?", true},
		{"question phrase no mark", "what does that mean", true},
		{"dont understand", "I don't understand", true},
		{"curly apostrophe", "I don’t understand", true},
		{"explain request", "can you explain this question", true},
		{"short interrogative", "which system?", true},
		{"huh", "huh", true},
		{"chinese clarification", "这是什么意思", true},
		{"empty", "   ", false},
		{"real answer", "The model is registered in the internal catalog under MODEL-42.", false},
		{"answer starting with how we", "how we handle data is documented in the runbook", false},
		{"answer with colon", "What changed: we added encryption at rest", false},
		{"na answer", "N/A", false},
		{"long prose with question mark", "The pipeline runs nightly and retrains on fresh tickets, does that cover what you were asking about here exactly?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClarificationRequest(tt.reply); got != tt.want {
				t.Errorf("IsClarificationRequest(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestQuestionKey(t *testing.T) {
	if got := QuestionKey("followup", "Provide the ID."); got != "followup::Provide the ID." {
		t.Errorf("QuestionKey = %q", got)
	}
}
