package workflow

import "strconv"

const previewLen = 80

// preview truncates a value for audit details so the trail stays
// readable and never embeds whole documents.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "..."
}

func itoa(n int) string { return strconv.Itoa(n) }
