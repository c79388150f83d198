package engine

import (
	"strings"
	"testing"
)

func TestDetectsQuestion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"direct question mark", "Which config file should I edit?", true},
		{"would you like", "Would you like me to also update the tests", true},
		{"should i", "Should I delete the old migration files first", true},
		{"please confirm", "Please confirm that staging is safe to touch.", true},
		{"which option", "Which option would work best here: A or B", true},
		{"statement", "I updated the config and reran the suite.", false},
		{"rhetorical in long answer", strings.Repeat("Detailed analysis. ", 60) + "Makes sense?", false},
		{"trailing question", "All tests pass now. Anything else?", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectsQuestion(tt.text); got != tt.want {
				t.Errorf("DetectsQuestion(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
