package engine

import (
	"strings"
	"testing"
)

func TestTerminationContextPrefix(t *testing.T) {
	if got := TerminationContextPrefix(TerminationNormal); got != "" {
		t.Errorf("normal prefix = %q, want empty", got)
	}

	nonEmpty := []TerminationReason{TerminationUserStopped, TerminationTimeout, TerminationError}
	for _, reason := range nonEmpty {
		prefix := TerminationContextPrefix(reason)
		if prefix == "" {
			t.Errorf("%s: prefix is empty", reason)
			continue
		}
		if !strings.HasSuffix(prefix, "\n\n") {
			t.Errorf("%s: prefix does not end with a blank line: %q", reason, prefix)
		}
	}

	stopped := strings.ToLower(TerminationContextPrefix(TerminationUserStopped))
	if !strings.Contains(stopped, "do not retry") {
		t.Errorf("user_stopped prefix missing retry instruction: %q", stopped)
	}
}

func TestTerminationUnknownReasonIsSilent(t *testing.T) {
	if got := TerminationContextPrefix(TerminationReason("mystery")); got != "" {
		t.Errorf("unknown reason prefix = %q, want empty", got)
	}
}
