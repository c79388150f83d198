package daemon

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/mesutfelat/cowork/internal/engine"
)

func TestIsTransientProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"provider code econnreset", &engine.ProviderError{Code: "ECONNRESET", Message: "read failed"}, true},
		{"provider code lowercase", &engine.ProviderError{Code: "etimedout", Message: "x"}, true},
		{"provider code eai_again", &engine.ProviderError{Code: "EAI_AGAIN", Message: "x"}, true},
		{"provider code unknown", &engine.ProviderError{Code: "EWEIRD", Message: "strange failure"}, false},
		{"wrapped provider code", fmt.Errorf("call failed: %w", &engine.ProviderError{Code: "ENOTFOUND", Message: "x"}), true},
		{"syscall econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"syscall etimedout", syscall.ETIMEDOUT, true},
		{"dns error", &net.DNSError{Err: "no such host", Name: "api.example.com"}, true},
		{"fetch failed text", errors.New("fetch failed"), true},
		{"network text mixed case", errors.New("Network unreachable"), true},
		{"timeout text", errors.New("request Timeout after 120s"), true},
		{"socket hang up text", errors.New("socket hang up"), true},
		{"permission failure", errors.New("invalid api key"), false},
		{"validation failure", errors.New("model does not support tool use"), false},
		{"rate limit without code", errors.New("429 too many requests"), false},
		{"plain failure", errors.New("internal server error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientProviderError(tt.err); got != tt.want {
				t.Errorf("IsTransientProviderError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
