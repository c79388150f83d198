// Package daemon schedules tasks: the queue manager, the per-task runner,
// and the transient-failure retry path. It owns everything the executor
// reports into through the TaskHost surface.
package daemon

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/mesutfelat/cowork/internal/engine"
)

// transientCodes are the network-level error codes that always qualify for a
// retry, regardless of message text.
var transientCodes = map[string]bool{
	"ECONNRESET":   true,
	"ETIMEDOUT":    true,
	"ENOTFOUND":    true,
	"EAI_AGAIN":    true,
	"ECONNREFUSED": true,
}

// transientSubstrings qualify by message alone, matched case-insensitively.
var transientSubstrings = []string{
	"fetch failed",
	"network",
	"timeout",
	"socket hang up",
}

// IsTransientProviderError reports whether a provider failure is worth
// retrying: a known network error code, an OS-level connection fault, or a
// message matching the transient patterns. Permission, validation, and
// rate-limit failures without a network code stay false; those either need a
// human or are handled by the budget path.
func IsTransientProviderError(err error) bool {
	if err == nil {
		return false
	}

	var pe *engine.ProviderError
	if errors.As(err, &pe) && transientCodes[strings.ToUpper(pe.Code)] {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sub := range transientSubstrings {
		if strings.Contains(msg, sub) {
			return true
		}
	}

	return false
}
