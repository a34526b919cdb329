package instagram

import (
	"errors"
	"strings"
)

// Classification is the result of classifying a provider failure
type Classification int

const (
	// ClassTerminal means the failure is final for the chain: no fallback
	ClassTerminal Classification = iota
	// ClassWindowClosed means the provider rejected the send because the
	// messaging window is closed; private-reply fallback may be attempted
	ClassWindowClosed
)

// Platform signals for an outside-messaging-window rejection. These are
// inconsistently coded across API versions, so classification also falls back
// to substring matching on the error message.
const (
	codeOutsideWindow    = 10
	subcodeOutsideWindow = 2534022
)

// windowRule matches a provider error against one window-closed signal.
// A zero code/subcode or empty pattern means that field does not participate.
type windowRule struct {
	code    int
	subcode int
	pattern string // lowercase substring of the error message
}

var windowRules = []windowRule{
	{code: codeOutsideWindow},
	{subcode: subcodeOutsideWindow},
	{pattern: "window"},
	{pattern: "policy"},
}

// Classify determines whether a send failure was caused by a closed messaging
// window. Only structured *APIError values can classify as window-closed;
// transport errors and timeouts are always terminal.
func Classify(err error) Classification {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return ClassTerminal
	}

	msg := strings.ToLower(apiErr.Message)
	for _, rule := range windowRules {
		switch {
		case rule.code != 0 && apiErr.Code == rule.code:
			return ClassWindowClosed
		case rule.subcode != 0 && apiErr.ErrorSubcode == rule.subcode:
			return ClassWindowClosed
		case rule.pattern != "" && strings.Contains(msg, rule.pattern):
			return ClassWindowClosed
		}
	}

	return ClassTerminal
}
