package browser

import (
	"context"
	"errors"
	"strings"
)

// closedPatterns are chromedp/websocket error fragments that show up when the
// browser process went away underneath us.
var closedPatterns = []string{
	"context canceled",
	"context deadline exceeded",
	"websocket: close",
	"target closed",
	"browser: not connected",
	"session closed",
	"page closed",
	"connection refused",
	"broken pipe",
}

// IsClosed reports whether err means the browser session is gone. A dead
// browser is not recoverable within a run, unlike a per-account step failure.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range closedPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
