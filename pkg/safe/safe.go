package safe

import (
	"log/slog"
	"runtime/debug"
	"strings"
)

// Run executes fn and recovers from any panic, logging the stack trace.
// Every background goroutine in this codebase goes through here.
func Run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", "safe.Run"),
				slog.String("stack", stackTrace(20)),
			)
		}
	}()

	fn()
}

// RunWithComponent is Run with an explicit component label for the log entry.
func RunWithComponent(fn func(), component string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", stackTrace(20)),
			)
		}
	}()

	fn()
}

// stackTrace formats the current stack, keeping at most maxFrames lines.
func stackTrace(maxFrames int) string {
	lines := strings.Split(string(debug.Stack()), "\n")

	var b strings.Builder
	for i, line := range lines {
		if i > maxFrames {
			b.WriteString("  ... (truncated)")
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
