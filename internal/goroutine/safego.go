// Package goroutine launches detached work that must never crash the process.
package goroutine

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// SafeGo runs fn in a new goroutine. A panic is recovered and logged with its
// stack trace.
func SafeGo(log *slog.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("goroutine panicked",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
