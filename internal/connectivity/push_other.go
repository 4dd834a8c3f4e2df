//go:build !linux

package connectivity

import (
	"context"
	"log/slog"
)

// startPushSources has no push sources off Linux; polling covers it.
func startPushSources(context.Context, *slog.Logger, func(string)) (func(), bool) {
	return func() {}, false
}
