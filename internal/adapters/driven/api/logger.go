package api

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/custodia-labs/sercha-connect/internal/logger"
)

var _ retryablehttp.LeveledLogger = leveledLogger{}

// leveledLogger routes retryablehttp's logs to the process logger.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...any) {
	logger.Warn("%s", formatKV(msg, keysAndValues))
}

func (leveledLogger) Warn(msg string, keysAndValues ...any) {
	logger.Warn("%s", formatKV(msg, keysAndValues))
}

func (leveledLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("%s", formatKV(msg, keysAndValues))
}

func (leveledLogger) Debug(msg string, keysAndValues ...any) {
	logger.Debug("%s", formatKV(msg, keysAndValues))
}

func formatKV(msg string, kv []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
