package cli

import (
	"log/slog"
	"os"

	"github.com/hydromet/datanode/internal/constants"
)

// SetVerbosity maps the -v flag count onto the default logger level:
// 0 keeps the quiet default, 1 enables INFO, 2 and above DEBUG.
func SetVerbosity(count int) {
	slog.SetLogLoggerLevel(levelFor(count))
}

// SetSlog configures the default logger level and output format. With
// jsonLogs the logger emits one JSON object per line on stdout, which is
// what the node runs with under a log collector.
func SetSlog(count int, jsonLogs bool) {
	if !jsonLogs {
		SetVerbosity(count)
		return
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelFor(count)})
	slog.SetDefault(slog.New(handler))
}

func levelFor(count int) slog.Level {
	switch count {
	case 0:
		return constants.DefaultLogLevel
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
