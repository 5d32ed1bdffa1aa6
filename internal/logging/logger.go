// Package logging configures the global zerolog logger for the CLI and the
// Lambda binaries.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv names the environment variable that sets the log level.
const LevelEnv = "VIDEO_LOG_LEVEL"

// ParseLevel maps debug, info, warn and error to zerolog levels. Anything
// else is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init initializes the global logger for interactive use.
// VIDEO_LOG_LEVEL controls the log level: debug, info, warn, error (default: info)
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(LevelEnv)))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// InitJSON initializes the global logger for Lambda: one JSON object per
// line on stdout, which CloudWatch indexes as structured fields.
func InitJSON() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(LevelEnv)))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// SetVerbose lowers the global level to debug.
func SetVerbose() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ForSession returns a logger that tags every event with the session ID.
func ForSession(sessionID string) zerolog.Logger {
	return log.With().Str("sessionId", sessionID).Logger()
}
