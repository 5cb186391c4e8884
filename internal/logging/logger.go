package logging

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar selects the level when no --log-level flag is given. Unset
// means silent.
const LogLevelEnvVar = "SSDP_LOG_LEVEL"

// maxDumpBytes caps hex and ascii dumps of datagrams.
const maxDumpBytes = 256

var logger *zap.Logger

// Initialize installs the global logger. An empty level falls back to
// SSDP_LOG_LEVEL; if that is empty too, logging stays off. An unknown level
// logs at info.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	built, err := consoleConfig(lvl).Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built
	return nil
}

// consoleConfig writes colored console lines to stderr so stdout stays free
// for command output.
func consoleConfig(lvl zapcore.Level) zap.Config {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to zap levels.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// InitializeFromEnv is Initialize("").
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Tests use it with observer loggers.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger, a nop logger before Initialize.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Named returns a child of the global logger for one component.
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// LogDatagram logs one sent or received datagram at debug level. SSDP is
// text, so the payload goes in as ascii with non-printable bytes as dots.
func LogDatagram(l *zap.Logger, direction string, peer net.Addr, data []byte) {
	if l == nil {
		l = GetLogger()
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	var from string
	if peer != nil {
		from = peer.String()
	}
	l.Debug("Datagram",
		zap.String("direction", direction),
		zap.String("peer", from),
		zap.Int("length", len(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// LogRawBytes logs a hex and ascii dump, for datagrams that failed to decode.
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) > maxDumpBytes {
		return hex.EncodeToString(data[:maxDumpBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	out := slices.Clone(data[:min(len(data), maxDumpBytes)])
	for i, b := range out {
		if b < ' ' || b > '~' {
			out[i] = '.'
		}
	}
	return string(out)
}

// Sync flushes buffered entries.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
