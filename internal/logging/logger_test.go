package logging

import (
	"net"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("default logger should be a nop logger")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	if !GetLogger().Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn level should be enabled")
	}
	if GetLogger().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level should be disabled")
	}
	SetLogger(zap.NewNop())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"chatty", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogDatagram(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	from := &net.UDPAddr{IP: net.ParseIP("192.168.1.20"), Port: 1900}
	LogDatagram(l, "recv", from, []byte("NOTIFY * HTTP/1.1\r\n\r\n"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["peer"] != "192.168.1.20:1900" {
		t.Errorf("peer = %v", fields["peer"])
	}
	if ascii, _ := fields["ascii"].(string); !strings.HasPrefix(ascii, "NOTIFY * HTTP/1.1..") {
		t.Errorf("ascii = %q", ascii)
	}
}

func TestDumpsAreCapped(t *testing.T) {
	data := make([]byte, 1000)
	if got := len(asciiDump(data)); got != maxDumpBytes {
		t.Errorf("asciiDump length = %d, want %d", got, maxDumpBytes)
	}
	if got := hexDump(data); !strings.HasSuffix(got, "...") || len(got) != maxDumpBytes*2+3 {
		t.Errorf("hexDump length = %d", len(got))
	}
}
