package logger

import (
	"testing"

	"github.com/samvad-hq/tinyclients/internal/config"
)

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	S = nil
	InfoObj("msg", "k", 1)
	ZapLogger{}.ErrorObj("msg", "k", 1)
	(&NopLogger{}).WarnObj("msg", "k", 1)
	if err := Close(); err != nil {
		t.Fatalf("Close before Init: %v", err)
	}
}

func TestInitSetsPackageLogger(t *testing.T) {
	log, err := Init(&config.Config{AppName: "tinyclients-test", LogLevel: "debug"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if S == nil || log == nil {
		t.Fatalf("expected logger to be initialized")
	}
	log.DebugObj("debug message", "payload", map[string]any{"ok": true})
	t.Cleanup(func() { S = nil })
}
