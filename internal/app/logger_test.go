package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/heartmarshall/account-import/internal/config"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

func TestNewLogger_SetsDefault(t *testing.T) {
	cfg := config.LogConfig{Level: "info", Format: "json"}
	logger := NewLogger(cfg)

	if slog.Default().Handler() != logger.Handler() {
		t.Error("NewLogger should set the returned logger as slog default")
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level    string
		wantSlog slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer

			logger := newLogger(&buf, config.LogConfig{Level: tt.level, Format: "text"})

			logger.Log(context.TODO(), tt.wantSlog, "should appear")
			if buf.Len() == 0 {
				t.Errorf("expected log output at level %v", tt.wantSlog)
			}

			buf.Reset()
			belowLevel := tt.wantSlog - 1
			logger.Log(context.TODO(), belowLevel, "should be suppressed")
			if buf.Len() != 0 {
				t.Errorf("level %v should suppress level %v, but got output: %s",
					tt.wantSlog, belowLevel, buf.String())
			}
		})
	}
}

func TestNewLogger_TextAddSource_JSONNoSource(t *testing.T) {
	var textBuf, jsonBuf bytes.Buffer

	newLogger(&textBuf, config.LogConfig{Level: "info", Format: "text"}).
		Info("batch started", slog.String("batch_id", "b-1"))
	newLogger(&jsonBuf, config.LogConfig{Level: "info", Format: "json"}).
		Info("batch started", slog.String("batch_id", "b-1"))

	if !strings.Contains(textBuf.String(), "source=") {
		t.Error("text format should include source")
	}

	var m map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := m["source"]; ok {
		t.Error("json format should not include source")
	}
	if m["batch_id"] != "b-1" {
		t.Errorf("batch_id = %v, want b-1", m["batch_id"])
	}
}

func TestNewLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "info", Format: "json"}).
		With(slog.String("variant", "ASKER"))

	id := uuid.New()
	ctx := ctxutil.WithRow(ctxutil.WithBatchID(context.Background(), id), 7)
	logger.InfoContext(ctx, "row provisioned")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["batch_id"] != id.String() {
		t.Errorf("batch_id = %v, want %s", m["batch_id"], id)
	}
	if m["row"] != float64(7) {
		t.Errorf("row = %v, want 7", m["row"])
	}
	if m["variant"] != "ASKER" {
		t.Errorf("variant = %v, want ASKER", m["variant"])
	}

	buf.Reset()
	logger.InfoContext(context.Background(), "import started")
	if strings.Contains(buf.String(), "batch_id") || strings.Contains(buf.String(), `"row"`) {
		t.Errorf("context without ids should add no attrs: %s", buf.String())
	}
}
