package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNew は実行環境ごとのログレベルを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env       string
		wantDebug bool
	}{
		{"production", false},
		{"development", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			t.Parallel()

			log, err := New(tt.env)
			if err != nil {
				t.Fatalf("New()でエラーが発生: %v", err)
			}
			if got := log.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("Debugレベルの有効状態 = %v, want %v", got, tt.wantDebug)
			}
			if !log.Core().Enabled(zapcore.InfoLevel) {
				t.Error("Infoレベルが無効になっている")
			}
		})
	}
}
