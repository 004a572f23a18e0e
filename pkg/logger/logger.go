// Package logger はzapロガーの生成を提供する。
package logger

import (
	"github.com/nao1215/pensift/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New は実行環境に応じたロガーを生成する。
// production ではJSON形式・Infoレベル、それ以外はコンソール形式・Debugレベルで出力する。
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if config.IsProduction(env) {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
