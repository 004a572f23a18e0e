// ライブ更新サービスのエントリポイント。
// /ws/{user_id} でWebSocket接続を受け付け、同じuser_idの全接続へ更新イベントを中継する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/internal/live"
	"github.com/nao1215/pensift/pkg/config"
	"github.com/nao1215/pensift/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ライブ更新サービスの起動に失敗: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadLive()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	if config.IsProduction(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.TokenSecret == "" {
		log.Warn("LIVE_TOKEN_SECRET is not set; user_id is not authenticated")
	}
	if cfg.RelaySecret == "" {
		log.Warn("LIVE_RELAY_SECRET is not set; internal relay API is not authenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := live.NewServer(cfg, log)
	log.Info("starting live service",
		zap.String("port", cfg.Port),
		zap.Duration("pingInterval", cfg.PingInterval),
		zap.Duration("pongWait", cfg.PongWait),
	)
	return server.Run(ctx)
}
