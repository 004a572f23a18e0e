// エンティティストアサービスのエントリポイント。
// フォルダ・ファイル・タイムライン・グラフをSQLiteに保存し、REST APIで公開する。
// LIVE_URLが設定されていれば、変更をライブ更新サービスへ通知する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/internal/workspace"
	"github.com/nao1215/pensift/pkg/config"
	"github.com/nao1215/pensift/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "エンティティストアサービスの起動に失敗: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkspace()
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := workspace.NewServer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("サーバーの初期化に失敗: %w", err)
	}

	log.Info("starting workspace service",
		zap.String("port", cfg.Port),
		zap.String("database", cfg.DatabasePath),
		zap.Bool("liveNotifications", cfg.LiveURL != ""),
	)
	return server.Run(ctx)
}
