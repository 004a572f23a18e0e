package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/pkg/apperr"
	"github.com/nao1215/pensift/pkg/config"
	"github.com/nao1215/pensift/pkg/httpclient"
	"github.com/nao1215/pensift/pkg/middleware"
	"github.com/nao1215/pensift/pkg/migration"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout はグレースフルシャットダウンで処理中のリクエストを待つ最大時間。
const shutdownTimeout = 10 * time.Second

// Server はエンティティストアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はエンティティの永続化と整合性検証を行う。
	store *Store
	// notifier はライブ更新サービスへの変更通知を行う。
	notifier Notifier
	// logger はzapロガー。
	logger *zap.Logger
}

// NewServer は新しいエンティティストアサーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(ctx context.Context, cfg *config.Workspace, logger *zap.Logger) (*Server, error) {
	sqlDB, err := OpenDB(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, sqlDB, logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	s := newServer(sqlDB, NewNotifier(cfg.LiveURL, cfg.RelaySecret, logger), []string{cfg.FrontendURL}, logger)
	s.port = cfg.Port
	return s, nil
}

// newServer はDBと通知先を受け取ってサーバーを組み立てる。
func newServer(sqlDB *sql.DB, notifier Notifier, allowedOrigins []string, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(allowedOrigins))

	s := &Server{
		router:   router,
		db:       sqlDB,
		store:    NewStore(sqlDB),
		notifier: notifier,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
// キャンセル後は処理中のリクエストと送信待ちの通知を待ってからDBを閉じる。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("workspace server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down workspace server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// 処理中のリクエストが積んだ通知を送り切る
		if closeErr := s.notifier.Close(shutdownCtx); closeErr != nil {
			s.logger.Warn("pending notifications were not delivered", zap.Error(closeErr))
		}
		return err
	})

	err := g.Wait()
	if closeErr := s.db.Close(); closeErr != nil {
		s.logger.Warn("failed to close database", zap.Error(closeErr))
	}
	return err
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	folders := s.router.Group("/folders")
	{
		folders.GET("", s.handleListFolders())
		folders.POST("", s.handleCreateFolder())
		folders.GET("/:id", s.handleGetFolder())
		folders.PUT("/:id", s.handleUpdateFolder())
		folders.DELETE("/:id", s.handleDeleteFolder())
	}

	files := s.router.Group("/files")
	{
		files.GET("", s.handleListFiles())
		files.POST("", s.handleCreateFile())
		files.GET("/:id", s.handleGetFile())
		files.PUT("/:id", s.handleUpdateFile())
		files.DELETE("/:id", s.handleDeleteFile())
	}

	timeline := s.router.Group("/timeline")
	{
		timeline.GET("", s.handleListTimeline())
		timeline.POST("", s.handleCreateTimeline())
		timeline.GET("/:id", s.handleGetTimeline())
		timeline.PUT("/:id", s.handleUpdateTimeline())
		timeline.DELETE("/:id", s.handleDeleteTimeline())
	}

	graph := s.router.Group("/graph")
	{
		nodes := graph.Group("/nodes")
		{
			nodes.GET("", s.handleListNodes())
			nodes.POST("", s.handleCreateNode())
			nodes.GET("/:id", s.handleGetNode())
			nodes.PUT("/:id", s.handleUpdateNode())
			nodes.DELETE("/:id", s.handleDeleteNode())
		}

		edges := graph.Group("/edges")
		{
			edges.GET("", s.handleListEdges())
			edges.POST("", s.handleCreateEdge())
			edges.GET("/:id", s.handleGetEdge())
			edges.PUT("/:id", s.handleUpdateEdge())
			edges.DELETE("/:id", s.handleDeleteEdge())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		version, err := migration.CurrentVersion(c.Request.Context(), s.db)
		if err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "workspace"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"service":        "workspace",
			"schema_version": version,
			"live":           s.notifier.Status(c.Request.Context()),
		})
	})
}

// respondError はエラーの種別に応じたステータスコードで {"detail": ...} を返す。
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"detail": apperr.Message(err, http.StatusText(status))})
}

// bindJSON はリクエストボディをreqにデシリアライズする。失敗した場合は400を返してfalseを返す。
func (s *Server) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.respondError(c, apperr.Validation(fmt.Sprintf("Invalid request body: %v", err), err))
		return false
	}
	return true
}

// pathID はパスパラメータのidを整数として返す。失敗した場合は400を返してfalseを返す。
func (s *Server) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.respondError(c, apperr.Validation("id must be an integer", err))
		return 0, false
	}
	return id, true
}

// page はskip/limitクエリパラメータを読み取る。失敗した場合は400を返してfalseを返す。
func (s *Server) page(c *gin.Context) (Page, bool) {
	page := DefaultPage()
	for _, q := range []struct {
		name string
		dst  *int64
	}{
		{"skip", &page.Offset},
		{"limit", &page.Limit},
	} {
		raw, ok := c.GetQuery(q.name)
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			s.respondError(c, apperr.Validation(q.name+" must be a non-negative integer", err))
			return Page{}, false
		}
		*q.dst = v
	}
	return page, true
}

// notify は変更をX-User-IDヘッダーのユーザーの接続へ伝える。
// ヘッダーが無いか整数でない場合は通知しない。
func (s *Server) notify(c *gin.Context, ev any) {
	raw := c.GetHeader(httpclient.HeaderUserID)
	if raw == "" {
		s.logger.Debug("skipping notification without X-User-ID", zap.String("path", c.FullPath()))
		return
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("ignoring notification with invalid X-User-ID", zap.String("userID", raw))
		return
	}
	s.notifier.Notify(c.Request.Context(), userID, ev)
}

// deletedMessage は削除成功時のレスポンス。
func deletedMessage(entity string) gin.H {
	return gin.H{"message": entity + " deleted successfully"}
}
