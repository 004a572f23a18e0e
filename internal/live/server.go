package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nao1215/pensift/pkg/config"
	"github.com/nao1215/pensift/pkg/event"
	"github.com/nao1215/pensift/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout はグレースフルシャットダウンで処理中のリクエストを待つ最大時間。
const shutdownTimeout = 10 * time.Second

// Server はライブ更新サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// broker は接続レジストリ。
	broker *Broker
	// upgrader はHTTP接続をWebSocketにアップグレードする。
	upgrader websocket.Upgrader
	// clientCfg は接続ごとのタイムアウト設定。
	clientCfg clientConfig
	// registry は/metricsで公開するPrometheusレジストリ。
	registry *prometheus.Registry
	// tokenSecret はuser_idトークンの検証鍵。空の場合は検証しない。
	tokenSecret string
	// relaySecret は内部中継APIのサービス間トークンの検証鍵。空の場合は検証しない。
	relaySecret string
	// logger はzapロガー。
	logger *zap.Logger
}

// NewServer は新しいライブ更新サーバーを生成する。
func NewServer(cfg *config.Live, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	broker := NewBroker(NewMetrics(registry), logger)

	allowed := []string{cfg.FrontendURL}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(allowed))

	s := &Server{
		router: router,
		port:   cfg.Port,
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.AllowOrigin(allowed, r.Header.Get("Origin"))
			},
		},
		clientCfg: clientConfig{
			pingInterval:    cfg.PingInterval,
			pongWait:        cfg.PongWait,
			writeWait:       cfg.WriteWait,
			maxMessageBytes: cfg.MaxMessageBytes,
			sendBuffer:      cfg.SendBuffer,
		},
		registry:    registry,
		tokenSecret: cfg.TokenSecret,
		relaySecret: cfg.RelaySecret,
		logger:      logger,
	}
	s.setupRoutes()

	return s
}

// Broker はサーバーが保持する接続レジストリを返す。
func (s *Server) Broker() *Broker {
	return s.broker
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
// キャンセル後は新規リクエストの受付を止め、全接続を閉じてから戻る。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("live server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down live server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// ハイジャック済みのWebSocket接続はShutdownの対象外なので明示的に閉じる
		s.broker.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	// WebSocket接続
	s.router.GET("/ws/:user_id", middleware.RequireUserToken(s.tokenSecret, "user_id"), s.handleConnect())

	api := s.router.Group("/api/v1")
	{
		// エンティティストアからの変更通知（内部API）
		internal := api.Group("/internal", middleware.RequireServiceToken(s.relaySecret))
		{
			internal.POST("/relay", s.handleRelay())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "live",
			"connections": s.broker.TotalConnections(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// handleConnect はWebSocketへのアップグレードを行い、接続が閉じるまで処理するハンドラ。
func (s *Server) handleConnect() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id must be an integer"})
			return
		}

		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgraderがエラーレスポンスを書き込み済み
			s.logger.Warn("websocket upgrade failed", zap.Int64("userID", userID), zap.Error(err))
			return
		}

		newClient(userID, conn, s.broker, s.clientCfg, s.logger).serve()
	}
}

// relayRequest は内部中継APIのリクエストボディ。
type relayRequest struct {
	// UserID は配信先のuser_id。nullの場合は全接続へ配信する。
	UserID *int64 `json:"user_id"`
	// Event は配信するイベント。typeフィールドを持つJSONオブジェクト。
	Event json.RawMessage `json:"event" binding:"required"`
}

// handleRelay はエンティティストアからの変更通知を接続中のクライアントへ中継するハンドラ。
func (s *Server) handleRelay() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req relayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
			return
		}

		typ, err := event.Peek(req.Event)
		if err != nil || typ == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "event must be a JSON object with a type"})
			return
		}

		var delivered int
		if req.UserID != nil {
			delivered = s.broker.RelayToUser(*req.UserID, req.Event)
		} else {
			delivered = s.broker.RelayToAll(req.Event)
		}

		s.logger.Debug("relayed event",
			zap.String("type", string(typ)),
			zap.Int("delivered", delivered),
		)
		c.JSON(http.StatusOK, gin.H{"delivered": delivered})
	}
}
