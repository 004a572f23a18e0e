package live

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nao1215/pensift/pkg/apperr"
	"go.uber.org/zap"
)

// clientConfig はWebSocket接続ごとのタイムアウトとバッファ設定。
type clientConfig struct {
	// pingInterval はpingを送る間隔。pongWaitより短くする。
	pingInterval time.Duration
	// pongWait はpong（または任意のフレーム）を待つ最大時間。
	pongWait time.Duration
	// writeWait は1フレームの書き込みに許す最大時間。
	writeWait time.Duration
	// maxMessageBytes は受信フレームの最大サイズ。
	maxMessageBytes int64
	// sendBuffer は送信キューの長さ。
	sendBuffer int
}

// Client は1本のWebSocket接続。Connを実装する。
// 受信ループ（readPump）と送信ループ（writePump）の2つのgoroutineで動く。
type Client struct {
	id     string
	userID int64
	conn   *websocket.Conn
	broker *Broker
	cfg    clientConfig
	logger *zap.Logger

	// mu はsendとclosedを保護する。
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// newClient は新しいClientを生成する。まだBrokerには登録しない。
func newClient(userID int64, conn *websocket.Conn, broker *Broker, cfg clientConfig, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		broker: broker,
		cfg:    cfg,
		send:   make(chan []byte, cfg.sendBuffer),
		logger: logger.With(
			zap.Int64("userID", userID),
			zap.String("connectionID", id),
		),
	}
}

// ID は接続の一意識別子を返す。
func (c *Client) ID() string {
	return c.id
}

// Send はメッセージを送信キューに投入する。ブロックしない。
func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperr.Transport("connection closed", nil)
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return apperr.Transport("send buffer full", nil)
	}
}

// Close は送信キューを閉じる。writePumpがcloseフレームを送って接続を閉じる。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// serve は接続をBrokerに登録し、切断されるまで受信ループを回す。
// 戻った時点で接続は登録解除されている。
func (c *Client) serve() {
	c.broker.Register(c, c.userID)
	go c.writePump()
	c.readPump()
}

// readPump は受信フレームをBrokerに渡す。
// 読み込みエラー（切断・pongタイムアウト・サイズ超過）で終了し、登録を解除する。
func (c *Client) readPump() {
	defer func() {
		c.broker.Unregister(c, c.userID)
		_ = c.conn.Close()
		c.logger.Debug("read pump stopped")
	}()

	c.conn.SetReadLimit(c.cfg.maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.broker.HandleMessage(c, c.userID, message)
		case websocket.BinaryMessage:
			c.logger.Warn("binary messages are not supported")
		}
	}
}

// writePump は送信キューのメッセージを書き込み、定期的にpingを送る。
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.logger.Debug("write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeWait))
			if !ok {
				// 登録解除済み
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
