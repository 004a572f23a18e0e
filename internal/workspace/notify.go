package workspace

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nao1215/pensift/pkg/httpclient"
	"github.com/nao1215/pensift/pkg/middleware"
	"go.uber.org/zap"
)

// 通知先の状態。/health で返す。
const (
	liveStatusDisabled    = "disabled"
	liveStatusOK          = "ok"
	liveStatusUnreachable = "unreachable"
)

const (
	// notifyTimeout は1回の変更通知に許す最大時間。
	notifyTimeout = 5 * time.Second
	// notifyQueueSize は送信待ちにできる通知の件数。超えた通知は破棄する。
	notifyQueueSize = 256
	// serviceTokenTTL は内部中継APIへ付与するトークンの有効期間。
	serviceTokenTTL = time.Minute
	// serviceName はサービス間トークンのsubject。
	serviceName = "workspace"
)

// Notifier はエンティティの変更をライブ更新サービスへ伝える。
type Notifier interface {
	// Notify はイベントをuserIDの接続へ中継する。
	// 失敗はログに記録するだけで呼び出し元には返さない。
	Notify(ctx context.Context, userID int64, ev any)
	// Status は通知先の状態（disabled / ok / unreachable）を返す。
	Status(ctx context.Context) string
	// Close は送信待ちの通知を送り終えるか、ctxが終了するまで待つ。
	Close(ctx context.Context) error
}

// NewNotifier はliveURLへ通知するNotifierを返す。liveURLが空の場合は何もしないNotifierを返す。
// 通知はキューに積まれ、リクエスト処理とは別のゴルーチンから順に送られる。
// relaySecretが空でなければ、各リクエストにサービス間トークンを付与する。
func NewNotifier(liveURL, relaySecret string, logger *zap.Logger) Notifier {
	if liveURL == "" {
		return nopNotifier{}
	}

	opts := []httpclient.Option{httpclient.WithTimeout(notifyTimeout)}
	if relaySecret != "" {
		opts = append(opts, httpclient.WithBearerToken(func() (string, error) {
			return middleware.GenerateServiceToken(relaySecret, serviceName, serviceTokenTTL)
		}))
	}
	return newAsyncNotifier(&liveNotifier{
		client: httpclient.New(liveURL, opts...),
		logger: logger,
	}, notifyQueueSize, logger)
}

// nopNotifier は通知を送らない。
type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, int64, any) {}

func (nopNotifier) Status(context.Context) string { return liveStatusDisabled }

func (nopNotifier) Close(context.Context) error { return nil }

// pendingNotification はキュー上の1件の通知。
type pendingNotification struct {
	ctx    context.Context
	userID int64
	event  any
}

// asyncNotifier は通知をキューに積み、1つのゴルーチンで受け付け順に送る。
type asyncNotifier struct {
	next   Notifier
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan pendingNotification
	done   chan struct{}
}

func newAsyncNotifier(next Notifier, size int, logger *zap.Logger) *asyncNotifier {
	n := &asyncNotifier{
		next:   next,
		logger: logger,
		queue:  make(chan pendingNotification, size),
		done:   make(chan struct{}),
	}
	go n.drain()
	return n
}

func (n *asyncNotifier) drain() {
	defer close(n.done)
	for p := range n.queue {
		n.next.Notify(p.ctx, p.userID, p.event)
	}
}

// Notify は通知をキューに積んですぐに戻る。キューが満杯または停止済みなら破棄する。
func (n *asyncNotifier) Notify(ctx context.Context, userID int64, ev any) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.Warn("dropping notification after shutdown", zap.Int64("userID", userID))
		return
	}

	// レスポンス送信後もリクエストのコンテキスト値は使う
	p := pendingNotification{ctx: context.WithoutCancel(ctx), userID: userID, event: ev}
	select {
	case n.queue <- p:
	default:
		n.logger.Warn("notification queue full; dropping notification", zap.Int64("userID", userID))
	}
}

func (n *asyncNotifier) Status(ctx context.Context) string {
	return n.next.Status(ctx)
}

func (n *asyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return n.next.Close(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// liveNotifier はライブ更新サービスの内部中継APIを呼び出す。
type liveNotifier struct {
	client *httpclient.Client
	logger *zap.Logger
}

// relayRequest はライブ更新サービスの内部中継APIのリクエストボディ。
type relayRequest struct {
	UserID int64 `json:"user_id"`
	Event  any   `json:"event"`
}

// relayResponse は内部中継APIのレスポンス。
type relayResponse struct {
	Delivered int `json:"delivered"`
}

func (n *liveNotifier) Notify(ctx context.Context, userID int64, ev any) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	ctx = httpclient.WithUserID(ctx, strconv.FormatInt(userID, 10))

	var resp relayResponse
	if err := n.client.PostJSON(ctx, "/api/v1/internal/relay", relayRequest{UserID: userID, Event: ev}, &resp); err != nil {
		n.logger.Warn("failed to notify live service", zap.Int64("userID", userID), zap.Error(err))
		return
	}
	n.logger.Debug("notified live service", zap.Int64("userID", userID), zap.Int("delivered", resp.Delivered))
}

func (n *liveNotifier) Status(ctx context.Context) string {
	if err := n.client.GetJSON(ctx, "/health", nil); err != nil {
		n.logger.Warn("live service health check failed", zap.Error(err))
		return liveStatusUnreachable
	}
	return liveStatusOK
}

func (n *liveNotifier) Close(context.Context) error { return nil }
