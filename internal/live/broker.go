package live

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Conn はBrokerが配信対象として扱う1本の接続。
type Conn interface {
	// ID は接続の一意識別子を返す。
	ID() string
	// Send はメッセージを送信キューに投入する。ブロックしてはならない。
	// 切断済みまたはキューが溢れている場合はTransport種別のエラーを返す。
	Send(msg []byte) error
	// Close は接続を閉じる。複数回呼ばれてもよい。
	Close()
}

// Broker は接続中のクライアントをuser_idごとに管理し、イベントを中継する。
// 全接続の一覧とuser_idごとのバケットを同じロックで保護する。
type Broker struct {
	// mu はconnsとbucketsを保護する。
	mu sync.RWMutex
	// conns は登録順の全接続。
	conns []Conn
	// buckets はuser_idごとの登録順の接続。
	buckets map[int64][]Conn

	// validate はinboundメッセージの必須項目検証に使う。
	validate *validator.Validate
	// metrics はPrometheusメトリクス。
	metrics *Metrics
	// logger はzapロガー。
	logger *zap.Logger
}

// NewBroker は空のレジストリを持つBrokerを生成する。
func NewBroker(metrics *Metrics, logger *zap.Logger) *Broker {
	validate := validator.New()
	// 検証エラーにはJSONのフィールド名を使う
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})

	return &Broker{
		buckets:  make(map[int64][]Conn),
		validate: validate,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register は接続を全接続の一覧とuser_idのバケットの末尾に追加する。
func (b *Broker) Register(conn Conn, userID int64) {
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.buckets[userID] = append(b.buckets[userID], conn)
	bucketSize := len(b.buckets[userID])
	b.mu.Unlock()

	b.metrics.ActiveConnections.Inc()
	b.logger.Info("connection registered",
		zap.Int64("userID", userID),
		zap.String("connectionID", conn.ID()),
		zap.Int("userConnections", bucketSize),
	)
}

// Unregister は接続を全接続の一覧とバケットから取り除き、接続を閉じる。
// 登録されていない接続に対しては何もしない。
func (b *Broker) Unregister(conn Conn, userID int64) {
	b.mu.Lock()
	var removed bool
	b.conns, removed = remove(b.conns, conn)
	if bucket, ok := b.buckets[userID]; ok {
		var inBucket bool
		bucket, inBucket = remove(bucket, conn)
		removed = removed || inBucket
		if len(bucket) == 0 {
			delete(b.buckets, userID)
		} else {
			b.buckets[userID] = bucket
		}
	}
	remaining := len(b.buckets[userID])
	b.mu.Unlock()

	if !removed {
		return
	}

	// ロック外で閉じる。スナップショット取得後に外された接続への送信はここで失敗するようになる
	conn.Close()
	b.metrics.ActiveConnections.Dec()
	b.logger.Info("connection unregistered",
		zap.Int64("userID", userID),
		zap.String("connectionID", conn.ID()),
		zap.Int("remainingConnections", remaining),
	)
}

// RelayToUser はuser_idのバケットに登録された全接続へ、登録順にpayloadを送る。
// 個々の送信失敗はログに記録して握りつぶし、キューに投入できた接続数を返す。
func (b *Broker) RelayToUser(userID int64, payload []byte) int {
	b.mu.RLock()
	snapshot := slices.Clone(b.buckets[userID])
	b.mu.RUnlock()

	return b.deliver(snapshot, payload)
}

// RelayToAll はuser_idに関係なく全接続へpayloadを送る。
func (b *Broker) RelayToAll(payload []byte) int {
	b.mu.RLock()
	snapshot := slices.Clone(b.conns)
	b.mu.RUnlock()

	return b.deliver(snapshot, payload)
}

// ConnectionCount はuser_idのバケットに登録されている接続数を返す。
func (b *Broker) ConnectionCount(userID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buckets[userID])
}

// TotalConnections は登録されている全接続数を返す。
func (b *Broker) TotalConnections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Close は全接続を登録解除して閉じる。プロセス停止時に呼び出す。
func (b *Broker) Close() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.buckets = make(map[int64][]Conn)
	b.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
		b.metrics.ActiveConnections.Dec()
	}
	b.logger.Info("broker closed", zap.Int("closedConnections", len(conns)))
}

// deliver はスナップショットの各接続へ独立に送信する。
func (b *Broker) deliver(conns []Conn, payload []byte) int {
	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			b.metrics.MessagesFailed.Inc()
			b.logger.Warn("failed to deliver message",
				zap.String("connectionID", conn.ID()),
				zap.Error(err),
			)
			continue
		}
		delivered++
		b.metrics.MessagesSent.Inc()
	}
	return delivered
}

// remove はスライスからconnを取り除く。順序は維持する。
func remove(conns []Conn, conn Conn) ([]Conn, bool) {
	i := slices.Index(conns, conn)
	if i < 0 {
		return conns, false
	}
	return slices.Delete(conns, i, i+1), true
}
