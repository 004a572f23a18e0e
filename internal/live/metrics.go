package live

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はBrokerの稼働状況を表すPrometheusメトリクス。
type Metrics struct {
	// ActiveConnections は登録中の接続数。
	ActiveConnections prometheus.Gauge
	// MessagesSent は送信キューへの投入に成功したメッセージ数。
	MessagesSent prometheus.Counter
	// MessagesFailed は切断済み・送信キュー溢れで破棄したメッセージ数。
	MessagesFailed prometheus.Counter
}

// NewMetrics はメトリクスを生成し、指定されたレジストリに登録する。
// テストでは prometheus.NewRegistry() で生成した独立レジストリを渡す。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_active_connections",
			Help: "Number of registered live connections.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_messages_sent_total",
			Help: "Number of messages queued for delivery to a live connection.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_messages_failed_total",
			Help: "Number of messages dropped because the connection was closed or its send buffer was full.",
		}),
	}
	reg.MustRegister(m.ActiveConnections, m.MessagesSent, m.MessagesFailed)
	return m
}
