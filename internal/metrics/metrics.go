// Package metrics содержит счетчики узла в формате Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор счетчиков узла. Нулевой указатель допустим: все методы ничего не делают.
type Metrics struct {
	requests        *prometheus.CounterVec
	unknown         prometheus.Counter
	syncCycles      *prometheus.CounterVec
	downloads       *prometheus.CounterVec
	downloadedBytes prometheus.Counter
}

// New создает счетчики и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildsync",
			Name:      "requests_total",
			Help:      "Peer requests by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		unknown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildsync",
			Name:      "unknown_components_total",
			Help:      "Components first seen in peer requests but absent from the catalog.",
		}),
		syncCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildsync",
			Name:      "sync_cycles_total",
			Help:      "Upstream sync cycles by result.",
		}, []string{"result"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildsync",
			Name:      "downloads_total",
			Help:      "Upstream artifact downloads by result.",
		}, []string{"result"}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "buildsync",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes of artifacts installed from upstream.",
		}),
	}

	reg.MustRegister(m.requests, m.unknown, m.syncCycles, m.downloads, m.downloadedBytes)
	return m
}

// Request учитывает обработанный запрос пира
func (m *Metrics) Request(endpoint string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

// UnknownSeen учитывает новый неизвестный компонент
func (m *Metrics) UnknownSeen() {
	if m == nil {
		return
	}
	m.unknown.Inc()
}

// SyncCycle учитывает завершенный цикл синхронизации: ok, failed или skipped
func (m *Metrics) SyncCycle(result string) {
	if m == nil {
		return
	}
	m.syncCycles.WithLabelValues(result).Inc()
}

// Download учитывает результат скачивания одного компонента
func (m *Metrics) Download(installed bool, size int64) {
	if m == nil {
		return
	}
	if !installed {
		m.downloads.WithLabelValues("failed").Inc()
		return
	}
	m.downloads.WithLabelValues("installed").Inc()
	m.downloadedBytes.Add(float64(size))
}
