package metrics

import (
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Request("/check", 200)
	m.UnknownSeen()
	m.SyncCycle("ok")
	m.Download(true, 10)
}

func TestDownloadCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Download(true, 100)
	m.Download(true, 50)
	m.Download(false, 999)

	expected := `
# HELP buildsync_downloaded_bytes_total Bytes of artifacts installed from upstream.
# TYPE buildsync_downloaded_bytes_total counter
buildsync_downloaded_bytes_total 150
# HELP buildsync_downloads_total Upstream artifact downloads by result.
# TYPE buildsync_downloads_total counter
buildsync_downloads_total{result="failed"} 1
buildsync_downloads_total{result="installed"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"buildsync_downloads_total", "buildsync_downloaded_bytes_total"))
}
