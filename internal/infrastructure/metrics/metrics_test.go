package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

type fixedStats struct{ stats rnet.Stats }

func (f *fixedStats) Stats() rnet.Stats { return f.stats }

func TestRegisterManager(t *testing.T) {
	src := &fixedStats{stats: rnet.Stats{
		FramesRx:     7,
		FramesTx:     3,
		ErrorsTotal:  1,
		LastActivity: time.Unix(1700000000, 0),
		State:        rnet.StateOnline,
	}}
	reg := NewRegistry()
	RegisterManager(reg, src)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"rnet_frames_received_total 7",
		"rnet_frames_sent_total 3",
		"rnet_errors_total 1",
		"rnet_online 1",
		"rnet_last_activity_timestamp_seconds 1.7e+09",
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}

	src.stats.State = rnet.StateOfflineRetrying
	rec = httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "rnet_online 0") {
		t.Error("rnet_online should drop to 0 when offline")
	}
}

func TestBridgeMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewBridgeMetrics(reg)

	m.Commands.WithLabelValues("volume", "ok").Inc()
	m.Commands.WithLabelValues("volume", "ok").Inc()
	m.Commands.WithLabelValues("power", "unreachable").Inc()
	m.ZonesTracked.Set(4)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	out := rec.Body.String()

	for _, want := range []string{
		`rnet_bridge_commands_total{command="volume",result="ok"} 2`,
		`rnet_bridge_commands_total{command="power",result="unreachable"} 1`,
		"rnet_bridge_zones_tracked 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
