package healthz

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStatusIsStartingUntilEthereumConnects(t *testing.T) {
	status := New("oracle")
	snap := status.snapshot()
	if snap.Status != "starting" {
		t.Errorf("expected initial status 'starting', got %q", snap.Status)
	}

	status.SetEthereum("connected")
	if got := status.snapshot().Status; got != "ok" {
		t.Errorf("expected 'ok' once ethereum connects, got %q", got)
	}

	status.SetTickError(errTick)
	snap = status.snapshot()
	if snap.Status != "degraded" {
		t.Errorf("expected 'degraded' after a tick error, got %q", snap.Status)
	}
	if snap.LastTickError == "" {
		t.Error("expected LastTickError to be populated")
	}

	status.SetTickError(nil)
	if got := status.snapshot().LastTickError; got != "" {
		t.Errorf("expected LastTickError cleared, got %q", got)
	}
}

var errTick = fakeErr("tick failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestNewMetricsRegistersAllCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "keeper")

	m.TicksRun.Inc()
	m.TxSubmitted.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 6 {
		t.Errorf("expected 6 registered metric families, got %d", len(families))
	}
}
