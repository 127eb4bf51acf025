package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/siertrichain/siertrichain/business/sys/metrics"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
)

type source struct{}

func (source) QueryStats() state.Stats {
	return state.Stats{Height: 7, Difficulty: 12, Assets: 15, Reorgs: 1}
}

func TestChainCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewChainCollector(source{})); err != nil {
		t.Fatalf("Should be able to register the collector: %s", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Should be able to gather metrics: %s", err)
	}

	got := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			got[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			got[mf.GetName()] = m.GetCounter().GetValue()
		}
	}

	if got["siertrichain_chain_height"] != 7 {
		t.Fatalf("Should report the height: got %v", got)
	}
	if got["siertrichain_chain_difficulty"] != 12 {
		t.Fatalf("Should report the difficulty: got %v", got)
	}
	if got["siertrichain_chain_reorgs_total"] != 1 {
		t.Fatalf("Should report the reorgs: got %v", got)
	}
}
