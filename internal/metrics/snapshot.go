package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// WriteSnapshot gathers g and writes every family whose name starts with
// prefix in the Prometheus text exposition format. An empty prefix writes
// everything.
func WriteSnapshot(w io.Writer, g prometheus.Gatherer, prefix string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	selected := make([]*dto.MetricFamily, 0, len(families))
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), prefix) {
			selected = append(selected, mf)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].GetName() < selected[j].GetName()
	})

	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range selected {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteSnapshotFile writes the snapshot to path, replacing any existing file.
func WriteSnapshotFile(path string, g prometheus.Gatherer, prefix string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics snapshot: %w", err)
	}
	if err := WriteSnapshot(f, g, prefix); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// metricOf reads the current value of a single metric.
func metricOf(m prometheus.Metric) *dto.Metric {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return nil
	}
	return &out
}
