// Package metrics exports audit outcomes for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/ipacheck/internal/core/consistency"
	"github.com/example/ipacheck/internal/ports/secondary"
)

const namespace = "ipacheck"

// Analysis label values of ipacheck_check_ok.
const (
	AnalysisItemCount  = "item_count"
	AnalysisMissing    = "missing"
	AnalysisDuplicates = "duplicates"
	AnalysisOverall    = "overall"
)

type gauges struct {
	checkOK         *prometheus.GaugeVec
	nodeValue       *prometheus.GaugeVec
	nodeUnavailable *prometheus.GaugeVec
	missingEntries  *prometheus.GaugeVec
	duplicateGroups *prometheus.GaugeVec
	lastRun         *prometheus.GaugeVec
}

func newGauges(reg prometheus.Registerer) *gauges {
	f := promauto.With(reg)
	return &gauges{
		checkOK: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_ok",
			Help:      "Whether an analysis of a check passed (1/0).",
		}, []string{"domain", "check", "analysis"}),
		nodeValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_value",
			Help:      "Numeric summary a node reported for a check.",
		}, []string{"domain", "check", "node"}),
		nodeUnavailable: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_unavailable",
			Help:      "Whether a node produced no result for a check (1/0).",
		}, []string{"domain", "check", "node"}),
		missingEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_entries",
			Help:      "Number of entries present elsewhere but missing on a node.",
		}, []string{"domain", "check", "node"}),
		duplicateGroups: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duplicate_groups",
			Help:      "Number of logical identifiers backed by more than one unique id.",
		}, []string{"domain", "check"}),
		lastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the metrics were written.",
		}, []string{"domain"}),
	}
}

// TextfilePublisher implements secondary.MetricsPublisher by rewriting a .prom file.
type TextfilePublisher struct {
	path string
	now  func() time.Time
}

// NewTextfilePublisher creates a publisher writing to path.
func NewTextfilePublisher(path string) *TextfilePublisher {
	return &TextfilePublisher{path: path, now: time.Now}
}

// Publish replaces the textfile with the metrics of report.
func (p *TextfilePublisher) Publish(domain string, report consistency.ConsistencyReport) error {
	reg := prometheus.NewRegistry()
	g := newGauges(reg)
	g.record(domain, report)
	g.lastRun.WithLabelValues(domain).Set(float64(p.now().Unix()))

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(p.path, reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", p.path, err)
	}
	return nil
}

func (g *gauges) record(domain string, report consistency.ConsistencyReport) {
	labels := make(map[string]string, len(report.Nodes))
	for _, n := range report.Nodes {
		labels[n.Address] = n.Label
	}

	for _, c := range report.Checks {
		g.checkOK.WithLabelValues(domain, c.Name, AnalysisItemCount).Set(flag(c.ItemCountOK))
		g.checkOK.WithLabelValues(domain, c.Name, AnalysisOverall).Set(flag(c.OK()))

		for _, n := range report.Nodes {
			v := c.Nodes[n.Address]
			node := labels[n.Address]
			g.nodeUnavailable.WithLabelValues(domain, c.Name, node).Set(flag(v.IsAbsent()))
			if x, ok := numeric(v); ok {
				g.nodeValue.WithLabelValues(domain, c.Name, node).Set(x)
			}
		}

		if c.Missing != nil {
			g.checkOK.WithLabelValues(domain, c.Name, AnalysisMissing).Set(flag(c.Missing.OK))
			for _, n := range report.Nodes {
				if keys, ok := c.Missing.MissingKeys[n.Address]; ok {
					g.missingEntries.WithLabelValues(domain, c.Name, labels[n.Address]).Set(float64(len(keys)))
				}
			}
		}
		if c.Duplicates != nil {
			g.checkOK.WithLabelValues(domain, c.Name, AnalysisDuplicates).Set(flag(c.Duplicates.OK))
			g.duplicateGroups.WithLabelValues(domain, c.Name).Set(float64(len(c.Duplicates.Groups)))
		}
	}
}

func numeric(v consistency.Value) (float64, bool) {
	if n, ok := v.Int(); ok {
		return float64(n), true
	}
	if b, ok := v.Bool(); ok {
		return flag(b), true
	}
	return 0, false
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Ensure TextfilePublisher implements the interface.
var _ secondary.MetricsPublisher = (*TextfilePublisher)(nil)
