package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/example/ipacheck/internal/core/consistency"
	"github.com/example/ipacheck/internal/ctxutil"
	"github.com/example/ipacheck/internal/logging"
	"github.com/example/ipacheck/internal/ports/primary"
	"github.com/example/ipacheck/internal/ports/secondary"
)

// DefaultConcurrency is the number of nodes collected in parallel when unset.
const DefaultConcurrency = 8

// AuditOptions tunes an AuditServiceImpl.
type AuditOptions struct {
	Policy      consistency.ReplicationPolicy
	Concurrency int
}

// AuditServiceImpl implements the AuditService interface.
type AuditServiceImpl struct {
	connector secondary.DirectoryConnector
	discovery secondary.NodeDiscovery
	runRepo   secondary.RunRepository
	metrics   secondary.MetricsPublisher
	opts      AuditOptions
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewAuditService creates a new AuditService with injected dependencies.
// discovery, runRepo and metrics may be nil; the matching features are then unavailable.
func NewAuditService(
	connector secondary.DirectoryConnector,
	discovery secondary.NodeDiscovery,
	runRepo secondary.RunRepository,
	metrics secondary.MetricsPublisher,
	opts AuditOptions,
	logger logrus.FieldLogger,
) *AuditServiceImpl {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if len(opts.Policy.OKCodes) == 0 {
		opts.Policy = consistency.DefaultReplicationPolicy()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AuditServiceImpl{
		connector: connector,
		discovery: discovery,
		runRepo:   runRepo,
		metrics:   metrics,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// RunAudit collects, evaluates and optionally stores one audit run.
func (s *AuditServiceImpl) RunAudit(ctx context.Context, req primary.AuditRequest) (*primary.AuditRun, error) {
	catalog, err := selectChecks(req.Checks)
	if err != nil {
		return nil, err
	}

	hosts, err := s.resolveHosts(ctx, req)
	if err != nil {
		return nil, err
	}

	run := &primary.AuditRun{
		Domain:    req.Domain,
		StartedAt: s.now().UTC().Format(time.RFC3339),
	}
	log := logging.FromContext(ctx, s.logger)
	log.WithField("nodes", len(hosts)).Info("starting audit")

	nodes, snapshot, err := s.collect(ctx, hosts, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to collect node data: %w", err)
	}

	report, evalErr := consistency.Assemble(catalog, nodes, snapshot, s.opts.Policy)
	if evalErr != nil {
		log.WithError(evalErr).Warn("some checks could not be evaluated")
		for _, c := range report.Checks {
			for _, e := range c.Errors {
				run.EvaluationErrors = append(run.EvaluationErrors, c.Name+": "+e)
			}
		}
	}
	run.Report = report
	run.FinishedAt = s.now().UTC().Format(time.RFC3339)

	if req.Save && s.runRepo != nil {
		if err := s.save(ctx, run); err != nil {
			log.WithError(err).Warn("run not stored in history")
		} else {
			log = logging.FromContext(ctxutil.WithRunID(ctx, run.ID), s.logger)
		}
	}

	if s.metrics != nil {
		if err := s.metrics.Publish(req.Domain, report); err != nil {
			log.WithError(err).Warn("failed to publish metrics")
		}
	}

	log.WithFields(logrus.Fields{"ok": report.OK(), "failed": strings.Join(report.Failed(), ",")}).Info("audit finished")
	return run, nil
}

// GetRun retrieves a stored run by ID.
func (s *AuditServiceImpl) GetRun(ctx context.Context, runID string) (*primary.AuditRun, error) {
	if s.runRepo == nil {
		return nil, fmt.Errorf("run history is not configured")
	}
	record, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	var report consistency.ConsistencyReport
	if err := json.Unmarshal([]byte(record.ReportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report of %s: %w", runID, err)
	}

	run := &primary.AuditRun{
		ID:         record.ID,
		Domain:     record.Domain,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
		Report:     report,
	}
	for _, c := range record.Checks {
		if c.Errors != "" {
			run.EvaluationErrors = append(run.EvaluationErrors, c.CheckName+": "+c.Errors)
		}
	}
	return run, nil
}

// ListRuns lists stored runs, newest first.
func (s *AuditServiceImpl) ListRuns(ctx context.Context, filters primary.RunFilters) ([]*primary.RunSummary, error) {
	if s.runRepo == nil {
		return nil, fmt.Errorf("run history is not configured")
	}
	records, err := s.runRepo.List(ctx, secondary.RunFilters{
		Domain:     filters.Domain,
		FailedOnly: filters.FailedOnly,
		Limit:      filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	summaries := make([]*primary.RunSummary, 0, len(records))
	for _, r := range records {
		summary := &primary.RunSummary{
			ID:         r.ID,
			Domain:     r.Domain,
			NodeCount:  r.NodeCount,
			OK:         r.OK,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		}
		for _, c := range r.Checks {
			if !checkRecordOK(c) {
				summary.Failed = append(summary.Failed, c.CheckName)
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *AuditServiceImpl) resolveHosts(ctx context.Context, req primary.AuditRequest) ([]string, error) {
	hosts := req.Hosts
	if len(hosts) == 0 {
		if s.discovery == nil {
			return nil, fmt.Errorf("no hosts given and no node discovery configured")
		}
		if req.Domain == "" {
			return nil, fmt.Errorf("domain is required to discover nodes")
		}
		discovered, err := s.discovery.Discover(ctx, req.Domain)
		if err != nil {
			return nil, fmt.Errorf("failed to discover nodes for %s: %w", req.Domain, err)
		}
		if len(discovered) == 0 {
			return nil, fmt.Errorf("no nodes found for %s", req.Domain)
		}
		hosts = discovered
	}
	return ValidateHosts(hosts)
}

// ValidateHosts rejects empty names and names containing whitespace, and drops repeats.
func ValidateHosts(hosts []string) ([]string, error) {
	seen := make(map[string]bool, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h == "" || strings.ContainsAny(h, " \t\n") {
			return nil, fmt.Errorf("invalid host name %q", h)
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out, nil
}

type nodeOutcome struct {
	label   string
	results map[string]consistency.NodeResult
}

// collect queries every node concurrently. Each goroutine owns one slot of
// outcomes, so no locking is needed; failures become Unavailable results.
func (s *AuditServiceImpl) collect(ctx context.Context, hosts []string, catalog []consistency.CheckSpec) ([]consistency.NodeInfo, consistency.Snapshot, error) {
	outcomes := make([]nodeOutcome, len(hosts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, host := range hosts {
		g.Go(func() error {
			out, err := s.collectNode(gctx, host, catalog)
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	nodes := make([]consistency.NodeInfo, len(hosts))
	snapshot := consistency.Snapshot{}
	for i, host := range hosts {
		nodes[i] = consistency.NodeInfo{Address: host, Label: outcomes[i].label}
		for check, res := range outcomes[i].results {
			snapshot.Put(check, host, res)
		}
	}
	return nodes, snapshot, nil
}

func (s *AuditServiceImpl) collectNode(ctx context.Context, host string, catalog []consistency.CheckSpec) (nodeOutcome, error) {
	log := logging.FromContext(ctx, s.logger).WithField("node", host)
	out := nodeOutcome{results: make(map[string]consistency.NodeResult, len(catalog))}

	session, err := s.connector.Connect(ctx, host)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		log.WithError(err).Warn("node unreachable")
		out.label = s.connector.FallbackLabel(host)
		for _, spec := range catalog {
			out.results[spec.Name] = consistency.Unavailable{Reason: err.Error()}
		}
		return out, nil
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Debug("failed to close session")
		}
	}()
	out.label = session.Label()

	for _, spec := range catalog {
		res, err := session.Collect(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.WithError(err).WithField("check", spec.Name).Warn("query failed")
			res = consistency.Unavailable{Reason: err.Error()}
		}
		out.results[spec.Name] = res
		log.WithFields(logrus.Fields{"check": spec.Name, "value": consistency.Summarize(res).String()}).Debug("collected")
	}
	return out, nil
}

// save stores run under a freshly allocated ID. run.ID is set only once the run is stored.
func (s *AuditServiceImpl) save(ctx context.Context, run *primary.AuditRun) error {
	data, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	id, err := s.runRepo.GetNextID(ctx)
	if err != nil {
		return fmt.Errorf("failed to allocate run id: %w", err)
	}

	record := &secondary.RunRecord{
		ID:         id,
		Domain:     run.Domain,
		NodeCount:  len(run.Report.Nodes),
		OK:         run.Report.OK(),
		ReportJSON: string(data),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	for _, c := range run.Report.Checks {
		record.Checks = append(record.Checks, checkRecord(id, c))
	}

	if err := s.runRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to save run %s: %w", id, err)
	}
	run.ID = id
	return nil
}

func checkRecord(runID string, c consistency.CheckReport) *secondary.CheckResultRecord {
	rec := &secondary.CheckResultRecord{
		RunID:       runID,
		CheckName:   c.Name,
		DisplayName: c.DisplayName,
		ItemCountOK: c.ItemCountOK,
		Errors:      strings.Join(c.Errors, "; "),
	}
	if c.Missing != nil {
		ok := c.Missing.OK
		rec.MissingOK = &ok
	}
	if c.Duplicates != nil {
		ok := c.Duplicates.OK
		rec.DuplicatesOK = &ok
	}
	return rec
}

func checkRecordOK(c *secondary.CheckResultRecord) bool {
	if !c.ItemCountOK || c.Errors != "" {
		return false
	}
	if c.MissingOK != nil && !*c.MissingOK {
		return false
	}
	if c.DuplicatesOK != nil && !*c.DuplicatesOK {
		return false
	}
	return true
}

// selectChecks returns the catalog restricted to names, in catalog order.
func selectChecks(names []string) ([]consistency.CheckSpec, error) {
	catalog := consistency.Catalog()
	if len(names) == 0 {
		return catalog, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := consistency.Lookup(n); !ok {
			return nil, fmt.Errorf("unknown check %q", n)
		}
		wanted[n] = true
	}
	selected := make([]consistency.CheckSpec, 0, len(wanted))
	for _, spec := range catalog {
		if wanted[spec.Name] {
			selected = append(selected, spec)
		}
	}
	return selected, nil
}

// Ensure AuditServiceImpl implements the interface
var _ primary.AuditService = (*AuditServiceImpl)(nil)
