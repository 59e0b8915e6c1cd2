package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/ipacheck/internal/core/consistency"
	"github.com/example/ipacheck/internal/ports/primary"
	"github.com/example/ipacheck/internal/ports/secondary"
)

// mockConnector implements secondary.DirectoryConnector for testing.
type mockConnector struct {
	mu       sync.Mutex
	data     map[string]map[string]consistency.NodeResult // host -> check -> result
	down     map[string]error
	queryErr map[string]error // check -> error
	closed   []string
}

func newMockConnector() *mockConnector {
	return &mockConnector{
		data:     map[string]map[string]consistency.NodeResult{},
		down:     map[string]error{},
		queryErr: map[string]error{},
	}
}

func (m *mockConnector) Connect(ctx context.Context, host string) (secondary.DirectorySession, error) {
	if err, ok := m.down[host]; ok {
		return nil, err
	}
	return &mockSession{parent: m, host: host}, nil
}

func (m *mockConnector) FallbackLabel(host string) string {
	return strings.SplitN(host, ".", 2)[0]
}

type mockSession struct {
	parent *mockConnector
	host   string
}

func (s *mockSession) Label() string { return "label-" + s.host }

func (s *mockSession) Collect(ctx context.Context, spec consistency.CheckSpec) (consistency.NodeResult, error) {
	if err, ok := s.parent.queryErr[spec.Name]; ok {
		return nil, err
	}
	if res, ok := s.parent.data[s.host][spec.Name]; ok {
		return res, nil
	}
	switch spec.Name {
	case "conflicts", "ghosts":
		return consistency.ScalarResult{Value: consistency.IntValue(0)}, nil
	case "bind":
		return consistency.ScalarResult{Value: consistency.TextValue("OFF")}, nil
	case "msdcs":
		return consistency.ScalarResult{Value: consistency.BoolValue(false)}, nil
	case "replicas":
		return consistency.ScalarResult{Value: consistency.TextValue("peer 0")}, nil
	}
	return consistency.ListResult{}, nil
}

func (s *mockSession) Close() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.closed = append(s.parent.closed, s.host)
	return nil
}

// mockDiscovery implements secondary.NodeDiscovery for testing.
type mockDiscovery struct {
	hosts []string
	err   error
}

func (m *mockDiscovery) Discover(ctx context.Context, domain string) ([]string, error) {
	return m.hosts, m.err
}

// mockRunRepository implements secondary.RunRepository for testing.
type mockRunRepository struct {
	runs      map[string]*secondary.RunRecord
	order     []string
	nextID    int
	createErr error
}

func newMockRunRepository() *mockRunRepository {
	return &mockRunRepository{runs: map[string]*secondary.RunRecord{}, nextID: 1}
}

func (m *mockRunRepository) Create(ctx context.Context, run *secondary.RunRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return nil
}

func (m *mockRunRepository) GetByID(ctx context.Context, id string) (*secondary.RunRecord, error) {
	if r, ok := m.runs[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("run not found: %s", id)
}

func (m *mockRunRepository) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	var out []*secondary.RunRecord
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.runs[m.order[i]]
		if filters.FailedOnly && r.OK {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRunRepository) GetNextID(ctx context.Context) (string, error) {
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("RUN-%03d", id), nil
}

// mockMetrics implements secondary.MetricsPublisher for testing.
type mockMetrics struct {
	published []consistency.ConsistencyReport
	err       error
}

func (m *mockMetrics) Publish(domain string, report consistency.ConsistencyReport) error {
	m.published = append(m.published, report)
	return m.err
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 1, 19, 10, 0, 0, 0, time.UTC) }
}

func newTestService(conn *mockConnector, disc secondary.NodeDiscovery, repo secondary.RunRepository, metrics secondary.MetricsPublisher) *AuditServiceImpl {
	svc := NewAuditService(conn, disc, repo, metrics, AuditOptions{Concurrency: 2}, nil)
	svc.now = fixedClock()
	return svc
}

func users(keys ...string) consistency.ListResult {
	var recs []consistency.Record
	for i, k := range keys {
		recs = append(recs, consistency.NewRecord(k, map[string][]string{
			"ipaUniqueID": {fmt.Sprintf("U%d-%s", i, k)},
		}))
	}
	return consistency.ListResult{Records: recs}
}

func TestRunAudit_AllHealthy(t *testing.T) {
	conn := newMockConnector()
	svc := newTestService(conn, nil, nil, nil)

	run, err := svc.RunAudit(context.Background(), primary.AuditRequest{
		Domain: "example.com",
		Hosts:  []string{"ipa01.example.com", "ipa02.example.com", "ipa03.example.com"},
	})
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}

	if !run.Report.OK() {
		t.Errorf("expected healthy report, failed checks: %v", run.Report.Failed())
	}
	if run.ID != "" {
		t.Errorf("ID = %q, want empty for unsaved run", run.ID)
	}
	if len(run.Report.Nodes) != 3 {
		t.Fatalf("Nodes = %d, want 3", len(run.Report.Nodes))
	}
	if run.Report.Nodes[1].Label != "label-ipa02.example.com" {
		t.Errorf("Label = %q", run.Report.Nodes[1].Label)
	}
	if len(conn.closed) != 3 {
		t.Errorf("closed %d sessions, want 3", len(conn.closed))
	}
	if run.StartedAt != "2026-01-19T10:00:00Z" {
		t.Errorf("StartedAt = %q", run.StartedAt)
	}
}

func TestRunAudit_UnreachableNodeDoesNotAbort(t *testing.T) {
	conn := newMockConnector()
	conn.down["ipa02.example.com"] = errors.New("connection refused")
	svc := newTestService(conn, nil, nil, nil)

	run, err := svc.RunAudit(context.Background(), primary.AuditRequest{
		Hosts: []string{"ipa01.example.com", "ipa02.example.com"},
	})
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}

	if run.Report.Nodes[1].Label != "ipa02" {
		t.Errorf("fallback label = %q, want ipa02", run.Report.Nodes[1].Label)
	}
	for _, c := range run.Report.Checks {
		if c.ItemCountOK {
			t.Errorf("check %s passed with an unreachable node", c.Name)
		}
		if !c.Nodes["ipa02.example.com"].IsAbsent() {
			t.Errorf("check %s: unreachable node has a value", c.Name)
		}
	}
}

func TestRunAudit_QueryFailureMarksPairUnavailable(t *testing.T) {
	conn := newMockConnector()
	conn.queryErr["certs"] = errors.New("no such object")
	svc := newTestService(conn, nil, nil, nil)

	run, err := svc.RunAudit(context.Background(), primary.AuditRequest{
		Hosts: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}

	failed := run.Report.Failed()
	if len(failed) != 1 || failed[0] != "certs" {
		t.Errorf("Failed() = %v, want [certs]", failed)
	}
}

func TestRunAudit_MissingAndDuplicates(t *testing.T) {
	conn := newMockConnector()
	conn.data["a"] = map[string]consistency.NodeResult{"users": users("uid=alice", "uid=bob")}
	conn.data["b"] = map[string]consistency.NodeResult{"users": users("uid=alice")}
	svc := newTestService(conn, nil, nil, nil)

	run, err := svc.RunAudit(context.Background(), primary.AuditRequest{Hosts: []string{"a", "b"}, Checks: []string{"users"}})
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}

	if len(run.Report.Checks) != 1 {
		t.Fatalf("Checks = %d, want 1", len(run.Report.Checks))
	}
	c := run.Report.Checks[0]
	if c.ItemCountOK {
		t.Error("counts differ, expected ItemCountOK=false")
	}
	if got := c.Missing.MissingKeys["b"]; len(got) != 1 || got[0] != "uid=bob" {
		t.Errorf("MissingKeys[b] = %v, want [uid=bob]", got)
	}
	if !c.Duplicates.OK {
		t.Errorf("unexpected duplicate groups: %v", c.Duplicates.Groups)
	}
}

func TestRunAudit_EvaluationErrorsAreSurfaced(t *testing.T) {
	conn := newMockConnector()
	conn.data["a"] = map[string]consistency.NodeResult{
		"hbac": consistency.ListResult{Records: []consistency.Record{consistency.NewRecord("cn=r", map[string][]string{"cn": {"r"}})}},
	}
	svc := newTestService(conn, nil, nil, nil)

	run, err := svc.RunAudit(context.Background(), primary.AuditRequest{Hosts: []string{"a"}, Checks: []string{"hbac"}})
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}
	if len(run.EvaluationErrors) != 1 || !strings.HasPrefix(run.EvaluationErrors[0], "hbac: ") {
		t.Errorf("EvaluationErrors = %v", run.EvaluationErrors)
	}
	if run.Report.OK() {
		t.Error("report passed despite evaluator error")
	}
}

func TestRunAudit_Discovery(t *testing.T) {
	t.Run("uses discovered hosts", func(t *testing.T) {
		svc := newTestService(newMockConnector(), &mockDiscovery{hosts: []string{"x.example.com", "y.example.com"}}, nil, nil)
		run, err := svc.RunAudit(context.Background(), primary.AuditRequest{Domain: "example.com"})
		if err != nil {
			t.Fatalf("RunAudit failed: %v", err)
		}
		if got := run.Report.NodeAddresses(); len(got) != 2 || got[0] != "x.example.com" {
			t.Errorf("NodeAddresses() = %v", got)
		}
	})

	t.Run("no discovery configured", func(t *testing.T) {
		svc := newTestService(newMockConnector(), nil, nil, nil)
		if _, err := svc.RunAudit(context.Background(), primary.AuditRequest{Domain: "example.com"}); err == nil {
			t.Fatal("expected error without hosts or discovery")
		}
	})

	t.Run("nothing discovered", func(t *testing.T) {
		svc := newTestService(newMockConnector(), &mockDiscovery{}, nil, nil)
		_, err := svc.RunAudit(context.Background(), primary.AuditRequest{Domain: "example.com"})
		if err == nil || !strings.Contains(err.Error(), "no nodes found") {
			t.Fatalf("err = %v, want no nodes found", err)
		}
	})
}

func TestRunAudit_RejectsBadInput(t *testing.T) {
	svc := newTestService(newMockConnector(), nil, nil, nil)

	if _, err := svc.RunAudit(context.Background(), primary.AuditRequest{Hosts: []string{"ipa 01"}}); err == nil {
		t.Error("expected error for host with space")
	}
	if _, err := svc.RunAudit(context.Background(), primary.AuditRequest{Hosts: []string{"a"}, Checks: []string{"nope"}}); err == nil {
		t.Error("expected error for unknown check")
	}
}

func TestRunAudit_SaveAndReadBack(t *testing.T) {
	conn := newMockConnector()
	conn.data["b"] = map[string]consistency.NodeResult{"ghosts": consistency.ScalarResult{Value: consistency.IntValue(1)}}
	repo := newMockRunRepository()
	metrics := &mockMetrics{err: errors.New("disk full")}
	svc := newTestService(conn, nil, repo, metrics)
	ctx := context.Background()

	run, err := svc.RunAudit(ctx, primary.AuditRequest{Domain: "example.com", Hosts: []string{"a", "b"}, Save: true})
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}
	if run.ID != "RUN-001" {
		t.Errorf("ID = %q, want RUN-001", run.ID)
	}
	if len(metrics.published) != 1 {
		t.Errorf("published %d reports, want 1", len(metrics.published))
	}

	stored, err := svc.GetRun(ctx, "RUN-001")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	ghosts, ok := stored.Report.Check("ghosts")
	if !ok || ghosts.ItemCountOK {
		t.Errorf("stored ghosts check = %+v", ghosts)
	}
	n, _ := ghosts.Nodes["b"].Int()
	if n != 1 {
		t.Errorf("stored ghosts on b = %d, want 1", n)
	}

	summaries, err := svc.ListRuns(ctx, primary.RunFilters{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].OK {
		t.Fatalf("summaries = %+v", summaries)
	}
	if len(summaries[0].Failed) != 1 || summaries[0].Failed[0] != "ghosts" {
		t.Errorf("Failed = %v, want [ghosts]", summaries[0].Failed)
	}
}

func TestRunAudit_SaveFailureKeepsReport(t *testing.T) {
	conn := newMockConnector()
	conn.data["b"] = map[string]consistency.NodeResult{"ghosts": consistency.ScalarResult{Value: consistency.IntValue(1)}}
	repo := newMockRunRepository()
	repo.createErr = errors.New("UNIQUE constraint failed: audit_runs.id")
	metrics := &mockMetrics{}
	svc := newTestService(conn, nil, repo, metrics)

	run, err := svc.RunAudit(context.Background(), primary.AuditRequest{Domain: "example.com", Hosts: []string{"a", "b"}, Save: true})
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}
	if run == nil {
		t.Fatal("run is nil")
	}
	if run.ID != "" {
		t.Errorf("ID = %q, want empty for a run that was not stored", run.ID)
	}
	if len(run.Report.Checks) == 0 || len(run.Report.Nodes) != 2 {
		t.Fatalf("report = %+v", run.Report)
	}
	ghosts, ok := run.Report.Check("ghosts")
	if !ok || ghosts.ItemCountOK {
		t.Errorf("ghosts check = %+v, want failing", ghosts)
	}
	if run.FinishedAt == "" {
		t.Error("FinishedAt not set")
	}
	if len(metrics.published) != 1 {
		t.Errorf("published %d reports, want 1", len(metrics.published))
	}
	if len(repo.runs) != 0 {
		t.Errorf("stored %d runs, want 0", len(repo.runs))
	}
}

func TestRunAudit_CancelledContext(t *testing.T) {
	svc := newTestService(newMockConnector(), nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := svc.connector.(*mockConnector)
	conn.queryErr["users"] = context.Canceled

	if _, err := svc.RunAudit(ctx, primary.AuditRequest{Hosts: []string{"a"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestValidateHosts(t *testing.T) {
	got, err := ValidateHosts([]string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("ValidateHosts failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ValidateHosts() = %v, want [a b]", got)
	}
	if _, err := ValidateHosts([]string{""}); err == nil {
		t.Error("expected error for empty host")
	}
}
