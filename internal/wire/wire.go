// Package wire provides dependency injection for the ipacheck application.
// It creates singleton services with lazy initialization.
package wire

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	cliadapter "github.com/example/ipacheck/internal/adapters/cli"
	"github.com/example/ipacheck/internal/adapters/discovery"
	ldapadapter "github.com/example/ipacheck/internal/adapters/ldap"
	"github.com/example/ipacheck/internal/adapters/metrics"
	"github.com/example/ipacheck/internal/adapters/sqlite"
	"github.com/example/ipacheck/internal/app"
	"github.com/example/ipacheck/internal/config"
	"github.com/example/ipacheck/internal/core/consistency"
	"github.com/example/ipacheck/internal/db"
	"github.com/example/ipacheck/internal/logging"
	"github.com/example/ipacheck/internal/ports/primary"
	"github.com/example/ipacheck/internal/ports/secondary"
)

var (
	settings     *config.Config
	logger       logrus.FieldLogger = logging.Discard()
	auditService primary.AuditService
	initErr      error
	once         sync.Once
)

// Configure sets the configuration and logger used to build services.
// It must be called before the first service is requested.
func Configure(cfg *config.Config, log logrus.FieldLogger) {
	settings = cfg
	if log != nil {
		logger = log
	}
}

// AuditService returns the singleton AuditService instance.
func AuditService() (primary.AuditService, error) {
	once.Do(initServices)
	return auditService, initErr
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cfg := settings
	if cfg == nil {
		cfg = config.Defaults()
	}

	connector := ldapadapter.NewConnector(ldapadapter.Options{
		Domain:        cfg.Domain,
		BindDN:        cfg.BindDN,
		BindPassword:  cfg.BindPassword,
		Timeout:       cfg.Timeout,
		SkipTLSVerify: cfg.SkipTLSVerify,
	})

	nodeDiscovery, err := newDiscovery(cfg)
	if err != nil {
		initErr = err
		return
	}

	if cfg.History.Path != "" {
		db.SetPath(cfg.History.Path)
	}
	runRepo := sqlite.NewLazyRunRepository(db.GetDB)

	var publisher secondary.MetricsPublisher
	if cfg.Metrics.File != "" {
		publisher = metrics.NewTextfilePublisher(cfg.Metrics.File)
	}

	auditService = app.NewAuditService(connector, nodeDiscovery, runRepo, publisher, app.AuditOptions{
		Policy:      consistency.ReplicationPolicy{OKCodes: cfg.ReplicationOKCodes},
		Concurrency: cfg.Concurrency,
	}, logger)
}

func newDiscovery(cfg *config.Config) (secondary.NodeDiscovery, error) {
	switch cfg.Discovery.Method {
	case "", config.DiscoveryDNS:
		return discovery.NewDNSDiscovery(nil), nil
	case config.DiscoveryConsul:
		d, err := discovery.NewConsulDiscovery(discovery.ConsulOptions{
			Address:    cfg.Discovery.Consul.Address,
			Service:    cfg.Discovery.Consul.Service,
			Tag:        cfg.Discovery.Consul.Tag,
			Datacenter: cfg.Discovery.Consul.Datacenter,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown discovery method %q", cfg.Discovery.Method)
}

// ReportAdapterWithOutput returns a new ReportAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func ReportAdapterWithOutput(out io.Writer) (*cliadapter.ReportAdapter, error) {
	svc, err := AuditService()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewReportAdapter(svc, out), nil
}

// Close releases the database connection.
func Close() error {
	return db.Close()
}
