package wire

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ipacheck/internal/config"
	"github.com/example/ipacheck/internal/logging"
	"github.com/example/ipacheck/internal/ports/primary"
)

func TestAuditService_OpensHistoryOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history", "ipacheck.db")
	cfg := config.Defaults()
	cfg.Domain = "ipa.example.com"
	cfg.History.Path = path
	Configure(cfg, logging.Discard())
	t.Cleanup(func() { Close() })

	svc, err := AuditService()
	require.NoError(t, err)
	require.NotNil(t, svc)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "database created before any history call")

	runs, err := svc.ListRuns(context.Background(), primary.RunFilters{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = os.Stat(path)
	assert.NoError(t, err, "database not created by ListRuns")
}
