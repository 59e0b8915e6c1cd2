package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ipacheck/internal/config"
	"github.com/example/ipacheck/internal/core/consistency"
)

func TestApplyCheckFlags(t *testing.T) {
	cmd := CheckCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"-H", "ipa03.ipa.example.com,ipa04.ipa.example.com", "-W", "s3cret"}))

	cfg := config.Defaults()
	cfg.Domain = "ipa.example.com"
	cfg.Hosts = []string{"ipa01.ipa.example.com"}

	hosts, err := cmd.Flags().GetStringSlice("hosts")
	require.NoError(t, err)
	applyCheckFlags(cmd.Flags(), cfg, hosts, "ignored.example.com", "cn=ignored", "s3cret", "")

	assert.Equal(t, []string{"ipa03.ipa.example.com", "ipa04.ipa.example.com"}, cfg.Hosts)
	assert.Equal(t, "ipa.example.com", cfg.Domain, "unset flag must not override config")
	assert.Equal(t, "cn=Directory Manager", cfg.BindDN)
	assert.Equal(t, "s3cret", cfg.BindPassword)
	assert.Empty(t, cfg.Metrics.File)
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	printCatalog(&buf, consistency.Catalog())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(consistency.Catalog())+1)
	assert.Contains(t, lines[0], "ANALYSES")

	byName := map[string]string{}
	for _, line := range lines[1:] {
		byName[strings.Fields(line)[0]] = line
	}
	assert.Contains(t, byName["users"], "count,missing,duplicates")
	assert.Contains(t, byName["certs"], "count,missing")
	assert.NotContains(t, byName["certs"], "duplicates")
	assert.Contains(t, byName["ghosts"], "zero-tolerance")
	assert.Contains(t, byName["replicas"], "replication-codes")
	assert.True(t, strings.HasSuffix(byName["zones"], "count"))
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := RootCmd()
	for _, name := range []string{"init", "check", "runs", "show", "catalog"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
