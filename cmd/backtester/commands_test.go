package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WyckoffBacktester/internal/config"
	"WyckoffBacktester/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--provider", "synthetic",
		"--output", filepath.Join(dir, "reports"),
		"--log-level", "error",
	}
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := execute(t, "--days", "300", "run", "spy", "qqq", "--json")
	require.NoError(t, err)

	var batch model.BatchReport
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Contains(t, batch.Results, "SPY")
	assert.Contains(t, batch.Results, "QQQ")
	assert.Equal(t, 2, batch.Summary.SuccessfulBacktests)
}

func TestRunCommand_Table(t *testing.T) {
	out, err := execute(t, "--days", "300", "run", "SPY")
	require.NoError(t, err)
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "return")
}

func TestRunCommand_AllFail(t *testing.T) {
	_, err := execute(t, "--days", "10", "run", "SPY")
	assert.Error(t, err)
}

func TestOptimizeCommand(t *testing.T) {
	out, err := execute(t, "--days", "200", "optimize", "spy")
	require.NoError(t, err)
	assert.Contains(t, out, "SPY overall optimal stop-loss")

	_, err = execute(t, "optimize")
	assert.Error(t, err)
}

func TestInvalidFlags(t *testing.T) {
	_, err := execute(t, "--strategy", "martingale", "run")
	assert.Error(t, err)
}

func TestNewFetcher(t *testing.T) {
	cfg := loadDefaults(t)
	for provider, name := range map[string]string{"yahoo": "yahoo", "csv": "csv", "synthetic": "synthetic", "rest": "rest"} {
		cfg.DataSource.Provider = provider
		f, err := newFetcher(cfg)
		require.NoError(t, err)
		assert.Equal(t, name, f.Name())
	}
	cfg.DataSource.Provider = "ftp"
	_, err := newFetcher(cfg)
	assert.Error(t, err)
}

func TestNewRecorder_SQLite(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "nested", "runs.db")
	rec, err := newRecorder(cfg)
	require.NoError(t, err)
	defer rec.Close()
	_, err = os.Stat(cfg.Database.SQLitePath)
	assert.NoError(t, err)
}

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg
}
