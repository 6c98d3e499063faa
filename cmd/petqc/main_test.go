package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petqc/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		runner = nil
		closeStore()
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestIntegratedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "pet_3d.csv"), integratedPath(filepath.Join("out", "pet_4d.csv")))
	assert.Equal(t, "pet_3d.csv", integratedPath("pet.csv"))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petqc.yaml")
	out, err := execute(t, "config", "init", path, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().QC.NormalMagnitude, cfg.QC.NormalMagnitude)
}

func TestConfigInitOverwritesBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petqc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qc: [unterminated"), 0644))
	_, err := config.LoadConfig(path)
	require.Error(t, err)

	_, err = execute(t, "config", "init", path, "--config", path)
	require.NoError(t, err)

	_, err = config.LoadConfig(path)
	assert.NoError(t, err)
}

func TestTagCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	c := config.DefaultConfig()
	c.Output.Dir = filepath.Join(dir, "stats")
	c.Output.CacheDir = filepath.Join(dir, "cache")
	require.NoError(t, config.SaveConfig(c, cfgPath))

	raw := filepath.Join(dir, "sub-01_acq-fdg_pet.csv")
	require.NoError(t, os.WriteFile(raw, []byte("3,1,0,10,1,12,8,100\n"), 0644))
	metrics := filepath.Join(dir, "petqc.prom")

	out, err := execute(t, "tag", raw, "--config", cfgPath, "--sub", "01", "--source", raw, "--metrics-file", metrics)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Output.Dir, "sub-01_acq-fdg_pet_3d.csv"), strings.TrimSpace(out))

	data, err := os.ReadFile(filepath.Join(c.Output.Dir, "sub-01_acq-fdg_pet_3d.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "results,01,NA,NA,NA,fdg,NA,1,mean,10,0")
	assert.FileExists(t, metrics)
}

func TestTagCommandRequiresInput(t *testing.T) {
	_, err := execute(t, "tag", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
