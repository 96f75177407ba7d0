package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() { configFile = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osmraw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bbox: \"0,0,1,1\"\ndb_schema: fromfile\nmetrics_interval: 1m\n"), 0o644))

	out := execute(t, "contains", "--config", path, "--db-schema", "fromflag", "0.5", "0.5")

	assert.Equal(t, "true\n", out)
	assert.Equal(t, "0,0,1,1", cfg.BBox)
	assert.Equal(t, "fromflag", cfg.DBSchema)
	assert.Equal(t, "1m0s", cfg.MetricsInterval.String())

	out = execute(t, "contains", "2", "2")
	assert.Equal(t, "false\n", out)
}

func TestContainsPolygon(t *testing.T) {
	out := execute(t, "contains", "--polygon", "POLYGON ((0 0, 0 1, 1 1, 1 0, 0 0))", "0.5", "0.5")
	assert.Equal(t, "true\nwinding number: -1\n", out)
}

func TestSchemaPrint(t *testing.T) {
	out := execute(t, "schema", "--print", "--db-schema", "raw")

	assert.Contains(t, out, `CREATE SCHEMA IF NOT EXISTS "raw";`)
	assert.Contains(t, out, `CREATE UNLOGGED TABLE IF NOT EXISTS "raw"."relation_members"`)
	assert.Equal(t, strings.Count(out, ";\n"), strings.Count(out, ";"))
}
