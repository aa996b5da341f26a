package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ChoreQuest/internal/pkg/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd, c := newRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	c.close()
	return buf.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.App.Timezone = "UTC"
	cfg.Storage.DBPath = filepath.Join(dir, "quest.db")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.WriteFile(path, cfg))
	return path
}

func TestVersionAndInitConfigSkipDatabase(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "(")

	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	out, err = runCLI(t, "init-config", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = runCLI(t, "init-config", "-o", path)
	assert.Error(t, err, "existing file should not be overwritten without --force")

	_, err = runCLI(t, "init-config", "-o", path, "--force")
	assert.NoError(t, err)
}

func TestClaimCompleteStatsFlow(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, "-c", cfgPath, "claim", "-u", "alice", "-t", "laundry", "--category", "epic")
	require.NoError(t, err)
	assert.Contains(t, out, "剩余 80/100")

	out, err = runCLI(t, "-c", cfgPath, "complete", "-u", "alice", "-t", "laundry", "--category", "epic", "--first-daily", "--skill", "domestic")
	require.NoError(t, err)
	assert.Contains(t, out, "合计: 55")

	out, err = runCLI(t, "-c", cfgPath, "complete", "-u", "alice", "-t", "laundry", "--category", "epic")
	require.NoError(t, err)
	assert.Contains(t, out, "已结算过")

	out, err = runCLI(t, "-c", cfgPath, "stats", "-u", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "体力: 80/100")
	assert.Contains(t, out, "积分: 55")
	assert.Contains(t, out, "domestic")

	out, err = runCLI(t, "-c", cfgPath, "stats", "-u", "alice", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_points": 55`)
}

func TestAdjustVerifyLeaderboardSweep(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, "-c", cfgPath, "leaderboard")
	require.NoError(t, err)
	assert.Contains(t, out, "还没有")

	out, err = runCLI(t, "-c", cfgPath, "adjust", "-u", "bob", "--amount", "20", "--type", "bonus", "--reason", "打扫车库")
	require.NoError(t, err)
	assert.Contains(t, out, "+20")

	_, err = runCLI(t, "-c", cfgPath, "adjust", "-u", "bob", "--amount", "-50")
	assert.Error(t, err)

	out, err = runCLI(t, "-c", cfgPath, "verify", "-u", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "一致：总积分 20")

	out, err = runCLI(t, "-c", cfgPath, "leaderboard", "-n", "3")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "bob"), out)

	out, err = runCLI(t, "-c", cfgPath, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "已重置 0 个")
}

func TestInvalidCategoryFails(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := runCLI(t, "-c", cfgPath, "claim", "-u", "alice", "-t", "x", "--category", "mythic")
	assert.Error(t, err)
}
