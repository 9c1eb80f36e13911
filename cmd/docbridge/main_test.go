package main

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup writes a config for a local store whose root holds root/games.
func setup(t *testing.T) (configPath, games string) {
	t.Helper()
	dir := t.TempDir()
	games = filepath.Join(dir, "store", "root", "games")
	require.NoError(t, os.MkdirAll(filepath.Join(games, "Title"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(games, "Save01.lsd"), []byte("save"), 0o644))

	configPath = filepath.Join(dir, "config.yaml")
	content := "logging:\n  level: error\nstore:\n  type: local\n  local:\n    root: " + filepath.Join(dir, "store") + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath, games
}

func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestStatCommand(t *testing.T) {
	cfg, _ := setup(t)

	out, _, err := runCommand(t, "", "--config", cfg, "stat", "root%2Fgames%2FSave01.lsd")
	require.NoError(t, err)
	assert.Contains(t, out, "exists:     true")
	assert.Contains(t, out, "kind:       file")
	assert.Contains(t, out, "size:       4")

	out, _, err = runCommand(t, "", "--config", cfg, "stat", "root%2Fgames%2Fmissing")
	require.NoError(t, err)
	assert.Contains(t, out, "kind:       missing")
	assert.Contains(t, out, "size:       -1")
}

func TestPutAndCat(t *testing.T) {
	cfg, games := setup(t)
	id := "root%2Fgames%2FSave02.lsd"

	_, _, err := runCommand(t, "hello", "--config", cfg, "put", id)
	require.NoError(t, err)
	_, _, err = runCommand(t, " world", "--config", cfg, "put", "--append", id)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(games, "Save02.lsd"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	out, _, err := runCommand(t, "", "--config", cfg, "cat", id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, _, err = runCommand(t, "", "--config", cfg, "cat", "root%2Fgames%2Fmissing")
	assert.Error(t, err)
}

func TestPutMissingParent(t *testing.T) {
	cfg, _ := setup(t)

	_, _, err := runCommand(t, "x", "--config", cfg, "put", "root%2Fnowhere%2FSave.lsd")
	assert.Error(t, err)
}

func TestLsCommand(t *testing.T) {
	cfg, _ := setup(t)

	out, _, err := runCommand(t, "", "--config", cfg, "ls", "root%2Fgames")
	require.NoError(t, err)
	assert.Equal(t, "Save01.lsd\nTitle/\n", sortedLines(out))

	_, _, err = runCommand(t, "", "--config", cfg, "ls", "root%2Fgames%2FSave01.lsd")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge", "config.yaml")

	out, _, err := runCommand(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, _, err = runCommand(t, "", "config", "init", path)
	assert.Error(t, err)
	_, _, err = runCommand(t, "", "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestUsageErrors(t *testing.T) {
	cfg, _ := setup(t)

	_, stderr, err := runCommand(t, "")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Commands:")

	_, _, err = runCommand(t, "", "--config", cfg, "frobnicate")
	assert.ErrorIs(t, err, errUsage)
	_, _, err = runCommand(t, "", "--config", cfg, "stat")
	assert.ErrorIs(t, err, errUsage)
	_, _, err = runCommand(t, "", "--config", cfg, "mount", "root%2Fgames")
	assert.ErrorIs(t, err, errUsage)
}

func sortedLines(s string) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
