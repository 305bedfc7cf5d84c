package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDocuments_WalksTextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "deploys.md"), "# Deploys\n\nDeploys run through CI.")
	writeFile(t, filepath.Join(dir, "oncall.txt"), "Alerts page the on-call engineer.")
	writeFile(t, filepath.Join(dir, "nested", "rollback.markdown"), "Rollbacks revert the canary.")
	writeFile(t, filepath.Join(dir, "ignored.json"), `{"not": "a document"}`)

	docs, err := loadDocuments(dir)

	require.NoError(t, err)
	require.Len(t, docs, 3)

	byID := map[string]string{}
	for _, d := range docs {
		byID[d.SourceID] = d.Title
	}
	assert.Equal(t, "deploys", byID["deploys.md"])
	assert.Equal(t, "oncall", byID["oncall.txt"])
	assert.Equal(t, "rollback", byID["nested/rollback.markdown"])
}

func TestLoadDocuments_EmptyDir(t *testing.T) {
	docs, err := loadDocuments(t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadDocuments_MissingDir(t *testing.T) {
	_, err := loadDocuments(filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, err)
}

func TestSeedTarget(t *testing.T) {
	assert.Equal(t, "docs", seedTarget(nil))
	assert.Equal(t, "wiki", seedTarget([]string{"wiki", "docs"}))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "a b c", firstLine("a\n b\t\tc", 50))
	assert.Equal(t, "abcde...", firstLine("abcdefgh", 5))
	assert.Equal(t, "short", firstLine("short", 5))
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"ask", "search", "collections", "seed"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}
