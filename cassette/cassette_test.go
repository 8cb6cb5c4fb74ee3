package cassette_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/cassette"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_SkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.jsonl", "\n"+
		`{"tool":"search_docs","args":{"q":"reset password"},"ok":true,"result":{"hits":[]}}`+"\n\n")

	c, err := cassette.Load(path)
	require.NoError(t, err)
	require.Len(t, c.Entries, 1)
	assert.Equal(t, "search_docs", c.Entries[0].Tool)
}

func TestLoad_MalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.jsonl", "{not json}\n")

	_, err := cassette.Load(path)
	require.Error(t, err)
	var lerr *cassette.LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 1, lerr.LineNumber)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := cassette.Load(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}

func TestMatch_KeyOrderInvariant(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.jsonl",
		`{"tool":"search_docs","args":{"limit":5,"q":"reset password"},"ok":true,"result":{"hits":[{"title":"Reset password"}]}}`+"\n")
	c, err := cassette.Load(path)
	require.NoError(t, err)

	e, err := c.Match("search_docs", map[string]any{"q": "reset password", "limit": float64(5)})
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.OK)
}

func TestMatch_Mismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.jsonl",
		`{"tool":"search_docs","args":{"q":"reset password"},"ok":true,"result":{"hits":[]}}`+"\n")
	c, err := cassette.Load(path)
	require.NoError(t, err)

	_, err = c.Match("search_docs", map[string]any{"q": "change password"})
	require.Error(t, err)
	var diag *cassette.MismatchDiagnostic
	require.ErrorAs(t, err, &diag)
	assert.Equal(t, "search_docs", diag.RequestedTool)
	require.Len(t, diag.Candidates, 1)
	assert.Greater(t, diag.Candidates[0].Score, 0.0)
	assert.Contains(t, diag.Error(), "Requested tool: search_docs")
}

func TestMatch_NoSameToolFallsBackToAllEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.jsonl",
		`{"tool":"other_tool","args":{"q":"x"},"ok":true,"result":{}}`+"\n")
	c, err := cassette.Load(path)
	require.NoError(t, err)

	_, err = c.Match("search_docs", map[string]any{"q": "x"})
	var diag *cassette.MismatchDiagnostic
	require.ErrorAs(t, err, &diag)
	require.Len(t, diag.Candidates, 1)
	assert.Equal(t, "other_tool", diag.Candidates[0].Tool)
}

func TestWriter_AppendRedactsAndCanonicalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	w, err := cassette.NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(cassette.Entry{
		Tool: "search_docs",
		Args: map[string]any{"q": "x", "api_key": "sk-abcdefghijklmnopqrstuvwx"},
		OK:   true,
	}))
	require.NoError(t, w.Close())

	c, err := cassette.Load(path)
	require.NoError(t, err)
	require.Len(t, c.Entries, 1)
	assert.Equal(t, "[REDACTED]", c.Entries[0].Args["api_key"])
}

func TestWriter_TruncatesOnEachNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	w1, err := cassette.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w1.Append(cassette.Entry{Tool: "a", Args: map[string]any{}, OK: true}))
	require.NoError(t, w1.Close())

	w2, err := cassette.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w2.Append(cassette.Entry{Tool: "b", Args: map[string]any{}, OK: true}))
	require.NoError(t, w2.Close())

	c, err := cassette.Load(path)
	require.NoError(t, err)
	require.Len(t, c.Entries, 1)
	assert.Equal(t, "b", c.Entries[0].Tool)
}
