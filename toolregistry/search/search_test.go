package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/toolregistry/search"
)

func TestSearch_ReturnsRelevantHit(t *testing.T) {
	ix, err := search.NewIndex(search.DefaultCorpus)
	require.NoError(t, err)

	hits, err := ix.Search("reset password")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Reset password", hits[0]["title"])
}

func TestSearch_CapsAtFiveHits(t *testing.T) {
	ix, err := search.NewIndex(search.DefaultCorpus)
	require.NoError(t, err)

	hits, err := ix.Search("account")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), 5)
}

func TestBuiltinModule_RegistersAliases(t *testing.T) {
	mod, err := search.BuiltinModule()
	require.NoError(t, err)

	for _, name := range []string{"search_docs", "mock_search_docs"} {
		h, ok := mod[name]
		require.True(t, ok, name)
		res, err := h(map[string]any{"q": "billing"})
		require.NoError(t, err)
		assert.NotEmpty(t, res["hits"])
	}
}

func TestTool_MissingQueryArg(t *testing.T) {
	ix, err := search.NewIndex(search.DefaultCorpus)
	require.NoError(t, err)
	h := search.Tool(ix)

	_, err = h(map[string]any{})
	require.Error(t, err)
}
