// Package search implements the built-in search_docs tool backed by an
// in-memory github.com/blevesearch/bleve/v2 index seeded with a small fixture
// corpus, per SPEC_FULL.md §4.4.1. It is exercised only in record/live mode:
// replay mode never touches bleve at all. Grounded on the indexing/query
// shape in the retrieved ChamsBouzaiene-dodo/internal/indexer/bm25.go
// BM25Index, trimmed from on-disk code-chunk search (repo_id/file_path/lang
// facets, keyword-analyzed identifier fields) down to a single analyzed
// "body" field over a handful of seeded documents, since the harness fixture
// corpus is small and has no faceting requirements.
package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"goa.design/runledger/toolregistry"
)

// Doc is one seeded fixture document.
type Doc struct {
	Title string
	Body  string
}

// DefaultCorpus is the small fixture corpus seeded into the built-in index.
var DefaultCorpus = []Doc{
	{Title: "Reset password", Body: "To reset your password, open account settings and choose reset password. You will receive an email with a reset link."},
	{Title: "Change email address", Body: "To change the email address on your account, go to account settings and update your email, then confirm via the verification link."},
	{Title: "Billing and invoices", Body: "Invoices are available under billing history. Subscriptions renew monthly unless cancelled before the renewal date."},
	{Title: "Two-factor authentication", Body: "Enable two-factor authentication under security settings using an authenticator app or SMS code."},
	{Title: "Delete account", Body: "Deleting your account removes all data permanently. This action cannot be undone; export your data first."},
}

const maxHits = 5

// Index wraps an in-memory bleve index over the seeded corpus.
type Index struct {
	idx  bleve.Index
	byID map[string]Doc
}

// NewIndex builds a fresh in-memory index from docs.
func NewIndex(docs []Doc) (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("search: create in-memory index: %w", err)
	}
	byID := make(map[string]Doc, len(docs))
	for i, d := range docs {
		id := fmt.Sprintf("doc-%d", i)
		byID[id] = d
		if err := idx.Index(id, map[string]any{"title": d.Title, "body": d.Body}); err != nil {
			return nil, fmt.Errorf("search: index doc %q: %w", d.Title, err)
		}
	}
	return &Index{idx: idx, byID: byID}, nil
}

// Search runs q as a bleve query string and returns up to five hits ordered
// by descending score.
func (ix *Index) Search(q string) ([]map[string]any, error) {
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, maxHits, 0, false)
	req.Fields = []string{"title"}
	res, err := ix.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: query %q: %w", q, err)
	}

	hits := make([]map[string]any, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc, ok := ix.byID[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, map[string]any{
			"title":   doc.Title,
			"snippet": snippet(doc.Body),
			"score":   h.Score,
		})
	}
	return hits, nil
}

const snippetMaxChars = 160

func snippet(body string) string {
	if len(body) <= snippetMaxChars {
		return body
	}
	return body[:snippetMaxChars]
}

// Tool returns a toolregistry.Handler for "search_docs" backed by ix.
func Tool(ix *Index) toolregistry.Handler {
	return func(args map[string]any) (map[string]any, error) {
		q, _ := args["q"].(string)
		if q == "" {
			return nil, fmt.Errorf("search_docs: missing required arg %q", "q")
		}
		hits, err := ix.Search(q)
		if err != nil {
			return nil, err
		}
		return map[string]any{"hits": hits}, nil
	}
}

// BuiltinModule returns the built-in tool module: "search_docs" and its
// backward-compatible alias "mock_search_docs", both backed by a freshly
// seeded in-memory index over DefaultCorpus.
func BuiltinModule() (toolregistry.Module, error) {
	ix, err := NewIndex(DefaultCorpus)
	if err != nil {
		return nil, err
	}
	handler := Tool(ix)
	return toolregistry.Module{
		"search_docs":      handler,
		"mock_search_docs": handler,
	}, nil
}
