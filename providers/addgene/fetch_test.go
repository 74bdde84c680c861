package addgene

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meta-hand/config"
)

func newTestFetcher(baseURL string) *Fetcher {
	return NewFetcher(&config.Config{AddgeneBaseURL: baseURL}, zap.NewNop())
}

func TestLookupNumericDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/50465/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	result, err := f.Lookup(context.Background(), "50465")
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, server.URL+"/50465/", result.URL)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "50465", result.Results[0].CatalogNumber)
}

func TestLookupSearchFallsBackForUnknownNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/catalog/" {
			w.Write([]byte(`<a href="/99999/">pTest-Plasmid</a>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	result, err := f.Lookup(context.Background(), "4040")
	require.NoError(t, err)

	assert.True(t, result.Found)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "99999", result.Results[0].CatalogNumber)
	assert.Equal(t, "pTest-Plasmid", result.Results[0].Name)
}

func TestLookupSearchNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>No results found</body></html>"))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL)
	result, err := f.Lookup(context.Background(), "pNothing")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.Results)
}

func TestParseSearchPage(t *testing.T) {
	body := `
		<a href="/50465/">pAAV-hSyn-EGFP</a>
		<a href="/50465/">pAAV-hSyn-EGFP (duplicate)</a>
		[pCAG-GFP](/11150/)
		<a href="/about/">About us</a>
	`
	entries := parseSearchPage(body, "https://www.addgene.org")

	require.Len(t, entries, 2)
	assert.Equal(t, "50465", entries[0].CatalogNumber)
	assert.Equal(t, "pAAV-hSyn-EGFP", entries[0].Name)
	assert.Equal(t, "https://www.addgene.org/50465/", entries[0].URL)
	assert.Equal(t, "11150", entries[1].CatalogNumber)
	assert.Equal(t, "pCAG-GFP", entries[1].Name)
}

func TestParseSearchPageCapsEntries(t *testing.T) {
	body := ""
	for _, id := range []string{"10001", "10002", "10003", "10004", "10005", "10006", "10007"} {
		body += `<a href="/` + id + `/">Plasmid ` + id + `</a>`
	}
	entries := parseSearchPage(body, "https://www.addgene.org")
	assert.Len(t, entries, maxEntries)
}
