package ncbigene

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

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "gene", r.URL.Query().Get("db"))
			w.Write([]byte(`{"esearchresult":{"count":"1","idlist":["72961"]}}`))
		case "/esummary.fcgi":
			assert.Equal(t, "72961", r.URL.Query().Get("id"))
			w.Write([]byte(`{"result":{"uids":["72961"],"72961":{"uid":"72961","name":"Slc17a7","description":"solute carrier family 17 member 7","organism":{"scientificname":"Mus musculus"}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLookupFindsGene(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	f := NewFetcher(&config.Config{NCBIBaseURL: server.URL}, zap.NewNop())
	result, err := f.Lookup(context.Background(), "Slc17a7")
	require.NoError(t, err)

	assert.True(t, result.Found)
	require.Len(t, result.Results, 1)
	entry := result.Results[0]
	assert.Equal(t, "72961", entry.GeneID)
	assert.Equal(t, "Slc17a7", entry.Symbol)
	assert.Equal(t, "Mus musculus", entry.Organism)
	assert.Equal(t, "https://www.ncbi.nlm.nih.gov/gene/72961", entry.URL)
}

func TestLookupNoHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"esearchresult":{"count":"0","idlist":[]}}`))
	}))
	defer server.Close()

	f := NewFetcher(&config.Config{NCBIBaseURL: server.URL}, zap.NewNop())
	result, err := f.Lookup(context.Background(), "Nonexistent9000")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.Results)
}

func TestLookupServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewFetcher(&config.Config{NCBIBaseURL: server.URL}, zap.NewNop())
	_, err := f.Lookup(context.Background(), "Slc17a7")
	assert.Error(t, err)
}
