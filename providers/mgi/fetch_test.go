package mgi

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

func TestLookupFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quicksearch/summary", r.URL.Path)
		assert.Equal(t, "exactPhrase", r.URL.Query().Get("queryType"))
		assert.Equal(t, "Ai14", r.URL.Query().Get("query"))
		w.Write([]byte("<html>results</html>"))
	}))
	defer server.Close()

	f := NewFetcher(&config.Config{MGIBaseURL: server.URL}, zap.NewNop())
	result, err := f.Lookup(context.Background(), "Ai14")
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Contains(t, result.URL, "query=Ai14")
}

func TestLookupUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(&config.Config{MGIBaseURL: server.URL}, zap.NewNop())
	result, err := f.Lookup(context.Background(), "Ai14")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.URL)
}
