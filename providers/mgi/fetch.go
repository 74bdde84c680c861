package mgi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"meta-hand/config"
	"meta-hand/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher kapselt die Logik für die Mouse Genome Informatics Quicksearch.
// MGI hat keine stabile JSON-API; der Lookup ist ein Existenz-Check auf der
// Quicksearch-Seite, als Treffer wird die Such-URL zurückgegeben.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen MGI-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen der Registry zurück.
func (f *Fetcher) Name() string {
	return models.RegistryMGI
}

// Lookup prüft, ob die Quicksearch für den Term erreichbar ist.
func (f *Fetcher) Lookup(ctx context.Context, query string) (*models.RegistryResult, error) {
	searchURL := fmt.Sprintf("%s/quicksearch/summary?queryType=exactPhrase&query=%s",
		f.Config.MGIBaseURL, url.QueryEscape(query))
	log := f.Logger.With(zap.String("registry", f.Name()), zap.String("query", query))
	log.Debug("Rufe MGI-Quicksearch auf.", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	result := &models.RegistryResult{
		Registry: f.Name(),
		Query:    query,
		Found:    resp.StatusCode == http.StatusOK,
	}
	if result.Found {
		result.URL = searchURL
	} else {
		log.Debug("MGI-Quicksearch nicht erreichbar", zap.Int("status", resp.StatusCode))
	}
	return result, nil
}
