package ncbigene

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"meta-hand/config"
	"meta-hand/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

const retmax = 5

// Fetcher kapselt die Logik für die NCBI-Gene-Datenbank (E-Utilities).
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen NCBI-Gene-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen der Registry zurück.
func (f *Fetcher) Name() string {
	return models.RegistryNCBIGene
}

// Lookup sucht ein Gen-Symbol: erst ESearch für die IDs, dann ESummary
// für Symbol, Beschreibung und Organismus.
func (f *Fetcher) Lookup(ctx context.Context, query string) (*models.RegistryResult, error) {
	result := &models.RegistryResult{Registry: f.Name(), Query: query}
	log := f.Logger.With(zap.String("registry", f.Name()), zap.String("query", query))

	ids, err := f.searchIDs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ncbi esearch: %w", err)
	}
	if len(ids) == 0 {
		log.Debug("Keine NCBI-Gene-Treffer.")
		return result, nil
	}

	entries, err := f.fetchSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ncbi esummary: %w", err)
	}

	result.Found = len(entries) > 0
	result.Results = entries
	if len(entries) > 0 {
		result.URL = entries[0].URL
		log.Info("NCBI-Gene-Treffer gefunden.", zap.Int("count", len(entries)))
	}
	return result, nil
}

// searchIDs führt eine ESearch-Abfrage gegen db=gene durch.
func (f *Fetcher) searchIDs(ctx context.Context, term string) ([]string, error) {
	searchURL := fmt.Sprintf("%s/esearch.fcgi?db=gene&term=%s&retmode=json&retmax=%d",
		f.Config.NCBIBaseURL, url.QueryEscape(term+"[sym]"), retmax)
	if f.Config.NCBIAPIKey != "" {
		searchURL += "&api_key=" + f.Config.NCBIAPIKey
	}
	f.Logger.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	var esearch ESearchResponse
	if err := f.getJSON(ctx, searchURL, &esearch); err != nil {
		return nil, err
	}
	return esearch.ESearchResult.IdList, nil
}

// fetchSummaries holt die Details für eine Liste von Gene-IDs.
func (f *Fetcher) fetchSummaries(ctx context.Context, ids []string) ([]models.RegistryEntry, error) {
	summaryURL := fmt.Sprintf("%s/esummary.fcgi?db=gene&id=%s&retmode=json",
		f.Config.NCBIBaseURL, strings.Join(ids, ","))
	if f.Config.NCBIAPIKey != "" {
		summaryURL += "&api_key=" + f.Config.NCBIAPIKey
	}
	f.Logger.Debug("Rufe ESummary-URL auf", zap.String("url", summaryURL))

	var esummary ESummaryResponse
	if err := f.getJSON(ctx, summaryURL, &esummary); err != nil {
		return nil, err
	}

	entries := make([]models.RegistryEntry, 0, len(ids))
	for _, id := range ids {
		raw, ok := esummary.Result[id]
		if !ok {
			continue
		}
		var summary GeneSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			f.Logger.Warn("Konnte ESummary-Eintrag nicht parsen",
				zap.String("gene_id", id), zap.Error(err))
			continue
		}
		entries = append(entries, models.RegistryEntry{
			GeneID:      id,
			Symbol:      summary.Name,
			Description: summary.Description,
			Organism:    summary.Organism.ScientificName,
			URL:         fmt.Sprintf("https://www.ncbi.nlm.nih.gov/gene/%s", id),
		})
	}
	return entries, nil
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
