package addgene

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"meta-hand/config"
	"meta-hand/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

const maxEntries = 5

// Die Suchseite liefert Katalog-Links in HTML; ältere Proxies liefern
// dieselben Links in Markdown-Form. Beide Formen werden erkannt.
var (
	htmlLinkRegex = regexp.MustCompile(`(?i)<a[^>]*href="(?:https?://www\.addgene\.org)?/(\d{4,6})/?"[^>]*>\s*([^<]+?)\s*</a>`)
	mdLinkRegex   = regexp.MustCompile(`\[([^\]]+)\]\((?:https?://www\.addgene\.org)?/(\d{4,6})/?\)`)
	digitsRegex   = regexp.MustCompile(`^\d{4,6}$`)
)

// Fetcher kapselt die Logik für den Addgene-Plasmidkatalog.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Addgene-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen der Registry zurück.
func (f *Fetcher) Name() string {
	return models.RegistryAddgene
}

// Lookup sucht ein Plasmid. Numerische Queries werden als Katalognummer
// direkt aufgelöst, alles andere läuft über die Katalogsuche.
func (f *Fetcher) Lookup(ctx context.Context, query string) (*models.RegistryResult, error) {
	result := &models.RegistryResult{Registry: f.Name(), Query: query}
	log := f.Logger.With(zap.String("registry", f.Name()), zap.String("query", query))

	if digitsRegex.MatchString(query) {
		directURL := fmt.Sprintf("%s/%s/", f.Config.AddgeneBaseURL, query)
		log.Debug("Versuche direkte Katalognummer-Auflösung.", zap.String("url", directURL))

		status, err := f.probe(ctx, directURL)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK {
			result.Found = true
			result.URL = directURL
			result.Results = []models.RegistryEntry{{
				CatalogNumber: query,
				URL:           directURL,
			}}
			return result, nil
		}
		// Keine Katalognummer; weiter mit der normalen Suche.
	}

	searchURL := fmt.Sprintf("%s/search/catalog/?q=%s", f.Config.AddgeneBaseURL, url.QueryEscape(query))
	log.Debug("Rufe Addgene-Katalogsuche auf.", zap.String("url", searchURL))

	body, err := f.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	entries := parseSearchPage(body, f.Config.AddgeneBaseURL)
	result.URL = searchURL
	result.Found = len(entries) > 0
	result.Results = entries

	if result.Found {
		log.Info("Addgene-Treffer gefunden.", zap.Int("count", len(entries)))
	} else {
		log.Debug("Keine Addgene-Treffer.")
	}
	return result, nil
}

// probe macht einen GET und liefert nur den Statuscode.
func (f *Fetcher) probe(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("addgene request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseSearchPage extrahiert bis zu fünf Katalog-Treffer aus der Suchseite.
// Duplikate derselben Katalognummer werden verworfen.
func parseSearchPage(body, baseURL string) []models.RegistryEntry {
	seen := map[string]bool{}
	var entries []models.RegistryEntry

	add := func(catalog, name string) {
		if seen[catalog] || len(entries) >= maxEntries {
			return
		}
		seen[catalog] = true
		entries = append(entries, models.RegistryEntry{
			CatalogNumber: catalog,
			Name:          strings.TrimSpace(name),
			URL:           fmt.Sprintf("%s/%s/", baseURL, catalog),
		})
	}

	for _, m := range htmlLinkRegex.FindAllStringSubmatch(body, -1) {
		add(m[1], m[2])
	}
	for _, m := range mdLinkRegex.FindAllStringSubmatch(body, -1) {
		add(m[2], m[1])
	}
	return entries
}
