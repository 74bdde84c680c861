package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"meta-hand/config"
	"meta-hand/models"
	"meta-hand/providers"
)

// Genotype strings concatenate allele tokens with these separators,
// e.g. "Ai14;Slc17a7-Cre" or "Vglut1-Cre x Ai93".
var genotypeSeparators = regexp.MustCompile(`[;/×]|\s+x\s+`)

// Plasmid names and Addgene catalog numbers inside procedure payloads.
var (
	plasmidRegex = regexp.MustCompile(`(?i)(?:pAAV|AAV|pCAG|pEF|pCMV)[-\w]+`)
	catalogRegex = regexp.MustCompile(`\b\d{4,6}\b`)
)

// RegistryQuery is one extracted (registry, term) pair.
type RegistryQuery struct {
	Registry string `json:"registry"`
	Query    string `json:"query"`
}

// RegistryService correlates captured record data with external registries.
// Lookups are best effort: a failing or timed-out call is logged and omitted
// from the results, it never fails the capture.
type RegistryService struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registries map[string]providers.Registry
}

func NewRegistryService(cfg *config.Config, logger *zap.Logger, registries []providers.Registry) *RegistryService {
	byName := make(map[string]providers.Registry, len(registries))
	for _, r := range registries {
		byName[r.Name()] = r
	}
	return &RegistryService{Config: cfg, Logger: logger, Registries: byName}
}

// ExtractQueries derives registry queries from a record's data document.
// Subjects contribute genotype tokens and allele names; procedures are
// scanned as a whole for plasmid names and catalog numbers. Queries are
// deduplicated per registry in first-seen order.
func (s *RegistryService) ExtractQueries(recordType string, data map[string]any) []RegistryQuery {
	var queries []RegistryQuery
	seen := map[string]bool{}

	add := func(registry, query string) {
		query = strings.TrimSpace(query)
		if query == "" {
			return
		}
		key := registry + "\x00" + query
		if seen[key] {
			return
		}
		seen[key] = true
		queries = append(queries, RegistryQuery{Registry: registry, Query: query})
	}

	switch recordType {
	case "subject":
		if genotype, ok := data["genotype"].(string); ok {
			for _, token := range genotypeSeparators.Split(genotype, -1) {
				token = strings.TrimSpace(token)
				if len(token) > 2 {
					add(models.RegistryMGI, token)
					add(models.RegistryNCBIGene, token)
				}
			}
		}
		if alleles, ok := data["alleles"].([]any); ok {
			for _, allele := range alleles {
				switch a := allele.(type) {
				case string:
					add(models.RegistryMGI, a)
				case map[string]any:
					if name, ok := a["name"].(string); ok {
						add(models.RegistryMGI, name)
					}
				}
			}
		}
	case "procedures":
		// Injection materials are buried at varying depths; scanning the
		// serialized document catches them all.
		raw, err := json.Marshal(data)
		if err != nil {
			return queries
		}
		text := string(raw)
		for _, plasmid := range plasmidRegex.FindAllString(text, -1) {
			add(models.RegistryAddgene, plasmid)
		}
		for _, number := range catalogRegex.FindAllString(text, -1) {
			if n, err := strconv.Atoi(number); err == nil && n > 1000 {
				add(models.RegistryAddgene, number)
			}
		}
	}

	return queries
}

// RunLookups executes the extracted queries against the configured
// registries with bounded concurrency and an overall deadline. Queries for
// registries that are not configured are skipped; failed calls drop out of
// the result list. Surviving results keep the input order.
func (s *RegistryService) RunLookups(ctx context.Context, queries []RegistryQuery) []models.RegistryResult {
	if len(queries) == 0 {
		return nil
	}

	overall := time.Duration(s.Config.RegistryOverallTimeoutSec) * time.Second
	perCall := time.Duration(s.Config.RegistryCallTimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	results := make([]*models.RegistryResult, len(queries))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Parallele Abfragen limitieren

	for i, query := range queries {
		registry, ok := s.Registries[query.Registry]
		if !ok {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, registry providers.Registry, query RegistryQuery) {
			defer wg.Done()
			defer func() { <-semaphore }()

			callCtx, cancel := context.WithTimeout(ctx, perCall)
			defer cancel()

			result, err := registry.Lookup(callCtx, query.Query)
			if err != nil {
				s.Logger.Warn("Registry-Lookup fehlgeschlagen",
					zap.String("registry", query.Registry),
					zap.String("query", query.Query),
					zap.Error(err))
				registryLookups.WithLabelValues(query.Registry, "error").Inc()
				return
			}

			outcome := "miss"
			if result.Found {
				outcome = "hit"
			}
			registryLookups.WithLabelValues(query.Registry, outcome).Inc()
			results[i] = result
		}(i, registry, query)
	}

	wg.Wait()

	out := make([]models.RegistryResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Lookup runs extraction and lookups in one step.
func (s *RegistryService) Lookup(ctx context.Context, recordType string, data map[string]any) []models.RegistryResult {
	return s.RunLookups(ctx, s.ExtractQueries(recordType, data))
}

// FormatSummary renders lookup results as a text block for the capture
// response. Every entry is rendered, including failures and misses.
func FormatSummary(results []models.RegistryResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("REGISTRY LOOKUPS:\n")
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(&b, "- %s lookup for '%s' failed: %s\n", r.Registry, r.Query, r.Error)
		case r.Found && len(r.Results) > 0:
			fmt.Fprintf(&b, "- %s: '%s' matched\n", r.Registry, r.Query)
			for i, entry := range r.Results {
				if i >= 4 {
					fmt.Fprintf(&b, "  ... and %d more\n", len(r.Results)-i)
					break
				}
				b.WriteString("  - " + formatEntry(entry) + "\n")
			}
		case r.Found:
			fmt.Fprintf(&b, "- %s: '%s' matched: %s\n", r.Registry, r.Query, r.URL)
		default:
			fmt.Fprintf(&b, "- %s: no match for '%s'\n", r.Registry, r.Query)
		}
	}
	b.WriteString("Share the matching registry links with the user and ask them to confirm the identification.")
	return b.String()
}

func formatEntry(entry models.RegistryEntry) string {
	switch {
	case entry.Symbol != "":
		line := entry.Symbol
		if entry.Description != "" {
			line += ": " + entry.Description
		}
		if entry.Organism != "" {
			line += " [" + entry.Organism + "]"
		}
		if entry.URL != "" {
			line += " " + entry.URL
		}
		return line
	case entry.CatalogNumber != "":
		line := "#" + entry.CatalogNumber
		if entry.Name != "" {
			line = entry.Name + " (" + line + ")"
		}
		if entry.URL != "" {
			line += " " + entry.URL
		}
		return line
	default:
		return entry.Name + " " + entry.URL
	}
}
