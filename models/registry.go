package models

// Namen der unterstützten Registries.
const (
	RegistryAddgene  = "addgene"
	RegistryNCBIGene = "ncbi_gene"
	RegistryMGI      = "mgi"
)

// RegistryEntry ist ein einzelner Treffer einer Registry-Suche.
// Gene-Registries füllen GeneID/Symbol, Addgene füllt CatalogNumber/Name.
type RegistryEntry struct {
	GeneID        string `json:"gene_id,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	Organism      string `json:"organism,omitempty"`
	CatalogNumber string `json:"catalog_number,omitempty"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	URL           string `json:"url,omitempty"`
}

// RegistryResult ist das Ergebnis eines einzelnen Registry-Lookups.
type RegistryResult struct {
	Registry string          `json:"registry"`
	Query    string          `json:"query"`
	Found    bool            `json:"found"`
	Results  []RegistryEntry `json:"results,omitempty"`
	URL      string          `json:"url,omitempty"`
	Error    string          `json:"error,omitempty"`
}
