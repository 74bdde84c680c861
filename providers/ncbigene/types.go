package ncbigene

import "encoding/json"

// ESearchResponse repräsentiert die JSON-Antwort von esearch.fcgi.
type ESearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IdList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// ESummaryResponse repräsentiert die JSON-Antwort von esummary.fcgi.
// "result" enthält neben "uids" ein Objekt pro Gene-ID, deshalb RawMessage.
type ESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// GeneSummary ist der Eintrag einer einzelnen Gene-ID in der ESummary-Antwort.
type GeneSummary struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Organism    struct {
		ScientificName string `json:"scientificname"`
	} `json:"organism"`
}
