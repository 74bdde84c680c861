// Package schema liefert die kontrollierten Vokabulare und Pflichtfeld-Tabellen
// für die Validierung. Die Werte kommen aus der Schema-Konfiguration, nicht aus
// dem Code der Validierungsregeln; eine JSON-Datei kann einzelne Teile überschreiben.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// Vocabulary bündelt alle extern gepflegten Wertemengen pro Record-Typ.
type Vocabulary struct {
	// Modalities sind die gültigen Abkürzungen für data_description.modality.
	Modalities map[string]bool `json:"modalities"`
	// PhysiologyModalities sind Modalitäten, für die Session-Zeiten erwartet werden.
	PhysiologyModalities map[string]bool `json:"physiology_modalities"`
	Sex                  map[string]bool `json:"sex"`
	Species              map[string]bool `json:"species"`

	// RequiredFields: Record-Typ -> Liste von Feldpfaden in Punktnotation.
	RequiredFields map[string][]string `json:"required_fields"`

	// KnownFields: Record-Typ -> Allowlist der Top-Level-Felder.
	// Fehlt ein Typ, wird die Unknown-Field-Prüfung für ihn übersprungen.
	KnownFields map[string][]string `json:"known_fields"`
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Default liefert das eingebaute Vokabular.
func Default() *Vocabulary {
	return &Vocabulary{
		Modalities: set(
			"behavior", "behavior-videos", "confocal", "EMG", "ecephys",
			"fib", "fMOST", "icephys", "ISI", "MRI", "merfish", "pophys",
			"slap", "SPIM",
		),
		PhysiologyModalities: set("ecephys", "pophys", "fib", "icephys", "slap"),
		Sex:                  set("Male", "Female"),
		Species: set(
			"Mus musculus", "Homo sapiens", "Rattus norvegicus",
			"Macaca mulatta", "Drosophila melanogaster", "Danio rerio",
		),
		RequiredFields: map[string][]string{
			"subject":          {"subject_id"},
			"data_description": {"modality", "project_name"},
		},
		KnownFields: map[string][]string{
			"subject": {
				"subject_id", "species", "sex", "genotype", "alleles",
				"date_of_birth", "breeding_info", "source", "housing",
				"background_strain", "wellness_reports", "notes",
			},
			"session": {
				"session_start_time", "session_end_time", "session_type",
				"rig_id", "experimenter_full_name", "notes",
			},
		},
	}
}

// Load liefert das Default-Vokabular, optional gemergt mit einer
// Override-Datei. Ein leerer Pfad ist kein Fehler.
func Load(path string) (*Vocabulary, error) {
	vocab := Default()
	if path == "" {
		return vocab, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocabulary file %s: %w", path, err)
	}

	var override Vocabulary
	if err := json.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("vocabulary file %s: %w", path, err)
	}

	vocab.merge(&override)
	return vocab, nil
}

// merge übernimmt nur die in der Override-Datei gesetzten Teile.
func (v *Vocabulary) merge(o *Vocabulary) {
	if o.Modalities != nil {
		v.Modalities = o.Modalities
	}
	if o.PhysiologyModalities != nil {
		v.PhysiologyModalities = o.PhysiologyModalities
	}
	if o.Sex != nil {
		v.Sex = o.Sex
	}
	if o.Species != nil {
		v.Species = o.Species
	}
	if o.RequiredFields != nil {
		v.RequiredFields = o.RequiredFields
	}
	if o.KnownFields != nil {
		v.KnownFields = o.KnownFields
	}
}

// Required liefert die Pflichtfelder eines Typs (leer, wenn keine definiert sind).
func (v *Vocabulary) Required(recordType string) []string {
	return v.RequiredFields[recordType]
}

// Known liefert die Feld-Allowlist eines Typs; ok=false deaktiviert die Prüfung.
func (v *Vocabulary) Known(recordType string) (map[string]bool, bool) {
	fields, ok := v.KnownFields[recordType]
	if !ok {
		return nil, false
	}
	return set(fields...), true
}
