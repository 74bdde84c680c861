package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"meta-hand/models"
	"meta-hand/schema"
)

var subjectIDPattern = regexp.MustCompile(`^\d{4,}$`)

// Accepted timestamp formats, tried in order. Bare times cover lab notes
// like "9:30 AM" where only the time of day was captured.
var timestampFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"15:04",
	"3:04 PM",
}

// Validator checks record data against the configured vocabulary.
// Validate is a pure function of (record type, data); it never touches the store.
type Validator struct {
	vocab *schema.Vocabulary
	rules map[string]ruleFunc
}

type ruleFunc func(v *Validator, data map[string]any, result *models.ValidationResult)

// NewValidator builds a validator with the static per-type rule table.
// Types without an entry only get the required-field and unknown-field passes.
func NewValidator(vocab *schema.Vocabulary) *Validator {
	v := &Validator{vocab: vocab}
	v.rules = map[string]ruleFunc{
		"subject":          (*Validator).validateSubject,
		"data_description": (*Validator).validateDataDescription,
		"session":          (*Validator).validateSession,
		"procedures":       (*Validator).validateProcedures,
	}
	return v
}

// Validate runs the required-field pass, the type-specific rules, and the
// unknown-field check, then derives status and completeness score.
func (v *Validator) Validate(recordType string, data map[string]any) models.ValidationResult {
	result := models.ValidationResult{RecordType: recordType}

	required := v.vocab.Required(recordType)
	for _, path := range required {
		if fieldPresent(getNested(data, path)) {
			result.AddValid(path)
		} else {
			result.MissingRequired = append(result.MissingRequired, path)
		}
	}

	if rule, ok := v.rules[recordType]; ok {
		rule(v, data, &result)
	}

	v.checkUnknownFields(recordType, data, &result)

	if len(required) == 0 {
		result.CompletenessScore = 1.0
	} else {
		present := len(required) - len(result.MissingRequired)
		score := float64(present) / float64(len(required))
		result.CompletenessScore = math.Round(score*100) / 100
	}

	result.Finalize()
	return result
}

// getNested resolves a dotted path ("species.name") through nested maps.
func getNested(data map[string]any, path string) any {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// fieldPresent treats nil, empty string, and empty sequence as absent.
func fieldPresent(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

func (v *Validator) validateSubject(data map[string]any, result *models.ValidationResult) {
	if sid, ok := data["subject_id"]; ok && sid != nil {
		s := fmt.Sprintf("%v", sid)
		if !subjectIDPattern.MatchString(s) {
			result.AddWarning("subject_id",
				fmt.Sprintf("Subject ID '%s' should be a numeric string with 4+ digits", s))
		}
	}

	if sex, ok := data["sex"].(string); ok && sex != "" {
		if !v.vocab.Sex[sex] {
			result.AddError("sex",
				fmt.Sprintf("Invalid sex '%s'. Must be one of: %s", sex, sortedKeys(v.vocab.Sex)))
		} else {
			result.AddValid("sex")
		}
	}

	// Species is checked softly; the list is expected to grow.
	if species, ok := data["species"].(map[string]any); ok {
		if name, ok := species["name"].(string); ok && name != "" {
			if !v.vocab.Species[name] {
				result.AddWarning("species.name",
					fmt.Sprintf("Unrecognized species '%s'. Expected one of: %s", name, sortedKeys(v.vocab.Species)))
			} else {
				result.AddValid("species.name")
			}
		}
	}
}

func (v *Validator) validateDataDescription(data map[string]any, result *models.ValidationResult) {
	// Values outside the controlled modality vocabulary are errors, not
	// warnings: the downstream system of record rejects them.
	if modality, ok := data["modality"].([]any); ok {
		for i, mod := range modality {
			m, ok := mod.(map[string]any)
			if !ok {
				continue
			}
			abbr, ok := m["abbreviation"].(string)
			if !ok || abbr == "" {
				continue
			}
			field := fmt.Sprintf("modality[%d].abbreviation", i)
			if !v.vocab.Modalities[abbr] {
				result.AddError(field,
					fmt.Sprintf("Invalid modality '%s'. Must be one of: %s", abbr, sortedKeys(v.vocab.Modalities)))
			} else {
				result.AddValid(field)
			}

			if v.vocab.PhysiologyModalities[abbr] && !fieldPresent(data["session_start_time"]) {
				result.AddWarning("session",
					fmt.Sprintf("Session information expected for physiology modality '%s'", abbr))
			}
		}
	}

	if pn, ok := data["project_name"].(string); ok && pn != "" {
		if len(strings.TrimSpace(pn)) < 2 {
			result.AddWarning("project_name", "Project name is too short")
		} else {
			result.AddValid("project_name")
		}
	}
}

func (v *Validator) validateSession(data map[string]any, result *models.ValidationResult) {
	start, startOK := data["session_start_time"].(string)
	end, endOK := data["session_end_time"].(string)

	if startOK && start != "" {
		result.AddValid("session_start_time")
	}
	if endOK && end != "" {
		result.AddValid("session_end_time")
	}

	// Ordering is only checked when both timestamps parse; unparseable
	// values are skipped silently, format validity is not checked here.
	if start != "" && end != "" {
		startT, sok := parseTimestamp(start)
		endT, eok := parseTimestamp(end)
		if sok && eok && !endT.After(startT) {
			result.AddError("session_end_time", "Session end time must be after start time")
		}
	}

	if fieldPresent(data["rig_id"]) {
		result.AddValid("rig_id")
	}
}

func (v *Validator) validateProcedures(data map[string]any, result *models.ValidationResult) {
	if coords, ok := data["coordinates"].(map[string]any); ok {
		x, xok := coords["x"]
		y, yok := coords["y"]
		if xok && yok && x != nil && y != nil {
			if _, okX := toFloat(x); !okX {
				result.AddError("coordinates",
					fmt.Sprintf("Coordinates must be numeric, got x=%v, y=%v", x, y))
			} else if _, okY := toFloat(y); !okY {
				result.AddError("coordinates",
					fmt.Sprintf("Coordinates must be numeric, got x=%v, y=%v", x, y))
			} else {
				result.AddValid("coordinates")
			}
		}
	}

	if thickness, ok := data["section_thickness_um"]; ok && thickness != nil {
		val, numeric := toFloat(thickness)
		switch {
		case !numeric:
			result.AddError("section_thickness_um",
				fmt.Sprintf("Section thickness must be numeric, got '%v'", thickness))
		case val <= 0:
			result.AddError("section_thickness_um", "Section thickness must be positive")
		default:
			result.AddValid("section_thickness_um")
		}
	}
}

// checkUnknownFields warns about top-level keys outside the type's allowlist.
// Skipped entirely when the schema provides no allowlist for the type.
func (v *Validator) checkUnknownFields(recordType string, data map[string]any, result *models.ValidationResult) {
	known, ok := v.vocab.Known(recordType)
	if !ok {
		return
	}
	fields := make([]string, 0, len(data))
	for field := range data {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if !known[field] {
			result.AddWarning(field,
				fmt.Sprintf("Field '%s' is not a known %s field", field, recordType))
		}
	}
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func sortedKeys(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
