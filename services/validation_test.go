package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meta-hand/models"
	"meta-hand/schema"
)

func newTestValidator() *Validator {
	return NewValidator(schema.Default())
}

func TestValidateSubjectShortID(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("subject", map[string]any{"subject_id": "12"})

	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "subject_id", result.Warnings[0].Field)
	assert.Empty(t, result.MissingRequired)
	assert.Equal(t, 1.0, result.CompletenessScore)
	assert.Equal(t, models.ValidationStatusWarnings, result.Status)
}

func TestValidateSubjectEmpty(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("subject", map[string]any{})

	assert.Equal(t, []string{"subject_id"}, result.MissingRequired)
	assert.Equal(t, 0.0, result.CompletenessScore)
	assert.Equal(t, models.ValidationStatusWarnings, result.Status)
}

func TestValidateSubjectSex(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("subject", map[string]any{"subject_id": "123456", "sex": "Male"})
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.ValidationStatusValid, result.Status)
	assert.Contains(t, result.ValidFields, "sex")

	result = v.Validate("subject", map[string]any{"subject_id": "123456", "sex": "Unknown"})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "sex", result.Errors[0].Field)
	assert.Equal(t, models.ValidationStatusErrors, result.Status)
}

func TestValidateSubjectSpeciesSoft(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("subject", map[string]any{
		"subject_id": "123456",
		"species":    map[string]any{"name": "Canis lupus"},
	})

	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "species.name", result.Warnings[0].Field)
}

func TestValidateSubjectUnknownField(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("subject", map[string]any{
		"subject_id":      "123456",
		"favourite_color": "blue",
	})

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "favourite_color", result.Warnings[0].Field)
}

func TestValidateDataDescriptionInvalidModality(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("data_description", map[string]any{
		"modality":     []any{map[string]any{"abbreviation": "xray"}},
		"project_name": "Test Project",
	})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "modality[0].abbreviation", result.Errors[0].Field)
	assert.Equal(t, models.ValidationStatusErrors, result.Status)
	assert.Equal(t, 1.0, result.CompletenessScore)
}

func TestValidateDataDescriptionValidModality(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("data_description", map[string]any{
		"modality":     []any{map[string]any{"abbreviation": "behavior"}},
		"project_name": "Test Project",
	})

	assert.Empty(t, result.Errors)
	assert.Equal(t, models.ValidationStatusValid, result.Status)
}

func TestValidatePhysiologyModalityExpectsSession(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("data_description", map[string]any{
		"modality":     []any{map[string]any{"abbreviation": "ecephys"}},
		"project_name": "Test Project",
	})

	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "session", result.Warnings[0].Field)
}

func TestValidateSessionOrdering(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("session", map[string]any{
		"session_start_time": "2026-03-01T10:00:00",
		"session_end_time":   "2026-03-01T09:00:00",
	})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "session_end_time", result.Errors[0].Field)

	result = v.Validate("session", map[string]any{
		"session_start_time": "2026-03-01T10:00:00",
		"session_end_time":   "2026-03-01T11:30:00",
	})
	assert.Empty(t, result.Errors)
}

func TestValidateSessionBareTimes(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("session", map[string]any{
		"session_start_time": "10:00",
		"session_end_time":   "9:00 AM",
	})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "session_end_time", result.Errors[0].Field)
}

func TestValidateSessionUnparseableSkipped(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("session", map[string]any{
		"session_start_time": "yesterday-ish",
		"session_end_time":   "2026-03-01T09:00:00",
	})
	assert.Empty(t, result.Errors)
}

func TestValidateProceduresCoordinates(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("procedures", map[string]any{
		"coordinates": map[string]any{"x": 1.5, "y": -2.0},
	})
	assert.Empty(t, result.Errors)
	assert.Contains(t, result.ValidFields, "coordinates")

	result = v.Validate("procedures", map[string]any{
		"coordinates": map[string]any{"x": "left-ish", "y": 2.0},
	})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "coordinates", result.Errors[0].Field)
}

func TestValidateProceduresThickness(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("procedures", map[string]any{"section_thickness_um": -10.0})
	require.Len(t, result.Errors, 1)

	result = v.Validate("procedures", map[string]any{"section_thickness_um": "thin"})
	require.Len(t, result.Errors, 1)

	result = v.Validate("procedures", map[string]any{"section_thickness_um": 50.0})
	assert.Empty(t, result.Errors)
}

func TestValidateTypeWithoutRules(t *testing.T) {
	v := newTestValidator()

	result := v.Validate("quality_control", map[string]any{"anything": "goes"})
	assert.Equal(t, models.ValidationStatusValid, result.Status)
	assert.Equal(t, 1.0, result.CompletenessScore)
}
