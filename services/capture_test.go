package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meta-hand/models"
	"meta-hand/schema"
)

func newTestCaptureService(t *testing.T, registry *RegistryService) (*CaptureService, *RecordStore) {
	t.Helper()
	store := newTestStore(t)
	validator := NewValidator(schema.Default())
	return NewCaptureService(store, validator, registry, zap.NewNop()), store
}

func TestCaptureCreate(t *testing.T) {
	svc, store := newTestCaptureService(t, nil)
	events := NewTurnEvents()
	defer events.Close()

	response, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:    "sess-1",
		RecordType:   "subject",
		Data:         map[string]any{"subject_id": "12"},
		InvocationID: "call-1",
	}, events)
	require.NoError(t, err)

	assert.Equal(t, "created", response.Action)
	assert.Equal(t, models.CategoryShared, response.Category)
	assert.Equal(t, models.ValidationStatusWarnings, response.Validation.Status)
	assert.Contains(t, response.ValidationSummary, "WARNINGS:")

	record, err := store.Get(response.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, record.Status)
	assert.NotEmpty(t, record.ValidationJSON)

	drained := events.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "call-1", drained[0].InvocationID)
	assert.Equal(t, response.RecordID, drained[0].RecordID)
}

func TestCaptureValidationErrors(t *testing.T) {
	svc, store := newTestCaptureService(t, nil)

	response, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "data_description",
		Data: map[string]any{
			"modality":     []any{map[string]any{"abbreviation": "xray"}},
			"project_name": "Test Project",
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ValidationStatusErrors, response.Validation.Status)
	assert.Contains(t, response.ValidationSummary, "VALIDATION ERRORS (must fix):")
	assert.Contains(t, response.ValidationSummary, "You MUST report these validation issues to the user.")

	// Validation classifies, it never moves the record status.
	record, err := store.Get(response.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, record.Status)
	assert.NotEmpty(t, record.ValidationJSON)
}

func TestCaptureUpdateValidatesMergedDocument(t *testing.T) {
	svc, _ := newTestCaptureService(t, nil)

	created, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "subject",
		Data:       map[string]any{"subject_id": "123456"},
	}, nil)
	require.NoError(t, err)

	updated, err := svc.Capture(context.Background(), CaptureRequest{
		RecordID: created.RecordID,
		Data:     map[string]any{"sex": "Female"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "updated", updated.Action)
	assert.Equal(t, created.RecordID, updated.RecordID)
	// The earlier subject_id still counts as present after the merge.
	assert.Empty(t, updated.Validation.MissingRequired)
	assert.Equal(t, models.ValidationStatusValid, updated.Validation.Status)
}

func TestCaptureInvalidType(t *testing.T) {
	svc, _ := newTestCaptureService(t, nil)

	_, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "spaceship",
		Data:       map[string]any{},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestCaptureLinkWarningDoesNotFail(t *testing.T) {
	svc, _ := newTestCaptureService(t, nil)

	response, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "subject",
		Data:       map[string]any{"subject_id": "123456"},
		LinkTo:     []string{"ghost-record"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, response.LinkWarnings, 1)
	assert.Contains(t, response.LinkWarnings[0], "ghost-record")
}

func TestCaptureLinksRecords(t *testing.T) {
	svc, store := newTestCaptureService(t, nil)

	subject, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "subject",
		Data:       map[string]any{"subject_id": "123456"},
	}, nil)
	require.NoError(t, err)

	session, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "session",
		Data:       map[string]any{"session_start_time": "2026-03-01T10:00:00"},
		LinkTo:     []string{subject.RecordID},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, session.LinkWarnings)

	linked, err := store.Linked(subject.RecordID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, session.RecordID, linked[0].ID)
}

func TestCaptureRunsRegistryLookups(t *testing.T) {
	registry := newTestRegistryService(&fakeRegistry{
		name:   models.RegistryAddgene,
		result: &models.RegistryResult{Found: true, URL: "https://example.org/addgene"},
	})
	svc, _ := newTestCaptureService(t, registry)

	response, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "procedures",
		Data: map[string]any{
			"injection_materials": []any{map[string]any{"name": "pAAV-hSyn-EGFP"}},
		},
	}, nil)
	require.NoError(t, err)

	require.Len(t, response.RegistryLookups, 1)
	assert.True(t, response.RegistryLookups[0].Found)
	assert.Contains(t, response.RegistrySummary, "pAAV-hSyn-EGFP")
}

func TestRevalidateAll(t *testing.T) {
	svc, store := newTestCaptureService(t, nil)

	created, err := svc.Capture(context.Background(), CaptureRequest{
		SessionID:  "sess-1",
		RecordType: "subject",
		Data:       map[string]any{"subject_id": "123456", "sex": "Robot"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, models.ValidationStatusErrors, created.Validation.Status)

	// Fix the data behind the pipeline's back, then sweep.
	_, err = store.Update(created.RecordID, map[string]any{"sex": "Female"}, "")
	require.NoError(t, err)

	count, err := svc.RevalidateAll()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	record, err := store.Get(created.RecordID)
	require.NoError(t, err)

	var result models.ValidationResult
	require.NoError(t, json.Unmarshal(record.ValidationJSON, &result))
	assert.Equal(t, models.ValidationStatusValid, result.Status)
}
