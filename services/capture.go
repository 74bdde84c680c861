package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"meta-hand/models"
)

// CaptureRequest describes one capture tool call. RecordID empty means
// create, otherwise the named record is updated via shallow merge.
type CaptureRequest struct {
	SessionID    string         `json:"session_id"`
	RecordType   string         `json:"record_type"`
	Data         map[string]any `json:"data"`
	Name         string         `json:"name,omitempty"`
	RecordID     string         `json:"record_id,omitempty"`
	LinkTo       []string       `json:"link_to,omitempty"`
	InvocationID string         `json:"invocation_id,omitempty"`
}

// CaptureResponse is returned to the caller of the capture pipeline.
type CaptureResponse struct {
	Action            string                  `json:"action"` // "created" oder "updated"
	RecordID          string                  `json:"record_id"`
	Category          string                  `json:"category"`
	Name              string                  `json:"name,omitempty"`
	Validation        models.ValidationResult `json:"validation"`
	ValidationSummary string                  `json:"validation_summary"`
	RegistryLookups   []models.RegistryResult `json:"registry_lookups,omitempty"`
	RegistrySummary   string                  `json:"registry_summary,omitempty"`
	LinkWarnings      []string                `json:"link_warnings,omitempty"`
}

// CaptureService runs the full pipeline for one tool call: persist,
// validate, publish the result to the turn stream, then correlate with
// external registries. Registry failures never fail the capture.
type CaptureService struct {
	Store     *RecordStore
	Validator *Validator
	Registry  *RegistryService
	Logger    *zap.Logger
}

func NewCaptureService(store *RecordStore, validator *Validator, registry *RegistryService, logger *zap.Logger) *CaptureService {
	return &CaptureService{Store: store, Validator: validator, Registry: registry, Logger: logger}
}

// Capture executes one capture call. events may be nil when no stream
// consumer is attached to the current turn.
func (c *CaptureService) Capture(ctx context.Context, req CaptureRequest, events *TurnEvents) (*CaptureResponse, error) {
	var record *models.Record
	var err error
	action := "created"

	if req.RecordID != "" {
		record, err = c.Store.Update(req.RecordID, req.Data, req.Name)
		action = "updated"
	} else {
		record, err = c.Store.Create(req.SessionID, req.RecordType, req.Data, req.Name)
	}
	if err != nil {
		return nil, err
	}

	response := &CaptureResponse{
		Action:   action,
		RecordID: record.ID,
		Category: record.Category,
		Name:     record.Name,
	}

	// Links to missing targets are reported but do not fail the capture.
	for _, target := range req.LinkTo {
		if err := c.Store.Link(record.ID, target); err != nil {
			c.Logger.Warn("Link-Ziel nicht verknüpfbar",
				zap.String("record_id", record.ID),
				zap.String("target", target),
				zap.Error(err))
			response.LinkWarnings = append(response.LinkWarnings,
				fmt.Sprintf("could not link to %s: %v", target, err))
		}
	}

	// Validate against the merged document, not just the submitted fields.
	merged := map[string]any{}
	if len(record.DataJSON) > 0 {
		if err := json.Unmarshal(record.DataJSON, &merged); err != nil {
			return nil, fmt.Errorf("decode record data %s: %w", record.ID, err)
		}
	}

	result := c.Validator.Validate(record.RecordType, merged)
	if _, err := c.Store.SetValidation(record.ID, result); err != nil {
		return nil, err
	}
	response.Validation = result
	response.ValidationSummary = FormatValidationSummary(result)

	recordsCaptured.WithLabelValues(record.RecordType, action).Inc()
	validationOutcomes.WithLabelValues(record.RecordType, result.Status).Inc()

	if events != nil {
		event := TurnEvent{
			InvocationID: req.InvocationID,
			RecordID:     record.ID,
			RecordType:   record.RecordType,
			Result:       result,
		}
		if !events.Publish(event) {
			c.Logger.Warn("Turn-Event verworfen, Puffer voll oder Turn beendet",
				zap.String("record_id", record.ID),
				zap.String("invocation_id", req.InvocationID))
		}
	}

	if c.Registry != nil {
		lookups := c.Registry.Lookup(ctx, record.RecordType, merged)
		response.RegistryLookups = lookups
		response.RegistrySummary = FormatSummary(lookups)
	}

	return response, nil
}

// RevalidateAll re-runs validation over every unconfirmed record.
// Used by the nightly sweep after vocabulary updates.
func (c *CaptureService) RevalidateAll() (int, error) {
	records, err := c.Store.ListRecords("", "", "", models.StatusDraft)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range records {
		data := map[string]any{}
		if len(record.DataJSON) > 0 {
			if err := json.Unmarshal(record.DataJSON, &data); err != nil {
				c.Logger.Warn("Record-Daten nicht lesbar, übersprungen",
					zap.String("record_id", record.ID), zap.Error(err))
				continue
			}
		}
		result := c.Validator.Validate(record.RecordType, data)
		if _, err := c.Store.SetValidation(record.ID, result); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// FormatValidationSummary renders a validation result as a text block.
// Errors and missing required fields come with an explicit instruction to
// surface them; a clean result is a single line.
func FormatValidationSummary(result models.ValidationResult) string {
	var b strings.Builder

	if len(result.Errors) > 0 {
		b.WriteString("VALIDATION ERRORS (must fix):\n")
		for _, issue := range result.Errors {
			fmt.Fprintf(&b, "- %s: %s\n", issue.Field, issue.Message)
		}
	}
	if len(result.MissingRequired) > 0 {
		b.WriteString("MISSING REQUIRED FIELDS:\n")
		for _, field := range result.MissingRequired {
			fmt.Fprintf(&b, "- %s\n", field)
		}
	}
	if len(result.Warnings) > 0 {
		b.WriteString("WARNINGS:\n")
		for _, issue := range result.Warnings {
			fmt.Fprintf(&b, "- %s: %s\n", issue.Field, issue.Message)
		}
	}

	if b.Len() == 0 {
		return fmt.Sprintf("VALIDATION PASSED: no issues found (completeness %.2f).", result.CompletenessScore)
	}

	if len(result.Errors) > 0 || len(result.MissingRequired) > 0 {
		b.WriteString("You MUST report these validation issues to the user.")
	}
	return strings.TrimRight(b.String(), "\n")
}
