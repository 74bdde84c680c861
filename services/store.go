package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meta-hand/models"
)

// Sentinel-Fehler des Stores; Aufrufer prüfen mit errors.Is.
var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidType = errors.New("invalid record type")
)

// RecordStore kapselt alle Datenbankzugriffe auf Records, Links,
// Konversationen und Uploads.
type RecordStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRecordStore(db *gorm.DB, logger *zap.Logger) *RecordStore {
	return &RecordStore{db: db, logger: logger}
}

// Create legt einen neuen Record an. Die Kategorie wird aus dem Typ
// abgeleitet; ein fehlender Name wird heuristisch aus den Daten gebildet.
func (s *RecordStore) Create(sessionID, recordType string, data map[string]any, name string) (*models.Record, error) {
	category, ok := models.CategoryMap[recordType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, recordType)
	}

	if name == "" {
		name = deriveName(recordType, data)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}

	record := &models.Record{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RecordType: recordType,
		Category:   category,
		Name:       name,
		DataJSON:   raw,
		Status:     models.StatusDraft,
	}

	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	s.logger.Info("Record angelegt",
		zap.String("record_id", record.ID),
		zap.String("record_type", recordType),
		zap.String("session_id", sessionID))
	return record, nil
}

// Get lädt einen Record per ID.
func (s *RecordStore) Get(id string) (*models.Record, error) {
	var record models.Record
	if err := s.db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	return &record, nil
}

// Update mergt die übergebenen Felder flach in das Daten-Dokument.
// Nicht genannte Felder bleiben erhalten; der Status wird nicht zurückgesetzt.
func (s *RecordStore) Update(id string, data map[string]any, name string) (*models.Record, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	if len(record.DataJSON) > 0 {
		if err := json.Unmarshal(record.DataJSON, &merged); err != nil {
			return nil, fmt.Errorf("decode record data %s: %w", id, err)
		}
	}
	for key, value := range data {
		merged[key] = value
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}
	record.DataJSON = raw

	if name != "" {
		record.Name = name
	} else if derived := deriveName(record.RecordType, merged); derived != "" {
		record.Name = derived
	}

	if err := s.db.Save(record).Error; err != nil {
		return nil, fmt.Errorf("update record %s: %w", id, err)
	}
	return record, nil
}

// SetValidation hängt das jüngste Validierungsergebnis an den Record.
// Der Status bleibt unberührt: Validierung klassifiziert, sie stuft nicht um.
func (s *RecordStore) SetValidation(id string, result models.ValidationResult) (*models.Record, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal validation result: %w", err)
	}
	record.ValidationJSON = raw

	if err := s.db.Save(record).Error; err != nil {
		return nil, fmt.Errorf("save validation %s: %w", id, err)
	}
	return record, nil
}

// Confirm markiert einen Record als vom Nutzer bestätigt. Die Bestätigung
// ist bewusst bedingungslos: auch Records mit Validierungsfehlern dürfen
// bestätigt werden, die Fehler bleiben im Validierungsergebnis sichtbar.
func (s *RecordStore) Confirm(id string) (*models.Record, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	record.Status = models.StatusConfirmed
	if err := s.db.Save(record).Error; err != nil {
		return nil, fmt.Errorf("confirm record %s: %w", id, err)
	}
	return record, nil
}

// Delete entfernt einen Record samt aller anhängenden Links.
// Idempotent: ein unbekannter Record liefert (false, nil).
func (s *RecordStore) Delete(id string) (bool, error) {
	if err := s.db.Where("a_id = ? OR b_id = ?", id, id).
		Delete(&models.RecordLink{}).Error; err != nil {
		return false, fmt.Errorf("delete links of %s: %w", id, err)
	}

	res := s.db.Delete(&models.Record{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("delete record %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Link legt eine ungerichtete Kante zwischen zwei Records an.
// Die Kante wird kanonisch geordnet gespeichert; ein Duplikat
// (auch in Gegenrichtung) ist ein No-Op.
func (s *RecordStore) Link(aID, bID string) error {
	if _, err := s.Get(aID); err != nil {
		return err
	}
	if _, err := s.Get(bID); err != nil {
		return err
	}

	a, b := models.NormalizeEdge(aID, bID)
	link := models.RecordLink{AID: a, BID: b}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error; err != nil {
		return fmt.Errorf("link %s <-> %s: %w", aID, bID, err)
	}
	return nil
}

// Linked liefert alle direkten Nachbarn eines Records im Link-Graphen.
// Ein unbekannter Record ist ein Fehler, keine leere Nachbarschaft.
func (s *RecordStore) Linked(id string) ([]models.Record, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}

	var links []models.RecordLink
	if err := s.db.Where("a_id = ? OR b_id = ?", id, id).
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load links of %s: %w", id, err)
	}

	neighborIDs := make([]string, 0, len(links))
	for _, link := range links {
		if link.AID == id {
			neighborIDs = append(neighborIDs, link.BID)
		} else {
			neighborIDs = append(neighborIDs, link.AID)
		}
	}
	if len(neighborIDs) == 0 {
		return []models.Record{}, nil
	}

	var records []models.Record
	if err := s.db.Where("id IN ?", neighborIDs).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load linked records of %s: %w", id, err)
	}
	return records, nil
}

// Find sucht Records per Text-Substring in Name oder Daten-Dokument,
// optional gefiltert nach Typ und Kategorie. Die Suche ist case-insensitiv;
// maximal 50 Treffer, zuletzt geänderte zuerst.
func (s *RecordStore) Find(query, recordType, category string) ([]models.Record, error) {
	tx := s.db.Model(&models.Record{})
	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(CAST(data_json AS TEXT)) LIKE ?", pattern, pattern)
	}
	if recordType != "" {
		tx = tx.Where("record_type = ?", recordType)
	}
	if category != "" {
		tx = tx.Where("category = ?", category)
	}

	var records []models.Record
	if err := tx.Order("updated_at DESC").Limit(50).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	return records, nil
}

// ListRecords liefert Records nach optionalen Filtern, neueste zuerst.
func (s *RecordStore) ListRecords(sessionID, recordType, category, status string) ([]models.Record, error) {
	tx := s.db.Model(&models.Record{})
	if sessionID != "" {
		tx = tx.Where("session_id = ?", sessionID)
	}
	if recordType != "" {
		tx = tx.Where("record_type = ?", recordType)
	}
	if category != "" {
		tx = tx.Where("category = ?", category)
	}
	if status != "" {
		tx = tx.Where("status = ?", status)
	}

	var records []models.Record
	if err := tx.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// ListBySession liefert alle Records einer Session.
func (s *RecordStore) ListBySession(sessionID string) ([]models.Record, error) {
	return s.ListRecords(sessionID, "", "", "")
}

// DeleteSession entfernt alle Records, Links und Konversationsbeiträge
// einer Session. Liefert false, wenn die Session nichts enthielt.
func (s *RecordStore) DeleteSession(sessionID string) (bool, error) {
	var ids []string
	if err := s.db.Model(&models.Record{}).
		Where("session_id = ?", sessionID).
		Pluck("id", &ids).Error; err != nil {
		return false, fmt.Errorf("list session records %s: %w", sessionID, err)
	}

	if len(ids) > 0 {
		if err := s.db.Where("a_id IN ? OR b_id IN ?", ids, ids).
			Delete(&models.RecordLink{}).Error; err != nil {
			return false, fmt.Errorf("delete session links %s: %w", sessionID, err)
		}
	}

	records := s.db.Where("session_id = ?", sessionID).Delete(&models.Record{})
	if records.Error != nil {
		return false, fmt.Errorf("delete session records %s: %w", sessionID, records.Error)
	}

	turns := s.db.Where("session_id = ?", sessionID).Delete(&models.ConversationTurn{})
	if turns.Error != nil {
		return false, fmt.Errorf("delete session turns %s: %w", sessionID, turns.Error)
	}

	deleted := records.RowsAffected+turns.RowsAffected > 0
	if deleted {
		s.logger.Info("Session gelöscht",
			zap.String("session_id", sessionID),
			zap.Int64("records", records.RowsAffected),
			zap.Int64("turns", turns.RowsAffected))
	}
	return deleted, nil
}

// SaveTurn protokolliert einen Gesprächsbeitrag.
func (s *RecordStore) SaveTurn(sessionID, role, content string, attachments []string) error {
	turn := models.ConversationTurn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	if len(attachments) > 0 {
		raw, err := json.Marshal(attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}
		turn.AttachmentsJSON = raw
	}
	if err := s.db.Create(&turn).Error; err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// History liefert die Gesprächshistorie einer Session in zeitlicher Reihenfolge.
func (s *RecordStore) History(sessionID string, limit int) ([]models.ConversationTurn, error) {
	tx := s.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var turns []models.ConversationTurn
	if err := tx.Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("load history %s: %w", sessionID, err)
	}
	return turns, nil
}

// Sessions aggregiert alle bekannten Sessions für die Übersicht,
// zuletzt aktive zuerst.
func (s *RecordStore) Sessions() ([]models.SessionSummary, error) {
	var ids []string
	if err := s.db.Model(&models.ConversationTurn{}).
		Distinct("session_id").
		Pluck("session_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]models.SessionSummary, 0, len(ids))
	for _, id := range ids {
		var first, last models.ConversationTurn
		if err := s.db.Where("session_id = ?", id).
			Order("created_at ASC, id ASC").First(&first).Error; err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		if err := s.db.Where("session_id = ?", id).
			Order("created_at DESC, id DESC").First(&last).Error; err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		var count int64
		if err := s.db.Model(&models.ConversationTurn{}).
			Where("session_id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		summaries = append(summaries, models.SessionSummary{
			SessionID:    id,
			CreatedAt:    first.CreatedAt,
			LastActive:   last.CreatedAt,
			MessageCount: count,
			FirstMessage: truncate(first.Content, 120),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActive.After(summaries[j].LastActive)
	})
	return summaries, nil
}

// SaveUpload speichert die Metadaten eines Datei-Uploads.
func (s *RecordStore) SaveUpload(upload *models.Upload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if err := s.db.Create(upload).Error; err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}

// GetUpload lädt einen Upload per ID.
func (s *RecordStore) GetUpload(id string) (*models.Upload, error) {
	var upload models.Upload
	if err := s.db.First(&upload, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load upload %s: %w", id, err)
	}
	return &upload, nil
}

// deriveName bildet einen Anzeigenamen aus den Record-Daten.
// Liefert "", wenn kein brauchbares Feld vorhanden ist.
func deriveName(recordType string, data map[string]any) string {
	switch recordType {
	case "subject":
		sid := str(data["subject_id"])
		species := ""
		if sp, ok := data["species"].(map[string]any); ok {
			species = str(sp["name"])
		}
		switch {
		case species != "" && sid != "":
			return species + " " + sid
		case sid != "":
			return "Subject " + sid
		}
	case "instrument":
		if v := str(data["instrument_id"]); v != "" {
			return v
		}
		return str(data["name"])
	case "rig":
		if v := str(data["rig_id"]); v != "" {
			return v
		}
		return str(data["name"])
	case "procedures":
		return str(data["procedure_type"])
	case "data_description":
		return str(data["project_name"])
	case "session":
		if v := str(data["session_start_time"]); v != "" {
			return "Session " + v
		}
	}
	return ""
}

func str(value any) string {
	s, _ := value.(string)
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
