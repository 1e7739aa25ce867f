// Package engine - Record Store
// Holds validated record instances. Data is re-validated against the
// model's current field list on every write, not just creation, because
// the schema may have evolved since the record was born.
package engine

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordStore handles record reads and validated writes
type RecordStore struct {
	db         *gorm.DB
	validator  *Validator
	owners     *OwnerRegistry
	extensions *ExtensionManager
}

// NewRecordStore creates a new record store
func NewRecordStore(db *gorm.DB, validator *Validator, owners *OwnerRegistry, extensions *ExtensionManager) *RecordStore {
	return &RecordStore{db: db, validator: validator, owners: owners, extensions: extensions}
}

// withTx returns a store bound to the given transaction handle.
func (s *RecordStore) withTx(tx *gorm.DB) *RecordStore {
	return &RecordStore{db: tx, validator: s.validator, owners: s.owners, extensions: s.extensions.withTx(tx)}
}

// WriteInput carries a record write.
type WriteInput struct {
	OwnerKind   string
	OwnerID     *uuid.UUID
	Data        map[string]interface{}
	IsPublished bool
	Actor       *uuid.UUID
}

// Create validates data against the model's field list (plus any applied
// extension fields when the record hangs off a built-in type) and persists
// the record pinned to the model's version.
func (s *RecordStore) Create(model *models.DynamicModel, in WriteInput) (*models.DynamicModelData, error) {
	if in.OwnerKind == "" {
		in.OwnerKind = models.OwnerKindDynamic
	}
	if _, err := s.owners.Resolve(in.OwnerKind); err != nil {
		return nil, err
	}
	if in.OwnerKind != models.OwnerKindDynamic && in.OwnerID == nil {
		return nil, errors.NewBadRequestError("owner_id is required for records attached to a built-in type")
	}

	if err := s.validate(model, in.OwnerKind, in.Data); err != nil {
		return nil, err
	}

	record := &models.DynamicModelData{
		ID:            uuid.New(),
		ModelID:       model.ID,
		SiteID:        model.SiteID,
		OwnerKind:     in.OwnerKind,
		OwnerID:       in.OwnerID,
		Data:          models.JSONB(in.Data),
		SchemaVersion: model.Version,
		IsPublished:   in.IsPublished,
		CreatedBy:     in.Actor,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	s.audit(model, in.Actor, record.ID, "create", nil, in.Data)
	return record, nil
}

// Update re-validates the full data map and overwrites the record's data.
// The record is re-pinned to the version it was validated against.
func (s *RecordStore) Update(model *models.DynamicModel, recordID uuid.UUID, data map[string]interface{}, actor *uuid.UUID) (*models.DynamicModelData, error) {
	record, err := s.Get(model, recordID)
	if err != nil {
		return nil, err
	}

	if err := s.validate(model, record.OwnerKind, data); err != nil {
		return nil, err
	}

	old := map[string]interface{}(record.Data)
	record.Data = models.JSONB(data)
	record.SchemaVersion = model.Version
	if err := s.db.Model(record).Updates(map[string]interface{}{
		"data":           record.Data,
		"schema_version": record.SchemaVersion,
		"updated_at":     time.Now(),
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	s.audit(model, actor, record.ID, "update", old, data)
	return record, nil
}

// Publish flips the published flag without touching data.
func (s *RecordStore) Publish(model *models.DynamicModel, recordID uuid.UUID, published bool, actor *uuid.UUID) error {
	record, err := s.Get(model, recordID)
	if err != nil {
		return err
	}
	if err := s.db.Model(record).Update("is_published", published).Error; err != nil {
		return fmt.Errorf("failed to update published flag: %w", err)
	}
	action := "unpublish"
	if published {
		action = "publish"
	}
	s.audit(model, actor, record.ID, action, nil, nil)
	return nil
}

// Get returns a record belonging to any version of the model's lineage.
func (s *RecordStore) Get(model *models.DynamicModel, recordID uuid.UUID) (*models.DynamicModelData, error) {
	var record models.DynamicModelData
	err := s.db.Where("id = ? AND site_id = ?", recordID, model.SiteID).First(&record).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("record")
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

// ListOptions narrows and pages List results.
type ListOptions struct {
	Published *bool
	OwnerKind string
	Page      int
	PageSize  int
}

// ListResult is one page of records.
type ListResult struct {
	Records  []models.DynamicModelData `json:"records"`
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

// List returns records across the model's lineage, newest first.
func (s *RecordStore) List(model *models.DynamicModel, opts ListOptions) (*ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 25
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	ids, err := s.lineageIDs(model)
	if err != nil {
		return nil, err
	}

	query := s.db.Model(&models.DynamicModelData{}).Where("model_id IN ?", ids)
	if opts.Published != nil {
		query = query.Where("is_published = ?", *opts.Published)
	}
	if opts.OwnerKind != "" {
		query = query.Where("owner_kind = ?", opts.OwnerKind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	var records []models.DynamicModelData
	offset := (opts.Page - 1) * opts.PageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(opts.PageSize).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return &ListResult{
		Records:  records,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	}, nil
}

// Delete removes a record.
func (s *RecordStore) Delete(model *models.DynamicModel, recordID uuid.UUID, actor *uuid.UUID) error {
	record, err := s.Get(model, recordID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(record).Error; err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	s.audit(model, actor, record.ID, "delete", map[string]interface{}(record.Data), nil)
	return nil
}

// CountForLineage returns how many records reference any version of the
// model's lineage.
func (s *RecordStore) CountForLineage(model *models.DynamicModel) (int64, error) {
	ids, err := s.lineageIDs(model)
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.Model(&models.DynamicModelData{}).Where("model_id IN ?", ids).Count(&count).Error
	return count, err
}

// Redact keeps only the allowed fields of a record's data map.
func Redact(data map[string]interface{}, allowed []string) map[string]interface{} {
	allowedSet := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = true
	}
	out := make(map[string]interface{}, len(allowed))
	for k, v := range data {
		if allowedSet[k] {
			out[k] = v
		}
	}
	return out
}

func (s *RecordStore) validate(model *models.DynamicModel, ownerKind string, data map[string]interface{}) error {
	fields := model.Fields
	if ownerKind != models.OwnerKindDynamic {
		extra, err := s.extensions.FieldsFor(model.SiteID, ownerKind)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(fields))
		for _, f := range fields {
			seen[f.Name] = true
		}
		for _, f := range extra {
			if !seen[f.Name] {
				fields = append(fields, f)
			}
		}
	}

	if errs := s.validator.ValidateFields(fields, data); len(errs) > 0 {
		return errors.NewValidationFailedError(errs)
	}
	return nil
}

func (s *RecordStore) audit(model *models.DynamicModel, actor *uuid.UUID, recordID uuid.UUID, action string, oldValues, newValues map[string]interface{}) {
	var changed models.StringArray
	if oldValues != nil && newValues != nil {
		for key, newVal := range newValues {
			if oldVal, exists := oldValues[key]; !exists || fmt.Sprintf("%v", oldVal) != fmt.Sprintf("%v", newVal) {
				changed = append(changed, key)
			}
		}
	}

	entry := models.AuditLog{
		ID:            uuid.New(),
		SiteID:        model.SiteID,
		UserID:        actor,
		ModelID:       &model.ID,
		ModelName:     model.Name,
		RecordID:      &recordID,
		Action:        action,
		OldValues:     models.JSONB(oldValues),
		NewValues:     models.JSONB(newValues),
		ChangedFields: changed,
		CreatedAt:     time.Now(),
	}

	s.db.Create(&entry)
}

func (s *RecordStore) lineageIDs(model *models.DynamicModel) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.Model(&models.DynamicModel{}).
		Where("site_id = ? AND name = ?", model.SiteID, model.Name).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to collect model versions: %w", err)
	}
	return ids, nil
}
