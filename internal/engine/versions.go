// Package engine - Version Manager
// Version history is a forward-only append log. Rollback never rewrites
// history: it promotes a new version whose field list is copied from an
// older snapshot and marks it is_rollback.
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VersionManager promotes and rolls back model versions
type VersionManager struct {
	db        *gorm.DB
	validator *Validator
	// onPromote is notified after every successful promotion so permission
	// caches can drop stale entries for the lineage.
	onPromote func(modelID uuid.UUID)
}

// NewVersionManager creates a new version manager
func NewVersionManager(db *gorm.DB, validator *Validator) *VersionManager {
	return &VersionManager{db: db, validator: validator}
}

// OnPromote registers the cache invalidation hook.
func (m *VersionManager) OnPromote(fn func(modelID uuid.UUID)) {
	m.onPromote = fn
}

// withTx returns a manager bound to the given transaction handle.
func (m *VersionManager) withTx(tx *gorm.DB) *VersionManager {
	return &VersionManager{db: tx, validator: m.validator, onPromote: m.onPromote}
}

// CreateVersion validates newFields exactly like Create does, persists a new
// model row with version+1 linked to its parent, and appends the audit
// entry, all in one transaction. Existing records keep referencing the
// version they were written against.
func (m *VersionManager) CreateVersion(model *models.DynamicModel, newFields models.FieldList, description string, actor *uuid.UUID) (*models.DynamicModel, error) {
	return m.createVersion(model, newFields, description, false, actor)
}

// Rollback promotes a new version whose field list is copied from
// targetVersion. The version number keeps increasing monotonically; the
// audit trail stays append-only.
func (m *VersionManager) Rollback(model *models.DynamicModel, targetVersion int, actor *uuid.UUID) (*models.DynamicModel, error) {
	var target models.DynamicModel
	err := m.db.Where("site_id = ? AND name = ? AND version = ?", model.SiteID, model.Name, targetVersion).
		First(&target).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewVersionNotFoundError(targetVersion)
		}
		return nil, fmt.Errorf("failed to load rollback target: %w", err)
	}

	desc := fmt.Sprintf("rollback to version %d", targetVersion)
	return m.createVersion(model, target.Fields, desc, true, actor)
}

func (m *VersionManager) createVersion(model *models.DynamicModel, fields models.FieldList, description string, isRollback bool, actor *uuid.UUID) (*models.DynamicModel, error) {
	if err := m.validator.ValidateFieldConfig(fields); err != nil {
		return nil, err
	}

	// Promote from the newest version of the lineage even if the caller
	// holds an older row.
	var head models.DynamicModel
	err := m.db.Where("site_id = ? AND name = ?", model.SiteID, model.Name).
		Order("version DESC").
		First(&head).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load lineage head: %w", err)
	}

	next := &models.DynamicModel{
		ID:          uuid.New(),
		SiteID:      head.SiteID,
		Name:        head.Name,
		Description: head.Description,
		ModelType:   head.ModelType,
		TargetModel: head.TargetModel,
		TableName:   head.TableName,
		Fields:      fields.Clone(),
		Version:     head.Version + 1,
		ParentID:    &head.ID,
		IsActive:    true,
		CreatedBy:   actor,
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("failed to create version %d: %w", next.Version, err)
		}
		entry, err := newVersionEntry(next, head.Version, description, isRollback, actor)
		if err != nil {
			return err
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to record version entry: %w", err)
		}
		if head.IsExtension() {
			// Extension links follow the lineage head so applied state
			// survives promotion.
			if err := tx.Model(&models.DynamicModelExtension{}).
				Where("model_id = ?", head.ID).
				Update("model_id", next.ID).Error; err != nil {
				return fmt.Errorf("failed to move extension link: %w", err)
			}
		}
		// Grants follow the head the same way, so explicit permissions
		// keep applying after every promotion and rollback.
		if err := tx.Model(&models.DynamicModelPermission{}).
			Where("model_id = ?", head.ID).
			Update("model_id", next.ID).Error; err != nil {
			return fmt.Errorf("failed to move grants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.onPromote != nil {
		m.onPromote(head.ID)
		m.onPromote(next.ID)
	}
	return next, nil
}

// History returns the append-only version entries of a lineage, oldest first.
func (m *VersionManager) History(siteID uuid.UUID, name string) ([]models.DynamicModelVersion, error) {
	var entries []models.DynamicModelVersion
	err := m.db.Where("site_id = ? AND model_name = ?", siteID, name).
		Order("version ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load version history: %w", err)
	}
	return entries, nil
}

// newVersionEntry builds the immutable audit row for a promoted model row.
func newVersionEntry(model *models.DynamicModel, parentVersion int, description string, isRollback bool, actor *uuid.UUID) (*models.DynamicModelVersion, error) {
	snapshot, err := json.Marshal(model.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot fields: %w", err)
	}
	return &models.DynamicModelVersion{
		ID:             uuid.New(),
		ModelID:        model.ID,
		SiteID:         model.SiteID,
		ModelName:      model.Name,
		Version:        model.Version,
		ParentVersion:  parentVersion,
		Description:    description,
		IsRollback:     isRollback,
		FieldsSnapshot: snapshot,
		CreatedBy:      actor,
	}, nil
}
