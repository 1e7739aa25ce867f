// Package engine - Extension Manager
// An extension model bolts additional fields onto a built-in content type.
// Attachment is a state transition pending -> applied; storage is still the
// shared document table, so "applying" records the attachment and makes the
// extension's fields visible to record validation for the target kind.
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

// ExtensionManager applies extension models to their targets
type ExtensionManager struct {
	db     *gorm.DB
	owners *OwnerRegistry
}

// NewExtensionManager creates a new extension manager
func NewExtensionManager(db *gorm.DB, owners *OwnerRegistry) *ExtensionManager {
	return &ExtensionManager{db: db, owners: owners}
}

// withTx returns a manager bound to the given transaction handle.
func (m *ExtensionManager) withTx(tx *gorm.DB) *ExtensionManager {
	return &ExtensionManager{db: tx, owners: m.owners}
}

// Apply attaches an extension model's fields to its target. Re-applying an
// already-applied extension is a no-op that returns success. Applying a
// standalone model fails with NotAnExtension.
func (m *ExtensionManager) Apply(model *models.DynamicModel) error {
	if !model.IsExtension() {
		return errors.NewNotAnExtensionError(model.Name)
	}
	if _, err := m.owners.ResolveTarget(model.TargetModel); err != nil {
		return err
	}

	var ext models.DynamicModelExtension
	err := m.db.Where("model_id = ?", model.ID).First(&ext).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NewExtensionError(fmt.Sprintf("model '%s' has no extension link", model.Name))
		}
		return fmt.Errorf("failed to load extension: %w", err)
	}

	if ext.MigrationApplied {
		return nil // idempotent
	}

	now := time.Now()
	return m.db.Model(&models.DynamicModelExtension{}).
		Where("id = ? AND migration_applied = false", ext.ID).
		Updates(map[string]interface{}{
			"migration_applied": true,
			"applied_at":        now,
		}).Error
}

// Status returns the extension link for a model.
func (m *ExtensionManager) Status(modelID uuid.UUID) (*models.DynamicModelExtension, error) {
	var ext models.DynamicModelExtension
	err := m.db.Where("model_id = ?", modelID).First(&ext).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("extension")
		}
		return nil, fmt.Errorf("failed to load extension: %w", err)
	}
	return &ext, nil
}

// FieldsFor merges the field lists of every applied extension targeting the
// given built-in kind within a site, in model name order. Record writes for
// that kind validate against this merged list.
func (m *ExtensionManager) FieldsFor(siteID uuid.UUID, targetKind string) (models.FieldList, error) {
	var exts []models.DynamicModelExtension
	err := m.db.Where("target_model = ? AND migration_applied = true", targetKind).
		Find(&exts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load extensions for %s: %w", targetKind, err)
	}
	if len(exts) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(exts))
	for _, e := range exts {
		ids = append(ids, e.ModelID)
	}

	var extModels []models.DynamicModel
	err = m.db.Where("id IN ? AND site_id = ? AND is_active = true", ids, siteID).
		Order("name").
		Find(&extModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load extension models: %w", err)
	}

	var merged models.FieldList
	seen := make(map[string]bool)
	for _, em := range extModels {
		for _, f := range em.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				merged = append(merged, f)
			}
		}
	}
	return merged, nil
}
