// Package engine - Schema Registry
// Owns DynamicModel definitions: creation, lookup, listing, deactivation.
// Version promotion lives in versions.go; the registry only ever writes v1.
package engine

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/aethra/strata/internal/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SchemaRegistry handles all schema definition operations
type SchemaRegistry struct {
	db        *gorm.DB
	validator *Validator
	owners    *OwnerRegistry
}

// NewSchemaRegistry creates a new schema registry
func NewSchemaRegistry(db *gorm.DB, validator *Validator, owners *OwnerRegistry) *SchemaRegistry {
	return &SchemaRegistry{db: db, validator: validator, owners: owners}
}

// withTx returns a registry bound to the given transaction handle.
func (r *SchemaRegistry) withTx(tx *gorm.DB) *SchemaRegistry {
	return &SchemaRegistry{db: tx, validator: r.validator, owners: r.owners}
}

// CreateInput carries everything needed to create a model's first version.
type CreateInput struct {
	SiteID      uuid.UUID
	Name        string
	Description string
	Fields      models.FieldList
	ModelType   string
	TargetModel string
	Actor       *uuid.UUID
}

// Create persists version 1 of a new model inside one transaction, together
// with its initial version audit entry and, for extensions, the pending
// extension link. The (site, name, version) unique index is the safety net
// for concurrent creates; the loser gets DuplicateName.
func (r *SchemaRegistry) Create(in CreateInput) (*models.DynamicModel, error) {
	if in.ModelType == "" {
		in.ModelType = models.ModelTypeStandalone
	}
	if in.ModelType != models.ModelTypeStandalone && in.ModelType != models.ModelTypeExtension {
		return nil, errors.NewBadRequestError(fmt.Sprintf("invalid model_type '%s'", in.ModelType))
	}
	if in.ModelType == models.ModelTypeExtension {
		if in.TargetModel == "" {
			return nil, errors.NewBadRequestError("target_model is required for extension models")
		}
		if _, err := r.owners.ResolveTarget(in.TargetModel); err != nil {
			return nil, err
		}
	} else if in.TargetModel != "" {
		return nil, errors.NewBadRequestError("target_model is only valid for extension models")
	}

	if err := r.validator.ValidateFieldConfig(in.Fields); err != nil {
		return nil, err
	}

	tableName, err := StorageIdentifier(in.SiteID, in.Name)
	if err != nil {
		return nil, err
	}

	var exists int64
	if err := r.db.Model(&models.DynamicModel{}).
		Where("site_id = ? AND name = ? AND version = 1", in.SiteID, in.Name).
		Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("failed to check for existing model: %w", err)
	}
	if exists > 0 {
		return nil, errors.NewDuplicateNameError(in.Name)
	}

	model := &models.DynamicModel{
		ID:          uuid.New(),
		SiteID:      in.SiteID,
		Name:        in.Name,
		Description: in.Description,
		ModelType:   in.ModelType,
		TargetModel: in.TargetModel,
		TableName:   tableName,
		Fields:      in.Fields.Clone(),
		Version:     1,
		IsActive:    true,
		CreatedBy:   in.Actor,
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.NewDuplicateNameError(in.Name)
			}
			return fmt.Errorf("failed to create model: %w", err)
		}

		audit, err := newVersionEntry(model, 0, "initial version", false, in.Actor)
		if err != nil {
			return err
		}
		if err := tx.Create(audit).Error; err != nil {
			return fmt.Errorf("failed to record initial version: %w", err)
		}

		if model.IsExtension() {
			ext := &models.DynamicModelExtension{
				ID:            uuid.New(),
				ModelID:       model.ID,
				TargetModel:   model.TargetModel,
				ExtensionType: models.ExtensionTypeFieldAddition,
			}
			if err := tx.Create(ext).Error; err != nil {
				return fmt.Errorf("failed to create extension link: %w", err)
			}
			model.Extension = ext
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Get returns a model row by ID, scoped to a site.
func (r *SchemaRegistry) Get(siteID, modelID uuid.UUID) (*models.DynamicModel, error) {
	var model models.DynamicModel
	err := r.db.Where("site_id = ? AND id = ?", siteID, modelID).First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("model")
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return &model, nil
}

// GetByName resolves the current version of a named model: the highest
// active version for (site, name).
func (r *SchemaRegistry) GetByName(siteID uuid.UUID, name string) (*models.DynamicModel, error) {
	var model models.DynamicModel
	err := r.db.Where("site_id = ? AND name = ? AND is_active = true", siteID, name).
		Order("version DESC").
		First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("model")
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return &model, nil
}

// GetVersion returns a specific version within a model's lineage.
// Cross-tenant lookups fail the same way as missing versions.
func (r *SchemaRegistry) GetVersion(siteID uuid.UUID, name string, version int) (*models.DynamicModel, error) {
	var model models.DynamicModel
	err := r.db.Where("site_id = ? AND name = ? AND version = ?", siteID, name, version).
		First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewVersionNotFoundError(version)
		}
		return nil, fmt.Errorf("failed to get model version: %w", err)
	}
	return &model, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	ModelType       string
	IncludeInactive bool
}

// List returns the current version of every model a site owns.
func (r *SchemaRegistry) List(siteID uuid.UUID, filter ListFilter) ([]models.DynamicModel, error) {
	query := r.db.Where("site_id = ?", siteID)
	if !filter.IncludeInactive {
		query = query.Where("is_active = true")
	}
	if filter.ModelType != "" {
		query = query.Where("model_type = ?", filter.ModelType)
	}

	var rows []models.DynamicModel
	if err := query.Order("name, version DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	// Keep only the newest version per name
	var result []models.DynamicModel
	seen := make(map[string]bool)
	for _, m := range rows {
		if !seen[m.Name] {
			seen[m.Name] = true
			result = append(result, m)
		}
	}
	return result, nil
}

// Deactivate soft-disables every version of a model lineage. Records and
// version history stay untouched.
func (r *SchemaRegistry) Deactivate(siteID, modelID uuid.UUID) error {
	model, err := r.Get(siteID, modelID)
	if err != nil {
		return err
	}
	return r.db.Model(&models.DynamicModel{}).
		Where("site_id = ? AND name = ?", model.SiteID, model.Name).
		Update("is_active", false).Error
}

// Delete removes a model lineage and its version history. Deletion is
// forbidden while records reference any version; callers must cascade-delete
// records first.
func (r *SchemaRegistry) Delete(siteID, modelID uuid.UUID) error {
	model, err := r.Get(siteID, modelID)
	if err != nil {
		return err
	}

	var ids []uuid.UUID
	if err := r.db.Model(&models.DynamicModel{}).
		Where("site_id = ? AND name = ?", model.SiteID, model.Name).
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("failed to collect model versions: %w", err)
	}

	var records int64
	if err := r.db.Model(&models.DynamicModelData{}).
		Where("model_id IN ?", ids).
		Count(&records).Error; err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if records > 0 {
		return errors.NewBadRequestError(fmt.Sprintf("model '%s' still has %d records; delete them first", model.Name, records))
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_id IN ?", ids).Delete(&models.DynamicModelVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("model_id IN ?", ids).Delete(&models.DynamicModelExtension{}).Error; err != nil {
			return err
		}
		if err := tx.Where("model_id IN ?", ids).Delete(&models.DynamicModelPermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.DynamicModel{}).Error
	})
}

// StorageIdentifier derives the stable, collision-free storage identifier
// for a model: dynamic_{site-prefix}_{slug(name)}. Deterministic so the
// identifier survives version promotion.
func StorageIdentifier(siteID uuid.UUID, name string) (string, error) {
	slug := security.Slugify(name)
	if slug == "" {
		return "", errors.NewBadRequestError(fmt.Sprintf("model name '%s' does not reduce to a valid identifier", name))
	}
	prefix := strings.ReplaceAll(siteID.String(), "-", "")[:8]
	table := fmt.Sprintf("dynamic_%s_%s", prefix, slug)
	if err := security.ValidateIdentifier(table); err != nil {
		return "", errors.NewBadRequestError(fmt.Sprintf("invalid storage identifier '%s': %v", table, err))
	}
	return table, nil
}
