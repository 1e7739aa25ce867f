// Package engine - Config Export/Import
// Serializes a model (optionally with records and permissions) to a
// versioned portable document and reconstructs it in another site. The
// document field names (version, model, data, permissions) are a contract
// other tooling depends on.
package engine

import (
	stderrors "errors"
	"fmt"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentVersion is the current export document format version.
const DocumentVersion = 1

// ExportDocument is the portable model description.
type ExportDocument struct {
	Version     int                `json:"version"`
	Model       ModelExport        `json:"model"`
	Data        []RecordExport     `json:"data,omitempty"`
	Permissions []PermissionExport `json:"permissions,omitempty"`
}

// ModelExport is the schema part of an export document.
type ModelExport struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	ModelType   string           `json:"model_type"`
	TargetModel string           `json:"target_model,omitempty"`
	Fields      models.FieldList `json:"fields"`
}

// RecordExport is one embedded record.
type RecordExport struct {
	Data        map[string]interface{} `json:"data"`
	IsPublished bool                   `json:"is_published"`
}

// PermissionExport is one embedded role grant. User grants are not portable
// across sites and are never exported.
type PermissionExport struct {
	RoleCode          string               `json:"role_code"`
	PermissionType    string               `json:"permission_type"`
	FieldRestrictions []string             `json:"field_restrictions,omitempty"`
	Conditions        models.ConditionList `json:"conditions,omitempty"`
}

// Transfer composes the registry, version manager, record store and
// evaluator into export/import operations.
type Transfer struct {
	db        *gorm.DB
	registry  *SchemaRegistry
	versions  *VersionManager
	records   *RecordStore
	evaluator *Evaluator
}

// NewTransfer creates a new transfer service
func NewTransfer(db *gorm.DB, registry *SchemaRegistry, versions *VersionManager, records *RecordStore, evaluator *Evaluator) *Transfer {
	return &Transfer{db: db, registry: registry, versions: versions, records: records, evaluator: evaluator}
}

// Export builds the portable document for a model.
func (t *Transfer) Export(model *models.DynamicModel, includeData, includePermissions bool) (*ExportDocument, error) {
	doc := &ExportDocument{
		Version: DocumentVersion,
		Model: ModelExport{
			Name:        model.Name,
			Description: model.Description,
			ModelType:   model.ModelType,
			TargetModel: model.TargetModel,
			Fields:      model.Fields.Clone(),
		},
	}

	if includeData {
		ids, err := t.records.lineageIDs(model)
		if err != nil {
			return nil, err
		}
		var rows []models.DynamicModelData
		if err := t.db.Where("model_id IN ?", ids).Order("created_at").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load records for export: %w", err)
		}
		doc.Data = make([]RecordExport, 0, len(rows))
		for _, r := range rows {
			doc.Data = append(doc.Data, RecordExport{
				Data:        map[string]interface{}(r.Data),
				IsPublished: r.IsPublished,
			})
		}
	}

	if includePermissions {
		grants, err := t.evaluator.ListGrants(model.ID)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			if g.RoleID == nil {
				continue
			}
			var role models.Role
			if err := t.db.Where("id = ?", *g.RoleID).First(&role).Error; err != nil {
				continue
			}
			doc.Permissions = append(doc.Permissions, PermissionExport{
				RoleCode:          role.Code,
				PermissionType:    g.PermissionType,
				FieldRestrictions: []string(g.FieldRestrictions),
				Conditions:        g.Conditions,
			})
		}
	}

	return doc, nil
}

// Import reconstructs the document's model inside targetSite as one atomic
// unit of work: either the schema, records and permissions all land, or
// nothing does. With overwriteExisting, an existing lineage gets the
// imported field list promoted as a new version instead of being replaced.
func (t *Transfer) Import(doc *ExportDocument, targetSite uuid.UUID, overwriteExisting bool, actor *uuid.UUID) (*models.DynamicModel, error) {
	if doc == nil {
		return nil, errors.NewBadRequestError("import document is empty")
	}
	if doc.Version != DocumentVersion {
		return nil, errors.NewBadRequestError(fmt.Sprintf("unsupported document version %d", doc.Version))
	}
	if doc.Model.Name == "" {
		return nil, errors.NewBadRequestError("import document has no model name")
	}
	if err := t.registry.validator.ValidateFieldConfig(doc.Model.Fields); err != nil {
		return nil, err
	}

	existing, err := t.registry.GetByName(targetSite, doc.Model.Name)
	if err != nil {
		var nf *errors.NotFoundError
		if !stderrors.As(err, &nf) {
			return nil, err
		}
		existing = nil
	}
	if existing != nil && !overwriteExisting {
		return nil, errors.NewAlreadyExistsError(fmt.Sprintf("model '%s'", doc.Model.Name))
	}

	var imported *models.DynamicModel
	err = t.db.Transaction(func(tx *gorm.DB) error {
		registry := t.registry.withTx(tx)
		records := t.records.withTx(tx)

		if existing != nil {
			desc := "imported configuration"
			imported, err = t.versions.withTx(tx).CreateVersion(existing, doc.Model.Fields, desc, actor)
			if err != nil {
				return err
			}
		} else {
			imported, err = registry.Create(CreateInput{
				SiteID:      targetSite,
				Name:        doc.Model.Name,
				Description: doc.Model.Description,
				Fields:      doc.Model.Fields,
				ModelType:   doc.Model.ModelType,
				TargetModel: doc.Model.TargetModel,
				Actor:       actor,
			})
			if err != nil {
				return err
			}
		}

		for _, rec := range doc.Data {
			if _, err := records.Create(imported, WriteInput{
				Data:        rec.Data,
				IsPublished: rec.IsPublished,
				Actor:       actor,
			}); err != nil {
				return err
			}
		}

		for _, perm := range doc.Permissions {
			var role models.Role
			err := tx.Where("code = ? AND (site_id = ? OR site_id IS NULL)", perm.RoleCode, targetSite).
				First(&role).Error
			if err != nil {
				if stderrors.Is(err, gorm.ErrRecordNotFound) {
					return errors.NewBadRequestError(fmt.Sprintf("role '%s' does not exist in target site", perm.RoleCode))
				}
				return fmt.Errorf("failed to resolve role: %w", err)
			}
			grant := &models.DynamicModelPermission{
				ID:                uuid.New(),
				ModelID:           imported.ID,
				RoleID:            &role.ID,
				PermissionType:    perm.PermissionType,
				FieldRestrictions: models.StringArray(perm.FieldRestrictions),
				Conditions:        perm.Conditions,
				CreatedBy:         actor,
			}
			if err := tx.Create(grant).Error; err != nil {
				return fmt.Errorf("failed to import grant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.evaluator.InvalidateModel(imported.ID)
	return imported, nil
}
