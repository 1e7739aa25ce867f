// Package api - Schema administration handlers
package api

import (
	"net/http"

	"github.com/aethra/strata/internal/auth"
	"github.com/aethra/strata/internal/engine"
	"github.com/aethra/strata/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SchemaHandler contains the model administration handlers
type SchemaHandler struct {
	engine *engine.Engine
	jwt    *auth.JWTService
}

// NewSchemaHandler creates a new schema handler
func NewSchemaHandler(eng *engine.Engine, jwt *auth.JWTService) *SchemaHandler {
	return &SchemaHandler{
		engine: eng,
		jwt:    jwt,
	}
}

// =============================================================================
// FIELD TYPE CATALOG
// =============================================================================

// ListFieldTypes returns the registered field type descriptors
// GET /admin/field-types
func (h *SchemaHandler) ListFieldTypes(c *gin.Context) {
	category := c.Query("category")
	if category != "" {
		c.JSON(http.StatusOK, gin.H{"field_types": h.engine.Catalog.ListByCategory(category)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"field_types": h.engine.Catalog.List()})
}

// ListOwnerKinds returns the record owner kinds
// GET /admin/owner-kinds
func (h *SchemaHandler) ListOwnerKinds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"owner_kinds": h.engine.Owners.List()})
}

// =============================================================================
// MODEL MANAGEMENT
// =============================================================================

// createModelRequest is the payload for model creation
type createModelRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	ModelType   string           `json:"model_type"`
	TargetModel string           `json:"target_model"`
	Fields      models.FieldList `json:"fields" binding:"required"`
}

// CreateModel registers a new dynamic model for the site
// POST /admin/models
func (h *SchemaHandler) CreateModel(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	var req createModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model, err := h.engine.Registry.Create(engine.CreateInput{
		SiteID:      siteID,
		Name:        req.Name,
		Description: req.Description,
		Fields:      req.Fields,
		ModelType:   req.ModelType,
		TargetModel: req.TargetModel,
		Actor:       currentActor(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model)
}

// ListModels returns the current version of the site's models
// GET /admin/models
func (h *SchemaHandler) ListModels(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	filter := engine.ListFilter{
		ModelType:       c.Query("model_type"),
		IncludeInactive: c.Query("include_inactive") == "true",
	}

	list, err := h.engine.Registry.List(siteID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": list})
}

// GetModel returns the current version of a model by name
// GET /admin/models/:model
func (h *SchemaHandler) GetModel(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model)
}

// GetModelVersion returns a specific version of a model
// GET /admin/models/:model/versions/:version
func (h *SchemaHandler) GetModelVersion(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	version := parseIntParam(c.Param("version"), 0)
	if version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version number"})
		return
	}

	model, err := h.engine.Registry.GetVersion(siteID, c.Param("model"), version)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model)
}

// DeactivateModel soft-disables every version of a model lineage
// POST /admin/models/:model/deactivate
func (h *SchemaHandler) DeactivateModel(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.engine.Registry.Deactivate(siteID, model.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

// DeleteModel removes a model lineage. Fails while records still
// reference any version.
// DELETE /admin/models/:model
func (h *SchemaHandler) DeleteModel(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.engine.Registry.Delete(siteID, model.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// =============================================================================
// VERSIONS
// =============================================================================

// createVersionRequest is the payload for version promotion
type createVersionRequest struct {
	Fields      models.FieldList `json:"fields" binding:"required"`
	Description string           `json:"description"`
}

// CreateVersion promotes a new version of a model
// POST /admin/models/:model/versions
func (h *SchemaHandler) CreateVersion(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := h.engine.Versions.CreateVersion(model, req.Fields, req.Description, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, next)
}

// rollbackRequest names the version to roll back to
type rollbackRequest struct {
	Version int `json:"version" binding:"required"`
}

// RollbackVersion promotes a past version's fields as a new version
// POST /admin/models/:model/rollback
func (h *SchemaHandler) RollbackVersion(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := h.engine.Versions.Rollback(model, req.Version, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, next)
}

// GetVersionHistory returns the version audit trail for a model lineage
// GET /admin/models/:model/versions
func (h *SchemaHandler) GetVersionHistory(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	history, err := h.engine.Versions.History(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"versions": history})
}

// =============================================================================
// EXTENSIONS
// =============================================================================

// ApplyExtension attaches an extension model to its target content type
// POST /admin/models/:model/apply-extension
func (h *SchemaHandler) ApplyExtension(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.engine.Extensions.Apply(model); err != nil {
		respondError(c, err)
		return
	}

	status, err := h.engine.Extensions.Status(model.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetExtensionStatus returns the extension link for a model
// GET /admin/models/:model/extension
func (h *SchemaHandler) GetExtensionStatus(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	status, err := h.engine.Extensions.Status(model.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// =============================================================================
// PERMISSIONS
// =============================================================================

// grantRequest is the payload for creating a permission grant
type grantRequest struct {
	UserID            *uuid.UUID           `json:"user_id"`
	RoleID            *uuid.UUID           `json:"role_id"`
	PermissionType    string               `json:"permission_type" binding:"required"`
	FieldRestrictions []string             `json:"field_restrictions"`
	Conditions        models.ConditionList `json:"conditions"`
}

// CreateGrant adds an explicit permission grant on a model
// POST /admin/models/:model/permissions
func (h *SchemaHandler) CreateGrant(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	grant, err := h.engine.Permissions.Grant(engine.GrantInput{
		ModelID:           model.ID,
		UserID:            req.UserID,
		RoleID:            req.RoleID,
		PermissionType:    req.PermissionType,
		FieldRestrictions: req.FieldRestrictions,
		Conditions:        req.Conditions,
		Actor:             currentActor(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, grant)
}

// ListGrants returns the explicit grants on a model
// GET /admin/models/:model/permissions
func (h *SchemaHandler) ListGrants(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	grants, err := h.engine.Permissions.ListGrants(model.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"permissions": grants})
}

// RevokeGrant removes a permission grant
// DELETE /admin/permissions/:id
func (h *SchemaHandler) RevokeGrant(c *gin.Context) {
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid permission id"})
		return
	}

	if err := h.engine.Permissions.Revoke(grantID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// ExportModel serializes a model configuration to a portable document
// GET /admin/models/:model/export
func (h *SchemaHandler) ExportModel(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	model, err := h.engine.Registry.GetByName(siteID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}

	includeData := c.Query("include_data") == "true"
	includePermissions := c.Query("include_permissions") != "false"

	doc, err := h.engine.Transfer.Export(model, includeData, includePermissions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// importRequest wraps an export document with import options
type importRequest struct {
	Document  *engine.ExportDocument `json:"document" binding:"required"`
	Overwrite bool                   `json:"overwrite"`
}

// ImportModel applies an exported model document to the site
// POST /admin/models/import
func (h *SchemaHandler) ImportModel(c *gin.Context) {
	siteID := c.MustGet("site_id").(uuid.UUID)

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model, err := h.engine.Transfer.Import(req.Document, siteID, req.Overwrite, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model)
}
