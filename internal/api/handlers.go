// Package api contains the HTTP API handlers for Strata
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aethra/strata/internal/auth"
	"github.com/aethra/strata/internal/engine"
	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler contains the record-level API handlers
type Handler struct {
	engine *engine.Engine
	jwt    *auth.JWTService
}

// NewHandler creates a new API handler
func NewHandler(eng *engine.Engine, jwt *auth.JWTService) *Handler {
	return &Handler{
		engine: eng,
		jwt:    jwt,
	}
}

// respondError maps an engine error to an HTTP response
func respondError(c *gin.Context, err error) {
	status, body := errors.ToHTTPError(err)
	c.JSON(status, body)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// SiteMiddleware extracts the site from header or query param
func (h *Handler) SiteMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try header first
		siteIDStr := c.GetHeader("X-Site-ID")
		if siteIDStr == "" {
			// Try query param (for testing)
			siteIDStr = c.Query("site_id")
		}

		if siteIDStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
			c.Abort()
			return
		}

		siteID, err := uuid.Parse(siteIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site_id"})
			c.Abort()
			return
		}

		c.Set("site_id", siteID)
		c.Next()
	}
}

// UserMiddleware validates the bearer token, if present, and loads the
// acting principal onto the context. Anonymous requests pass through; the
// require-auth middleware rejects them where auth is mandatory.
func (h *Handler) UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := h.jwt.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		principal, err := h.engine.Permissions.LoadPrincipal(claims.UserID)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("claims", claims)
		c.Set("principal", principal)
		c.Next()
	}
}

// RequireAuthMiddleware rejects requests without a valid principal
func (h *Handler) RequireAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("principal"); !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSiteAdminMiddleware allows only superusers and admins of the
// request's site through
func (h *Handler) RequireSiteAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := c.MustGet("principal").(*engine.Principal)
		siteID := c.MustGet("site_id").(uuid.UUID)

		for _, role := range principal.Roles {
			if role.IsSuperuser {
				c.Next()
				return
			}
			if role.IsSiteAdmin && principal.MemberOf(siteID) {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "site admin access required"})
		c.Abort()
	}
}

// currentPrincipal returns the acting principal from the context
func currentPrincipal(c *gin.Context) *engine.Principal {
	return c.MustGet("principal").(*engine.Principal)
}

// currentActor returns the acting user ID as a pointer, or nil
func currentActor(c *gin.Context) *uuid.UUID {
	if v, exists := c.Get("user_id"); exists {
		id := v.(uuid.UUID)
		return &id
	}
	return nil
}

// resolveModel loads the current version of the named model for the site
func (h *Handler) resolveModel(c *gin.Context) (uuid.UUID, *modelContext, bool) {
	siteID := c.MustGet("site_id").(uuid.UUID)
	name := c.Param("model")

	model, err := h.engine.Registry.GetByName(siteID, name)
	if err != nil {
		respondError(c, err)
		return siteID, nil, false
	}

	return siteID, &modelContext{model: model}, true
}

// Health returns the API health status
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "strata",
	})
}

// =============================================================================
// RECORD ENDPOINTS
// =============================================================================

// ListRecords returns a paginated list of records for a model
// GET /api/models/:model/records
func (h *Handler) ListRecords(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	if !h.engine.Permissions.CanPerform(principal, mc.model, engine.ActionView, "") {
		respondError(c, errors.NewPermissionDeniedError("view", mc.model.Name))
		return
	}

	opts := engine.ListOptions{
		Page:      parseIntParam(c.Query("page"), 1),
		PageSize:  parseIntParam(c.Query("page_size"), 25),
		OwnerKind: c.Query("owner_kind"),
	}
	if published := c.Query("published"); published != "" {
		val := published == "true"
		opts.Published = &val
	}

	result, err := h.engine.Records.List(mc.model, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	// Redact fields the principal cannot see
	allowed := h.engine.Permissions.AccessibleFields(principal, mc.model)
	for i := range result.Records {
		result.Records[i].Data = engine.Redact(result.Records[i].Data, allowed)
	}

	c.JSON(http.StatusOK, result)
}

// GetRecord returns a single record
// GET /api/models/:model/records/:id
func (h *Handler) GetRecord(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	record, err := h.engine.Records.Get(mc.model, recordID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !h.engine.Permissions.CanPerformOnRecord(principal, mc.model, engine.ActionView, record.Data) {
		respondError(c, errors.NewPermissionDeniedError("view", mc.model.Name))
		return
	}

	allowed := h.engine.Permissions.AccessibleFields(principal, mc.model)
	record.Data = engine.Redact(record.Data, allowed)

	c.JSON(http.StatusOK, record)
}

// createRecordRequest is the payload for record creation
type createRecordRequest struct {
	OwnerKind   string                 `json:"owner_kind"`
	OwnerID     *uuid.UUID             `json:"owner_id"`
	Data        map[string]interface{} `json:"data" binding:"required"`
	IsPublished bool                   `json:"is_published"`
}

// CreateRecord validates and stores a new record
// POST /api/models/:model/records
func (h *Handler) CreateRecord(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	if !h.engine.Permissions.CanPerform(principal, mc.model, engine.ActionAdd, "") {
		respondError(c, errors.NewPermissionDeniedError("add", mc.model.Name))
		return
	}

	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.engine.Records.Create(mc.model, engine.WriteInput{
		OwnerKind:   req.OwnerKind,
		OwnerID:     req.OwnerID,
		Data:        req.Data,
		IsPublished: req.IsPublished,
		Actor:       currentActor(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// updateRecordRequest is the payload for record updates
type updateRecordRequest struct {
	Data map[string]interface{} `json:"data" binding:"required"`
}

// UpdateRecord re-validates and stores updated record data
// PUT /api/models/:model/records/:id
func (h *Handler) UpdateRecord(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	existing, err := h.engine.Records.Get(mc.model, recordID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !h.engine.Permissions.CanPerformOnRecord(principal, mc.model, engine.ActionChange, existing.Data) {
		respondError(c, errors.NewPermissionDeniedError("change", mc.model.Name))
		return
	}

	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.engine.Records.Update(mc.model, recordID, req.Data, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// publishRecordRequest toggles the published flag
type publishRecordRequest struct {
	Published bool `json:"published"`
}

// PublishRecord toggles a record's published flag
// POST /api/models/:model/records/:id/publish
func (h *Handler) PublishRecord(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	existing, err := h.engine.Records.Get(mc.model, recordID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !h.engine.Permissions.CanPerformOnRecord(principal, mc.model, engine.ActionChange, existing.Data) {
		respondError(c, errors.NewPermissionDeniedError("change", mc.model.Name))
		return
	}

	var req publishRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.Records.Publish(mc.model, recordID, req.Published, currentActor(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"published": req.Published})
}

// DeleteRecord removes a record
// DELETE /api/models/:model/records/:id
func (h *Handler) DeleteRecord(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	existing, err := h.engine.Records.Get(mc.model, recordID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !h.engine.Permissions.CanPerformOnRecord(principal, mc.model, engine.ActionDelete, existing.Data) {
		respondError(c, errors.NewPermissionDeniedError("delete", mc.model.Name))
		return
	}

	if err := h.engine.Records.Delete(mc.model, recordID, currentActor(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// =============================================================================
// UI SCHEMA ENDPOINTS
// =============================================================================

// GetFormSchema returns the rendering schema for a model's form
// GET /api/models/:model/form
func (h *Handler) GetFormSchema(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	if !h.engine.Permissions.CanPerform(principal, mc.model, engine.ActionView, "") {
		respondError(c, errors.NewPermissionDeniedError("view", mc.model.Name))
		return
	}

	c.JSON(http.StatusOK, engine.GenerateFormSchema(h.engine.Catalog, mc.model))
}

// GetDisplayFields returns the fields shown in list views for a model
// GET /api/models/:model/display-fields
func (h *Handler) GetDisplayFields(c *gin.Context) {
	_, mc, ok := h.resolveModel(c)
	if !ok {
		return
	}
	principal := currentPrincipal(c)

	if !h.engine.Permissions.CanPerform(principal, mc.model, engine.ActionView, "") {
		respondError(c, errors.NewPermissionDeniedError("view", mc.model.Name))
		return
	}

	c.JSON(http.StatusOK, gin.H{"fields": engine.DisplayFields(mc.model)})
}

// modelContext carries the resolved model through a request
type modelContext struct {
	model *models.DynamicModel
}

// parseIntParam parses an integer query param with a fallback
func parseIntParam(val string, fallback int) int {
	if val == "" {
		return fallback
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return fallback
}
