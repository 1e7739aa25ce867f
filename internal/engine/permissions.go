// Package engine - Permission Evaluator
// Decides allow/deny for (user, model, action, optional field) from role
// tiers plus explicit per-model grants. First match wins:
//   1. superuser role            -> allow
//   2. site admin on own site    -> allow
//   3. author on assigned site   -> allow view/add only, deny the rest
//   4. matching explicit grant   -> allow (honoring field restrictions)
//   5. default                   -> deny
package engine

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Action is a permission action on a model or record
type Action string

const (
	ActionView   Action = models.PermissionView
	ActionAdd    Action = models.PermissionAdd
	ActionChange Action = models.PermissionChange
	ActionDelete Action = models.PermissionDelete
)

// ValidAction reports whether the string names a known action.
func ValidAction(s string) bool {
	switch Action(s) {
	case ActionView, ActionAdd, ActionChange, ActionDelete:
		return true
	}
	return false
}

// Principal is the materialized caller identity the evaluator works from.
type Principal struct {
	UserID  uuid.UUID
	SiteIDs []uuid.UUID
	Roles   []models.Role
}

// MemberOf reports whether the principal is assigned to the site.
func (p *Principal) MemberOf(siteID uuid.UUID) bool {
	for _, id := range p.SiteIDs {
		if id == siteID {
			return true
		}
	}
	return false
}

// RoleIDs returns the principal's role IDs.
func (p *Principal) RoleIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Roles))
	for _, r := range p.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// Evaluator answers permission questions and manages explicit grants.
type Evaluator struct {
	db    *gorm.DB
	cache *grantCache
}

// NewEvaluator creates a new permission evaluator
func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db, cache: newGrantCache()}
}

// LoadPrincipal materializes a user with roles for evaluation.
func (e *Evaluator) LoadPrincipal(userID uuid.UUID) (*Principal, error) {
	var user models.User
	err := e.db.Preload("Roles").Where("id = ? AND is_active = true", userID).First(&user).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("user")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &Principal{
		UserID:  user.ID,
		SiteIDs: []uuid.UUID{user.SiteID},
		Roles:   user.Roles,
	}, nil
}

// CanPerform decides whether the principal may perform action on the model,
// optionally narrowed to a single field. Grant conditions are record-scoped
// and therefore ignored here; use CanPerformOnRecord when a record is in
// hand.
func (e *Evaluator) CanPerform(p *Principal, model *models.DynamicModel, action Action, field string) bool {
	return e.decide(p, model, action, field, nil)
}

// CanPerformOnRecord additionally evaluates grant conditions against the
// record's data map.
func (e *Evaluator) CanPerformOnRecord(p *Principal, model *models.DynamicModel, action Action, record map[string]interface{}) bool {
	return e.decide(p, model, action, "", record)
}

func (e *Evaluator) decide(p *Principal, model *models.DynamicModel, action Action, field string, record map[string]interface{}) bool {
	if p == nil {
		return false
	}

	for _, role := range p.Roles {
		if role.IsSuperuser {
			return true
		}
	}
	for _, role := range p.Roles {
		if role.IsSiteAdmin && p.MemberOf(model.SiteID) {
			return true
		}
	}
	for _, role := range p.Roles {
		if role.IsAuthor {
			return p.MemberOf(model.SiteID) && (action == ActionView || action == ActionAdd)
		}
	}

	grants, err := e.grantsFor(model.ID)
	if err != nil {
		return false
	}
	roleIDs := p.RoleIDs()
	for _, grant := range grants {
		if !grantMatchesPrincipal(grant, p.UserID, roleIDs) {
			continue
		}
		if grant.PermissionType != string(action) {
			continue
		}
		if field != "" && len(grant.FieldRestrictions) > 0 && !grant.FieldRestrictions.Contains(field) {
			continue
		}
		if record != nil && !conditionsHold(grant.Conditions, record) {
			continue
		}
		return true
	}
	return false
}

// AccessibleFields returns the field names of the model the principal may
// view, in schema order. Callers redact denied fields before returning a
// record.
func (e *Evaluator) AccessibleFields(p *Principal, model *models.DynamicModel) []string {
	var fields []string
	for _, f := range model.Fields {
		if e.CanPerform(p, model, ActionView, f.Name) {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// =============================================================================
// GRANT MANAGEMENT
// =============================================================================

// GrantInput carries a new explicit grant. Exactly one of UserID or RoleID
// must be set.
type GrantInput struct {
	ModelID           uuid.UUID
	UserID            *uuid.UUID
	RoleID            *uuid.UUID
	PermissionType    string
	FieldRestrictions []string
	Conditions        models.ConditionList
	Actor             *uuid.UUID
}

// Grant creates an explicit permission grant and invalidates the model's
// cached grant set.
func (e *Evaluator) Grant(in GrantInput) (*models.DynamicModelPermission, error) {
	if (in.UserID == nil) == (in.RoleID == nil) {
		return nil, errors.NewBadRequestError("exactly one of user or role must be set on a grant")
	}
	if !ValidAction(in.PermissionType) {
		return nil, errors.NewBadRequestError(fmt.Sprintf("invalid permission_type '%s'", in.PermissionType))
	}
	for _, c := range in.Conditions {
		switch c.Op {
		case models.ConditionOpEq, models.ConditionOpNe, models.ConditionOpIn, models.ConditionOpContains:
		default:
			return nil, errors.NewBadRequestError(fmt.Sprintf("invalid condition operator '%s'", c.Op))
		}
		if c.Field == "" {
			return nil, errors.NewBadRequestError("condition field cannot be empty")
		}
	}

	grant := &models.DynamicModelPermission{
		ID:                uuid.New(),
		ModelID:           in.ModelID,
		UserID:            in.UserID,
		RoleID:            in.RoleID,
		PermissionType:    in.PermissionType,
		FieldRestrictions: models.StringArray(in.FieldRestrictions),
		Conditions:        in.Conditions,
		CreatedBy:         in.Actor,
	}
	if err := e.db.Create(grant).Error; err != nil {
		return nil, fmt.Errorf("failed to create grant: %w", err)
	}
	e.cache.invalidate(in.ModelID)
	return grant, nil
}

// Revoke deletes a grant. A change to a grant is Revoke followed by Grant.
func (e *Evaluator) Revoke(grantID uuid.UUID) error {
	var grant models.DynamicModelPermission
	err := e.db.Where("id = ?", grantID).First(&grant).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NewNotFoundError("grant")
		}
		return fmt.Errorf("failed to load grant: %w", err)
	}
	if err := e.db.Delete(&grant).Error; err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	e.cache.invalidate(grant.ModelID)
	return nil
}

// ListGrants returns the explicit grants on a model.
func (e *Evaluator) ListGrants(modelID uuid.UUID) ([]models.DynamicModelPermission, error) {
	return e.grantsFor(modelID)
}

// InvalidateModel drops the cached grant set for a model. The version
// manager calls this on every promotion.
func (e *Evaluator) InvalidateModel(modelID uuid.UUID) {
	e.cache.invalidate(modelID)
}

func (e *Evaluator) grantsFor(modelID uuid.UUID) ([]models.DynamicModelPermission, error) {
	if grants, ok := e.cache.get(modelID); ok {
		return grants, nil
	}
	var grants []models.DynamicModelPermission
	if err := e.db.Where("model_id = ?", modelID).Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to load grants: %w", err)
	}
	e.cache.put(modelID, grants)
	return grants, nil
}

func grantMatchesPrincipal(grant models.DynamicModelPermission, userID uuid.UUID, roleIDs []uuid.UUID) bool {
	if grant.UserID != nil {
		return *grant.UserID == userID
	}
	if grant.RoleID != nil {
		for _, id := range roleIDs {
			if id == *grant.RoleID {
				return true
			}
		}
	}
	return false
}

// conditionsHold evaluates a grant's conjunctive condition set against a
// record data map.
func conditionsHold(conditions models.ConditionList, record map[string]interface{}) bool {
	for _, c := range conditions {
		value, present := record[c.Field]
		if !present {
			return false
		}
		switch c.Op {
		case models.ConditionOpEq:
			if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", c.Value) {
				return false
			}
		case models.ConditionOpNe:
			if fmt.Sprintf("%v", value) == fmt.Sprintf("%v", c.Value) {
				return false
			}
		case models.ConditionOpIn:
			allowed, ok := toStringSlice(c.Value)
			if !ok || !containsString(allowed, fmt.Sprintf("%v", value)) {
				return false
			}
		case models.ConditionOpContains:
			s, ok := value.(string)
			if !ok || !strings.Contains(s, fmt.Sprintf("%v", c.Value)) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}

// =============================================================================
// GRANT CACHE
// =============================================================================

// grantCache caches per-model grant sets. Invalidation triggers: every
// grant/revoke, and every version promotion.
type grantCache struct {
	mu     sync.RWMutex
	grants map[uuid.UUID][]models.DynamicModelPermission
}

func newGrantCache() *grantCache {
	return &grantCache{grants: make(map[uuid.UUID][]models.DynamicModelPermission)}
}

func (c *grantCache) get(modelID uuid.UUID) ([]models.DynamicModelPermission, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	grants, ok := c.grants[modelID]
	return grants, ok
}

func (c *grantCache) put(modelID uuid.UUID, grants []models.DynamicModelPermission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants[modelID] = grants
}

func (c *grantCache) invalidate(modelID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.grants, modelID)
}
