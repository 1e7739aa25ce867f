// Package models contains the core Strata data structures
// These models carry the per-site dynamic content types and their records
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// =============================================================================
// SYSTEM MODELS
// =============================================================================

// Site represents a tenant in the multi-site system
type Site struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Name      string    `json:"name" gorm:"not null;size:255"`
	Domain    string    `json:"domain" gorm:"size:255"`
	Settings  JSONB     `json:"settings" gorm:"type:jsonb;default:'{}'"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Users  []User         `json:"users,omitempty" gorm:"foreignKey:SiteID"`
	Models []DynamicModel `json:"models,omitempty" gorm:"foreignKey:SiteID"`
}

// User represents a system user
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	SiteID       uuid.UUID  `json:"site_id" gorm:"type:uuid;index"`
	Email        string     `json:"email" gorm:"not null;size:255"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	FirstName    string     `json:"first_name" gorm:"size:100"`
	LastName     string     `json:"last_name" gorm:"size:100"`
	Settings     JSONB      `json:"settings" gorm:"type:jsonb;default:'{}'"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Site  *Site  `json:"site,omitempty" gorm:"foreignKey:SiteID"`
	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;"`
}

// Role represents a user role. The capability flags drive the built-in
// evaluation tiers; a role without any flag relies entirely on explicit
// DynamicModelPermission grants.
type Role struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	SiteID      *uuid.UUID `json:"site_id" gorm:"type:uuid;index"` // NULL = global role
	Code        string     `json:"code" gorm:"not null;size:50"`
	Name        string     `json:"name" gorm:"not null;size:100"`
	Description string     `json:"description"`
	IsSuperuser bool       `json:"is_superuser" gorm:"default:false"`
	IsSiteAdmin bool       `json:"is_site_admin" gorm:"default:false"`
	IsAuthor    bool       `json:"is_author" gorm:"default:false"`
	IsSystem    bool       `json:"is_system" gorm:"default:false"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	Users []User `json:"users,omitempty" gorm:"many2many:user_roles;"`
}

// =============================================================================
// DYNAMIC MODEL ENGINE MODELS
// =============================================================================

// Model types
const (
	ModelTypeStandalone = "standalone"
	ModelTypeExtension  = "extension"
)

// DynamicModel is a site-defined content type: an ordered field list plus
// metadata. Each promoted version is its own row; (site_id, name, version)
// is unique and rows are never edited in place once records reference them.
type DynamicModel struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	SiteID      uuid.UUID  `json:"site_id" gorm:"type:uuid;index;uniqueIndex:idx_dynamic_models_site_name_version"`
	Name        string     `json:"name" gorm:"not null;size:100;uniqueIndex:idx_dynamic_models_site_name_version"`
	Description string     `json:"description"`
	ModelType   string     `json:"model_type" gorm:"not null;size:20;default:'standalone'"`
	TargetModel string     `json:"target_model" gorm:"size:100"`
	TableName   string     `json:"table_name" gorm:"not null;size:100"`
	Fields      FieldList  `json:"fields" gorm:"type:jsonb;not null"`
	Version     int        `json:"version" gorm:"not null;default:1;uniqueIndex:idx_dynamic_models_site_name_version"`
	ParentID    *uuid.UUID `json:"parent_model" gorm:"type:uuid"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	CreatedBy   *uuid.UUID `json:"created_by" gorm:"type:uuid"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	Site      *Site                  `json:"site,omitempty" gorm:"foreignKey:SiteID"`
	Parent    *DynamicModel          `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Versions  []DynamicModelVersion  `json:"versions,omitempty" gorm:"foreignKey:ModelID;constraint:OnDelete:CASCADE"`
	Extension *DynamicModelExtension `json:"extension,omitempty" gorm:"foreignKey:ModelID"`
}

// IsExtension reports whether the model extends a built-in content type.
func (m *DynamicModel) IsExtension() bool {
	return m.ModelType == ModelTypeExtension
}

// FieldByName returns the field definition with the given name, if any.
func (m *DynamicModel) FieldByName(name string) (FieldDefinition, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// DynamicModelVersion is an append-only audit entry written every time a
// version is promoted. FieldsSnapshot preserves the exact field list of the
// promoted version so history can be replayed even if model rows are purged.
type DynamicModelVersion struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ModelID        uuid.UUID      `json:"model_id" gorm:"type:uuid;index"`
	SiteID         uuid.UUID      `json:"site_id" gorm:"type:uuid;index"`
	ModelName      string         `json:"model_name" gorm:"not null;size:100;index"`
	Version        int            `json:"version" gorm:"not null"`
	ParentVersion  int            `json:"parent_version" gorm:"not null;default:0"`
	Description    string         `json:"description"`
	IsRollback     bool           `json:"is_rollback" gorm:"default:false"`
	FieldsSnapshot datatypes.JSON `json:"fields_snapshot" gorm:"not null"`
	CreatedBy      *uuid.UUID     `json:"created_by" gorm:"type:uuid"`
	CreatedAt      time.Time      `json:"created_at"`

	// Relations
	Model *DynamicModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
}

// Extension types
const (
	ExtensionTypeFieldAddition = "field_addition"
)

// DynamicModelExtension links an extension model to the built-in content
// type it bolts fields onto. MigrationApplied flips false to true exactly
// once, when the extension is attached.
type DynamicModelExtension struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ModelID          uuid.UUID  `json:"model_id" gorm:"type:uuid;uniqueIndex"`
	TargetModel      string     `json:"target_model" gorm:"not null;size:100;index"`
	ExtensionType    string     `json:"extension_type" gorm:"not null;size:30;default:'field_addition'"`
	MigrationApplied bool       `json:"migration_applied" gorm:"default:false"`
	AppliedAt        *time.Time `json:"applied_at"`
	CreatedAt        time.Time  `json:"created_at"`

	// Relations
	Model *DynamicModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
}

// Permission types
const (
	PermissionView   = "view"
	PermissionAdd    = "add"
	PermissionChange = "change"
	PermissionDelete = "delete"
)

// DynamicModelPermission is an explicit grant tying a user or a role (exactly
// one of the two) to an allowed action on a model. A change to a grant is a
// revoke plus a fresh grant; rows are never mutated in place.
type DynamicModelPermission struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ModelID           uuid.UUID     `json:"model_id" gorm:"type:uuid;index"`
	UserID            *uuid.UUID    `json:"user_id" gorm:"type:uuid;index"`
	RoleID            *uuid.UUID    `json:"role_id" gorm:"type:uuid;index"`
	PermissionType    string        `json:"permission_type" gorm:"not null;size:20"`
	FieldRestrictions StringArray   `json:"field_restrictions" gorm:"type:jsonb"`
	Conditions        ConditionList `json:"conditions" gorm:"type:jsonb"`
	CreatedBy         *uuid.UUID    `json:"created_by" gorm:"type:uuid"`
	CreatedAt         time.Time     `json:"created_at"`

	// Relations
	Model *DynamicModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
	User  *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Role  *Role         `json:"role,omitempty" gorm:"foreignKey:RoleID"`
}

// Owner kinds for records (discriminated union over what a record hangs off)
const (
	OwnerKindDynamic = "dynamic"
	OwnerKindPost    = "posts.Post"
	OwnerKindPage    = "pages.Page"
)

// DynamicModelData is one record conforming (at write time) to a model's
// field list. SchemaVersion pins the version the data was validated against;
// existing records are never force-migrated when the schema evolves.
type DynamicModelData struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ModelID       uuid.UUID  `json:"model_id" gorm:"type:uuid;index"`
	SiteID        uuid.UUID  `json:"site_id" gorm:"type:uuid;index"`
	OwnerKind     string     `json:"owner_kind" gorm:"not null;size:50;default:'dynamic'"`
	OwnerID       *uuid.UUID `json:"owner_id" gorm:"type:uuid;index"`
	Data          JSONB      `json:"data" gorm:"type:jsonb;not null"`
	SchemaVersion int        `json:"schema_version" gorm:"not null;default:1"`
	IsPublished   bool       `json:"is_published" gorm:"default:false"`
	CreatedBy     *uuid.UUID `json:"created_by" gorm:"type:uuid"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Relations
	Model *DynamicModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
}

// =============================================================================
// AUDIT MODEL
// =============================================================================

// AuditLog represents an audit trail entry for record writes
type AuditLog struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	SiteID        uuid.UUID   `json:"site_id" gorm:"type:uuid;index"`
	UserID        *uuid.UUID  `json:"user_id" gorm:"type:uuid"`
	ModelID       *uuid.UUID  `json:"model_id" gorm:"type:uuid"`
	ModelName     string      `json:"model_name" gorm:"size:100;index"`
	RecordID      *uuid.UUID  `json:"record_id" gorm:"type:uuid"`
	Action        string      `json:"action" gorm:"not null;size:30"`
	OldValues     JSONB       `json:"old_values" gorm:"type:jsonb"`
	NewValues     JSONB       `json:"new_values" gorm:"type:jsonb"`
	ChangedFields StringArray `json:"changed_fields" gorm:"type:jsonb"`
	CreatedAt     time.Time   `json:"created_at" gorm:"index"`

	// Relations
	User  *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Model *DynamicModel `json:"model,omitempty" gorm:"foreignKey:ModelID"`
}
