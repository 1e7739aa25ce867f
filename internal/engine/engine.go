// Package engine - wiring
package engine

import (
	"gorm.io/gorm"
)

// Engine bundles the dynamic model services over one database handle.
type Engine struct {
	Catalog     *Catalog
	Owners      *OwnerRegistry
	Validator   *Validator
	Registry    *SchemaRegistry
	Versions    *VersionManager
	Extensions  *ExtensionManager
	Permissions *Evaluator
	Records     *RecordStore
	Transfer    *Transfer
}

// New wires up the engine. Version promotion invalidates the permission
// grant cache for the affected lineage.
func New(db *gorm.DB) *Engine {
	catalog := NewCatalog()
	owners := NewOwnerRegistry()
	validator := NewValidator(catalog)
	registry := NewSchemaRegistry(db, validator, owners)
	versions := NewVersionManager(db, validator)
	extensions := NewExtensionManager(db, owners)
	permissions := NewEvaluator(db)
	records := NewRecordStore(db, validator, owners, extensions)
	transfer := NewTransfer(db, registry, versions, records, permissions)

	versions.OnPromote(permissions.InvalidateModel)

	return &Engine{
		Catalog:     catalog,
		Owners:      owners,
		Validator:   validator,
		Registry:    registry,
		Versions:    versions,
		Extensions:  extensions,
		Permissions: permissions,
		Records:     records,
		Transfer:    transfer,
	}
}
