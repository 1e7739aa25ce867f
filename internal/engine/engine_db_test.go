package engine

import (
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testTables mirrors the production DDL in sqlite form. The uuid defaults
// of the real schema are server-side, so the tables are created by hand
// instead of AutoMigrate.
var testTables = []string{
	`CREATE TABLE roles (
		id TEXT PRIMARY KEY,
		site_id TEXT,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		is_superuser INTEGER DEFAULT 0,
		is_site_admin INTEGER DEFAULT 0,
		is_author INTEGER DEFAULT 0,
		is_system INTEGER DEFAULT 0,
		is_active INTEGER DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE dynamic_models (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		model_type TEXT NOT NULL DEFAULT 'standalone',
		target_model TEXT,
		table_name TEXT NOT NULL,
		fields TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		parent_id TEXT,
		is_active INTEGER DEFAULT 1,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (site_id, name, version)
	)`,
	`CREATE TABLE dynamic_model_versions (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		version INTEGER NOT NULL,
		parent_version INTEGER NOT NULL DEFAULT 0,
		description TEXT,
		is_rollback INTEGER DEFAULT 0,
		fields_snapshot TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE dynamic_model_extensions (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL UNIQUE,
		target_model TEXT NOT NULL,
		extension_type TEXT NOT NULL DEFAULT 'field_addition',
		migration_applied INTEGER DEFAULT 0,
		applied_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE dynamic_model_permissions (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		user_id TEXT,
		role_id TEXT,
		permission_type TEXT NOT NULL,
		field_restrictions TEXT,
		conditions TEXT,
		created_by TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE dynamic_model_data (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		owner_kind TEXT NOT NULL DEFAULT 'dynamic',
		owner_id TEXT,
		data TEXT NOT NULL,
		schema_version INTEGER NOT NULL DEFAULT 1,
		is_published INTEGER DEFAULT 0,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE audit_logs (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		user_id TEXT,
		model_id TEXT,
		model_name TEXT,
		record_id TEXT,
		action TEXT NOT NULL,
		old_values TEXT,
		new_values TEXT,
		changed_fields TEXT,
		created_at DATETIME
	)`,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "strata_test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	for _, stmt := range testTables {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create test table: %v", err)
		}
	}
	return db
}

func seedRole(t *testing.T, db *gorm.DB, code string) models.Role {
	t.Helper()
	role := models.Role{ID: uuid.New(), Code: code, Name: code}
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("failed to seed role: %v", err)
	}
	return role
}

func articleFields() models.FieldList {
	return models.FieldList{
		{Name: "title", Type: "text", Required: true, MaxLength: intPtr(255)},
		{Name: "status", Type: "select", Options: []string{"draft", "live"}},
	}
}

func TestGrantSurvivesVersionPromotion(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	siteID := uuid.New()
	role := seedRole(t, db, "editor")

	model, err := eng.Registry.Create(CreateInput{SiteID: siteID, Name: "articles", Fields: articleFields()})
	if err != nil {
		t.Fatalf("failed to create model: %v", err)
	}

	userID := uuid.New()
	if _, err := eng.Permissions.Grant(GrantInput{ModelID: model.ID, UserID: &userID, PermissionType: models.PermissionView}); err != nil {
		t.Fatalf("failed to grant view: %v", err)
	}
	if _, err := eng.Permissions.Grant(GrantInput{ModelID: model.ID, RoleID: &role.ID, PermissionType: models.PermissionChange}); err != nil {
		t.Fatalf("failed to grant change: %v", err)
	}

	viewer := &Principal{UserID: userID, SiteIDs: []uuid.UUID{siteID}}
	editor := &Principal{UserID: uuid.New(), SiteIDs: []uuid.UUID{siteID}, Roles: []models.Role{role}}
	if !eng.Permissions.CanPerform(viewer, model, ActionView, "") {
		t.Fatal("expected user grant to allow view on v1")
	}
	if !eng.Permissions.CanPerform(editor, model, ActionChange, "") {
		t.Fatal("expected role grant to allow change on v1")
	}

	newFields := append(articleFields(), models.FieldDefinition{Name: "summary", Type: "textarea"})
	head, err := eng.Versions.CreateVersion(model, newFields, "add summary", nil)
	if err != nil {
		t.Fatalf("failed to promote version: %v", err)
	}

	if !eng.Permissions.CanPerform(viewer, head, ActionView, "") {
		t.Error("expected user grant to keep applying after promotion")
	}
	if !eng.Permissions.CanPerform(editor, head, ActionChange, "") {
		t.Error("expected role grant to keep applying after promotion")
	}

	grants, err := eng.Permissions.ListGrants(head.ID)
	if err != nil {
		t.Fatalf("failed to list grants: %v", err)
	}
	if len(grants) != 2 {
		t.Errorf("expected both grants on the new head, got %d", len(grants))
	}
	old, err := eng.Permissions.ListGrants(model.ID)
	if err != nil {
		t.Fatalf("failed to list old grants: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("expected no grants left on the old row, got %d", len(old))
	}

	doc, err := eng.Transfer.Export(head, false, true)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	if len(doc.Permissions) != 1 || doc.Permissions[0].RoleCode != "editor" {
		t.Errorf("expected the role grant in the export after promotion, got %+v", doc.Permissions)
	}
}

func TestRollbackRestoresFieldsForward(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	siteID := uuid.New()

	v1, err := eng.Registry.Create(CreateInput{SiteID: siteID, Name: "articles", Fields: articleFields()})
	if err != nil {
		t.Fatalf("failed to create model: %v", err)
	}
	withSummary := append(articleFields(), models.FieldDefinition{Name: "summary", Type: "textarea"})
	if _, err := eng.Versions.CreateVersion(v1, withSummary, "add summary", nil); err != nil {
		t.Fatalf("failed to promote v2: %v", err)
	}

	v3, err := eng.Versions.Rollback(v1, 1, nil)
	if err != nil {
		t.Fatalf("failed to roll back: %v", err)
	}
	if v3.Version != 3 {
		t.Errorf("expected rollback to promote version 3, got %d", v3.Version)
	}
	if got, want := len(v3.Fields), len(articleFields()); got != want {
		t.Fatalf("expected %d fields after rollback, got %d", want, got)
	}
	title := v3.Fields[0]
	if title.Name != "title" || !title.Required || title.MaxLength == nil || *title.MaxLength != 255 {
		t.Errorf("rollback did not restore the v1 title field: %+v", title)
	}

	entries, err := eng.Versions.History(siteID, "articles")
	if err != nil {
		t.Fatalf("failed to load history: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Version != i+1 {
			t.Errorf("expected history entry %d to be version %d, got %d", i, i+1, e.Version)
		}
	}
	last := entries[2]
	if !last.IsRollback || last.ParentVersion != 2 {
		t.Errorf("expected a rollback entry with parent 2, got %+v", last)
	}

	current, err := eng.Registry.GetByName(siteID, "articles")
	if err != nil {
		t.Fatalf("failed to resolve current version: %v", err)
	}
	if current.Version != 3 {
		t.Errorf("expected current version 3, got %d", current.Version)
	}
}

func TestApplyExtensionIdempotentOnStore(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	siteID := uuid.New()

	model, err := eng.Registry.Create(CreateInput{
		SiteID:      siteID,
		Name:        "product details",
		ModelType:   models.ModelTypeExtension,
		TargetModel: models.OwnerKindPost,
		Fields:      models.FieldList{{Name: "sku", Type: "text", Required: true}},
	})
	if err != nil {
		t.Fatalf("failed to create extension model: %v", err)
	}

	if err := eng.Extensions.Apply(model); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	first, err := eng.Extensions.Status(model.ID)
	if err != nil {
		t.Fatalf("failed to load status: %v", err)
	}
	if !first.MigrationApplied || first.AppliedAt == nil {
		t.Fatalf("expected applied status, got %+v", first)
	}

	if err := eng.Extensions.Apply(model); err != nil {
		t.Fatalf("re-apply should be a no-op, got: %v", err)
	}
	second, err := eng.Extensions.Status(model.ID)
	if err != nil {
		t.Fatalf("failed to reload status: %v", err)
	}
	if !second.AppliedAt.Equal(*first.AppliedAt) {
		t.Errorf("re-apply moved applied_at from %v to %v", first.AppliedAt, second.AppliedAt)
	}
	var links int64
	if err := db.Model(&models.DynamicModelExtension{}).Where("model_id = ?", model.ID).Count(&links).Error; err != nil {
		t.Fatalf("failed to count links: %v", err)
	}
	if links != 1 {
		t.Errorf("expected exactly one extension link, got %d", links)
	}

	merged, err := eng.Extensions.FieldsFor(siteID, models.OwnerKindPost)
	if err != nil {
		t.Fatalf("failed to merge extension fields: %v", err)
	}
	found := false
	for _, f := range merged {
		if f.Name == "sku" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected sku in merged fields for %s, got %v", models.OwnerKindPost, merged.Names())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	source := uuid.New()
	target := uuid.New()
	role := seedRole(t, db, "editor")

	model, err := eng.Registry.Create(CreateInput{SiteID: source, Name: "articles", Fields: articleFields()})
	if err != nil {
		t.Fatalf("failed to create model: %v", err)
	}
	if _, err := eng.Records.Create(model, WriteInput{
		Data:        map[string]interface{}{"title": "Hello", "status": "live"},
		IsPublished: true,
	}); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
	if _, err := eng.Permissions.Grant(GrantInput{
		ModelID:           model.ID,
		RoleID:            &role.ID,
		PermissionType:    models.PermissionView,
		FieldRestrictions: []string{"title"},
	}); err != nil {
		t.Fatalf("failed to grant: %v", err)
	}

	doc, err := eng.Transfer.Export(model, true, true)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}

	imported, err := eng.Transfer.Import(doc, target, false, nil)
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if imported.SiteID != target || imported.Version != 1 {
		t.Errorf("unexpected imported model: site %s version %d", imported.SiteID, imported.Version)
	}
	if got, want := len(imported.Fields), len(model.Fields); got != want {
		t.Errorf("expected %d imported fields, got %d", want, got)
	}

	page, err := eng.Records.List(imported, ListOptions{})
	if err != nil {
		t.Fatalf("failed to list imported records: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 imported record, got %d", page.Total)
	}
	if got := page.Records[0].Data["title"]; got != "Hello" {
		t.Errorf("expected record data to survive the round trip, got %v", got)
	}
	if !page.Records[0].IsPublished {
		t.Error("expected published flag to survive the round trip")
	}

	grants, err := eng.Permissions.ListGrants(imported.ID)
	if err != nil {
		t.Fatalf("failed to list imported grants: %v", err)
	}
	if len(grants) != 1 || grants[0].RoleID == nil || *grants[0].RoleID != role.ID {
		t.Fatalf("expected the role grant to be imported, got %+v", grants)
	}
	if !grants[0].FieldRestrictions.Contains("title") {
		t.Errorf("expected field restrictions to survive, got %v", grants[0].FieldRestrictions)
	}

	_, err = eng.Transfer.Import(doc, target, false, nil)
	var exists *errors.AlreadyExistsError
	if !stderrors.As(err, &exists) {
		t.Fatalf("expected AlreadyExists on re-import, got %v", err)
	}

	overwritten, err := eng.Transfer.Import(doc, target, true, nil)
	if err != nil {
		t.Fatalf("failed to import with overwrite: %v", err)
	}
	if overwritten.Version != 2 {
		t.Errorf("expected overwrite to promote version 2, got %d", overwritten.Version)
	}
}
