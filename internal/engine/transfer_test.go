package engine

import (
	"encoding/json"
	"testing"

	"github.com/aethra/strata/internal/models"
	"github.com/google/uuid"
)

func newTestTransfer() *Transfer {
	catalog := NewCatalog()
	owners := NewOwnerRegistry()
	validator := NewValidator(catalog)
	registry := NewSchemaRegistry(nil, validator, owners)
	versions := NewVersionManager(nil, validator)
	records := NewRecordStore(nil, validator, owners, nil)
	evaluator := NewEvaluator(nil)
	return NewTransfer(nil, registry, versions, records, evaluator)
}

func TestExportSchemaOnly(t *testing.T) {
	tr := newTestTransfer()
	model := &models.DynamicModel{
		ID:          uuid.New(),
		SiteID:      uuid.New(),
		Name:        "products",
		Description: "Product catalog",
		ModelType:   models.ModelTypeStandalone,
		Fields: models.FieldList{
			{Name: "title", Type: "text", Required: true},
			{Name: "price", Type: "number"},
		},
		Version: 3,
	}

	doc, err := tr.Export(model, false, false)
	if err != nil {
		t.Fatal(err)
	}

	if doc.Version != DocumentVersion {
		t.Errorf("expected document version %d, got %d", DocumentVersion, doc.Version)
	}
	if doc.Model.Name != "products" {
		t.Errorf("expected model name, got %s", doc.Model.Name)
	}
	if doc.Model.ModelType != models.ModelTypeStandalone {
		t.Errorf("expected model type, got %s", doc.Model.ModelType)
	}
	if len(doc.Model.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(doc.Model.Fields))
	}
	if len(doc.Data) != 0 || len(doc.Permissions) != 0 {
		t.Error("schema-only export must not carry data or permissions")
	}
}

func TestExportClonesFields(t *testing.T) {
	tr := newTestTransfer()
	model := &models.DynamicModel{
		ID:     uuid.New(),
		SiteID: uuid.New(),
		Name:   "products",
		Fields: models.FieldList{
			{Name: "status", Type: "select", Options: []string{"draft", "live"}},
		},
	}

	doc, err := tr.Export(model, false, false)
	if err != nil {
		t.Fatal(err)
	}

	doc.Model.Fields[0].Options[0] = "mutated"
	if model.Fields[0].Options[0] != "draft" {
		t.Error("export must not share option slices with the source model")
	}
}

func TestExportDocumentJSONContract(t *testing.T) {
	tr := newTestTransfer()
	model := &models.DynamicModel{
		ID:     uuid.New(),
		SiteID: uuid.New(),
		Name:   "products",
		Fields: models.FieldList{{Name: "title", Type: "text"}},
	}

	doc, err := tr.Export(model, false, false)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["version"]; !ok {
		t.Error("document must carry a version key")
	}
	modelPart, ok := decoded["model"].(map[string]interface{})
	if !ok {
		t.Fatal("document must carry a model object")
	}
	if modelPart["name"] != "products" {
		t.Errorf("unexpected model name %v", modelPart["name"])
	}
	if _, ok := decoded["data"]; ok {
		t.Error("empty data must be omitted")
	}
}

func TestImportRejectsBadDocuments(t *testing.T) {
	tr := newTestTransfer()
	site := uuid.New()

	if _, err := tr.Import(nil, site, false, nil); err == nil {
		t.Error("nil document must be rejected")
	}

	doc := &ExportDocument{Version: 99, Model: ModelExport{Name: "x", Fields: models.FieldList{{Name: "a", Type: "text"}}}}
	if _, err := tr.Import(doc, site, false, nil); err == nil {
		t.Error("unsupported document version must be rejected")
	}

	doc = &ExportDocument{Version: DocumentVersion, Model: ModelExport{Fields: models.FieldList{{Name: "a", Type: "text"}}}}
	if _, err := tr.Import(doc, site, false, nil); err == nil {
		t.Error("document without a model name must be rejected")
	}

	doc = &ExportDocument{Version: DocumentVersion, Model: ModelExport{Name: "x", Fields: models.FieldList{{Name: "a", Type: "nope"}}}}
	if _, err := tr.Import(doc, site, false, nil); err == nil {
		t.Error("document with invalid fields must be rejected")
	}
}
