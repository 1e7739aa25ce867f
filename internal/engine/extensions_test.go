package engine

import (
	stderrors "errors"
	"testing"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
	"github.com/google/uuid"
)

func TestApplyRejectsStandaloneModel(t *testing.T) {
	m := NewExtensionManager(nil, NewOwnerRegistry())

	model := &models.DynamicModel{
		ID:        uuid.New(),
		Name:      "products",
		ModelType: models.ModelTypeStandalone,
	}

	err := m.Apply(model)
	if err == nil {
		t.Fatal("expected error applying a standalone model")
	}
	var nae *errors.NotAnExtensionError
	if !stderrors.As(err, &nae) {
		t.Errorf("expected NotAnExtensionError, got %T", err)
	}
}

func TestApplyRejectsBadTarget(t *testing.T) {
	m := NewExtensionManager(nil, NewOwnerRegistry())

	unknown := &models.DynamicModel{
		ID:          uuid.New(),
		Name:        "comment_meta",
		ModelType:   models.ModelTypeExtension,
		TargetModel: "comments.Comment",
	}
	if err := m.Apply(unknown); err == nil {
		t.Error("unknown target must be rejected")
	}

	notExtendable := &models.DynamicModel{
		ID:          uuid.New(),
		Name:        "dynamic_meta",
		ModelType:   models.ModelTypeExtension,
		TargetModel: models.OwnerKindDynamic,
	}
	err := m.Apply(notExtendable)
	if err == nil {
		t.Fatal("non-extendable target must be rejected")
	}
	var ext *errors.ExtensionError
	if !stderrors.As(err, &ext) {
		t.Errorf("expected ExtensionError, got %T", err)
	}
}
