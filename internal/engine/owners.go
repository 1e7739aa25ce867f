// Package engine - Owner kinds
// A record attaches either to its dynamic model ("dynamic") or to a row of a
// built-in content type. The union {kind, id} is resolved through this
// lookup table instead of ad-hoc branching in callers.
package engine

import (
	"sort"
	"sync"

	"github.com/aethra/strata/internal/errors"
	"github.com/aethra/strata/internal/models"
)

// OwnerKind describes one attachable record owner.
type OwnerKind struct {
	Kind       string `json:"kind"`
	Label      string `json:"label"`
	Extendable bool   `json:"extendable"` // may be the target of an extension model
}

// OwnerRegistry is the process-wide owner kind table.
type OwnerRegistry struct {
	mu    sync.RWMutex
	kinds map[string]OwnerKind
}

// NewOwnerRegistry returns a registry seeded with the built-in owner kinds.
func NewOwnerRegistry() *OwnerRegistry {
	r := &OwnerRegistry{kinds: make(map[string]OwnerKind)}
	r.Register(OwnerKind{Kind: models.OwnerKindDynamic, Label: "Dynamic Model"})
	r.Register(OwnerKind{Kind: models.OwnerKindPost, Label: "Post", Extendable: true})
	r.Register(OwnerKind{Kind: models.OwnerKindPage, Label: "Page", Extendable: true})
	return r
}

// Register adds an owner kind. Startup-time only, like the field catalog.
func (r *OwnerRegistry) Register(k OwnerKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[k.Kind] = k
}

// Resolve returns the owner kind for a discriminator value.
func (r *OwnerRegistry) Resolve(kind string) (OwnerKind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[kind]
	if !ok {
		return OwnerKind{}, errors.NewBadRequestError("unknown owner kind '" + kind + "'")
	}
	return k, nil
}

// ResolveTarget returns the owner kind an extension may attach to.
func (r *OwnerRegistry) ResolveTarget(kind string) (OwnerKind, error) {
	k, err := r.Resolve(kind)
	if err != nil {
		return OwnerKind{}, errors.NewExtensionError("unknown target model '" + kind + "'")
	}
	if !k.Extendable {
		return OwnerKind{}, errors.NewExtensionError("target model '" + kind + "' cannot be extended")
	}
	return k, nil
}

// List returns every owner kind sorted by discriminator.
func (r *OwnerRegistry) List() []OwnerKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OwnerKind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
