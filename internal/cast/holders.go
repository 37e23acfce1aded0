package cast

// RoleProvider reports whether an input source is the caster's dominant hand.
// It is injected rather than discovered so the registry never searches sibling
// components at runtime.
type RoleProvider interface {
	IsDominant(id InputSourceID) bool
}

// RoleProviderFunc adapts functions into RoleProvider.
type RoleProviderFunc func(id InputSourceID) bool

// IsDominant implements RoleProvider.
func (f RoleProviderFunc) IsDominant(id InputSourceID) bool {
	if f == nil {
		return false
	}
	return f(id)
}

// HolderRef is one input source currently grasping the instrument. Primary is
// derived state, recomputed whenever the holder set changes.
type HolderRef struct {
	ID      InputSourceID
	Primary bool
}

// HolderRegistry tracks the ordered set of holders and which one is primary.
// Uniqueness is by InputSourceID; insertion order breaks ties between several
// dominant-hand holders so the primary stays stable across recomputes.
type HolderRegistry struct {
	roles   RoleProvider
	holders []HolderRef
}

// NewHolderRegistry constructs an empty registry using the provided role
// capability.
func NewHolderRegistry(roles RoleProvider) *HolderRegistry {
	return &HolderRegistry{roles: roles}
}

// Add inserts a holder and recomputes the primary designation. Adding an
// already-present holder is a no-op; the return value reports whether the set
// changed.
func (r *HolderRegistry) Add(id InputSourceID) bool {
	if r == nil || id == "" {
		return false
	}
	if r.Contains(id) {
		return false
	}
	r.holders = append(r.holders, HolderRef{ID: id})
	r.recomputePrimary()
	return true
}

// Remove drops a holder and recomputes the primary designation from the
// remaining holders. The return value reports whether the holder was present.
// Forced cancellation of a session owned by the removed holder is the
// instrument's responsibility, not the registry's.
func (r *HolderRegistry) Remove(id InputSourceID) bool {
	if r == nil {
		return false
	}
	for i, ref := range r.holders {
		if ref.ID == id {
			r.holders = append(r.holders[:i], r.holders[i+1:]...)
			r.recomputePrimary()
			return true
		}
	}
	return false
}

// Contains reports whether the input source currently holds the instrument.
func (r *HolderRegistry) Contains(id InputSourceID) bool {
	if r == nil {
		return false
	}
	for _, ref := range r.holders {
		if ref.ID == id {
			return true
		}
	}
	return false
}

// IsPrimary reports whether the input source is the current primary holder.
func (r *HolderRegistry) IsPrimary(id InputSourceID) bool {
	if r == nil {
		return false
	}
	for _, ref := range r.holders {
		if ref.ID == id {
			return ref.Primary
		}
	}
	return false
}

// Primary returns the current primary holder, if any. The second result is
// false when the set is empty or no holder reports a dominant role.
func (r *HolderRegistry) Primary() (InputSourceID, bool) {
	if r == nil {
		return "", false
	}
	for _, ref := range r.holders {
		if ref.Primary {
			return ref.ID, true
		}
	}
	return "", false
}

// Len reports the number of holders.
func (r *HolderRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.holders)
}

// Empty reports whether nothing grasps the instrument.
func (r *HolderRegistry) Empty() bool {
	return r.Len() == 0
}

// Holders returns a copy of the holder set in insertion order.
func (r *HolderRegistry) Holders() []HolderRef {
	if r == nil || len(r.holders) == 0 {
		return nil
	}
	copied := make([]HolderRef, len(r.holders))
	copy(copied, r.holders)
	return copied
}

// recomputePrimary asks each holder's role capability in insertion order and
// marks the first dominant one. When no holder is dominant the primary is
// undefined and nobody may start a session.
func (r *HolderRegistry) recomputePrimary() {
	assigned := false
	for i := range r.holders {
		r.holders[i].Primary = false
		if assigned || r.roles == nil {
			continue
		}
		if r.roles.IsDominant(r.holders[i].ID) {
			r.holders[i].Primary = true
			assigned = true
		}
	}
}
