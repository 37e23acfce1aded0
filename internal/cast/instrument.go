package cast

import "time"

// InstrumentConfig wires the instrument's collaborators. Roles is required;
// the rest default to no-op implementations.
type InstrumentConfig struct {
	Roles   RoleProvider
	Visuals ProgressSync
	Events  EventSink
	Audio   AudioCue
}

// Instrument is the composition root for the shared casting instrument. It
// exclusively owns the holder set, the charge session, and (through the
// visual sync) the visual actor handles. The caster's resource pool and
// cooldown records are only referenced, never copied or cached beyond a
// single decision.
type Instrument struct {
	registry *HolderRegistry
	machine  *Machine
	visuals  ProgressSync

	ability *AbilityDescriptor
	caster  Caster
	pose    Pose
}

// NewInstrument constructs an idle, unheld instrument.
func NewInstrument(cfg InstrumentConfig) *Instrument {
	visuals := cfg.Visuals
	if visuals == nil {
		visuals = NopProgressSync{}
	}
	inst := &Instrument{
		registry: NewHolderRegistry(cfg.Roles),
		visuals:  visuals,
	}
	inst.machine = newMachine(machineDeps{
		holders: inst.registry,
		visuals: visuals,
		events:  cfg.Events,
		audio:   cfg.Audio,
		ability: func() *AbilityDescriptor { return inst.ability },
		caster:  func() Caster { return inst.caster },
		anchor:  func() Pose { return inst.pose },
	})
	return inst
}

// AddHolder registers a grasping input source. The first grab binds the
// caster reference used for resource and cooldown checks; later grabs by the
// same caster's other hand keep the existing binding.
func (i *Instrument) AddHolder(id InputSourceID, caster Caster) {
	if i == nil {
		return
	}
	if !i.registry.Add(id) {
		return
	}
	if i.caster == nil {
		i.caster = caster
	}
}

// RemoveHolder drops a grasping input source. Removing the active session's
// owner force-cancels the session before anything else may start this tick;
// removing the last holder clears the cached caster reference.
func (i *Instrument) RemoveHolder(id InputSourceID, now time.Time) {
	if i == nil {
		return
	}
	if !i.registry.Remove(id) {
		return
	}
	if session := i.machine.Session(); session != nil && session.Owner == id {
		i.machine.ForceCancel(now)
	}
	if i.registry.Empty() {
		i.caster = nil
	}
}

// Equip selects the ability used by subsequent charges. Equipping while a
// session is active is rejected; the descriptor must stay immutable for the
// whole cast.
func (i *Instrument) Equip(ability *AbilityDescriptor) bool {
	if i == nil || i.machine.Charging() {
		return false
	}
	i.ability = ability
	return true
}

// Ability returns the equipped descriptor, or nil.
func (i *Instrument) Ability() *AbilityDescriptor {
	if i == nil {
		return nil
	}
	return i.ability
}

// Caster returns the bound caster reference, or nil when unheld.
func (i *Instrument) Caster() Caster {
	if i == nil {
		return nil
	}
	return i.caster
}

// SetPose moves the instrument's spatial anchor.
func (i *Instrument) SetPose(pose Pose) {
	if i == nil {
		return
	}
	i.pose = pose
}

// Pose reports the instrument's spatial anchor.
func (i *Instrument) Pose() Pose {
	if i == nil {
		return Pose{}
	}
	return i.pose
}

// Holders returns a copy of the current holder set.
func (i *Instrument) Holders() []HolderRef {
	if i == nil {
		return nil
	}
	return i.registry.Holders()
}

// IsPrimary reports whether the input source is the current primary holder.
func (i *Instrument) IsPrimary(id InputSourceID) bool {
	if i == nil {
		return false
	}
	return i.registry.IsPrimary(id)
}

// StartCharge forwards a press from the requester to the session machine.
func (i *Instrument) StartCharge(requester InputSourceID, now time.Time) RejectReason {
	if i == nil {
		return RejectNoSession
	}
	return i.machine.StartCharge(requester, now)
}

// FinishCharge forwards a trigger release with the measured hold duration.
func (i *Instrument) FinishCharge(requester InputSourceID, elapsed time.Duration, now time.Time) RejectReason {
	if i == nil {
		return RejectNoSession
	}
	return i.machine.FinishCharge(requester, elapsed, now)
}

// CancelCharge forwards an explicit cancel request.
func (i *Instrument) CancelCharge(requester InputSourceID, now time.Time) RejectReason {
	if i == nil {
		return RejectNoSession
	}
	return i.machine.CancelCharge(requester, now)
}

// Tick advances the session machine and the visual continuations. Called once
// per simulation tick after all holder mutations applied.
func (i *Instrument) Tick(now time.Time) {
	if i == nil {
		return
	}
	i.machine.Tick(now)
	i.visuals.Tick(now)
}

// Charging reports whether a session is active.
func (i *Instrument) Charging() bool {
	if i == nil {
		return false
	}
	return i.machine.Charging()
}

// Session returns the active charge session, or nil.
func (i *Instrument) Session() *ChargeSession {
	if i == nil {
		return nil
	}
	return i.machine.Session()
}

// Progress reports the session's last forwarded progress value.
func (i *Instrument) Progress() float64 {
	if i == nil {
		return 0
	}
	return i.machine.Progress()
}

// Teardown releases everything immediately: any session is force-cancelled
// and visual handles are dropped without a fade-out.
func (i *Instrument) Teardown(now time.Time) {
	if i == nil {
		return
	}
	i.machine.ForceCancel(now)
	i.visuals.ReleaseAll()
	i.caster = nil
}

// Snapshot captures the externally observable instrument state for a
// broadcast frame.
type InstrumentSnapshot struct {
	Holders   []HolderRef   `json:"holders"`
	Primary   InputSourceID `json:"primary,omitempty"`
	Charging  bool          `json:"charging"`
	Progress  float64       `json:"progress"`
	Complete  bool          `json:"complete"`
	AbilityID string        `json:"abilityId,omitempty"`
	Pose      Pose          `json:"pose"`
}

// Snapshot returns a copy of the observable state.
func (i *Instrument) Snapshot() InstrumentSnapshot {
	if i == nil {
		return InstrumentSnapshot{}
	}
	snap := InstrumentSnapshot{
		Holders:  i.registry.Holders(),
		Charging: i.machine.Charging(),
		Progress: i.machine.Progress(),
		Pose:     i.pose,
	}
	if primary, ok := i.registry.Primary(); ok {
		snap.Primary = primary
	}
	if session := i.machine.Session(); session != nil {
		snap.Complete = session.Complete
	}
	if i.ability != nil {
		snap.AbilityID = i.ability.ID
	}
	return snap
}
