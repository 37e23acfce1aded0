package cast

import "time"

// InputSourceID identifies a hand controller. It is opaque to the casting
// core and stable for the lifetime of the controller's session.
type InputSourceID string

// Pose is the spatial anchor handed to ability effects and visual actors.
type Pose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Offset translates the pose by the provided deltas.
func (p Pose) Offset(dx, dy, dz float64) Pose {
	return Pose{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// VisualActorConfig describes one ephemeral visual actor attached to a charge
// session. AppearDelay is measured from session start and is always honored,
// even when the session ends before the actor becomes visible.
type VisualActorConfig struct {
	Template       string
	PositionOffset Pose
	AppearDelay    time.Duration
}

// AbilityEffect is the capability invoked when a charge completes. Each
// ability variant supplies its own implementation; selection happens at equip
// time rather than through a type hierarchy.
type AbilityEffect interface {
	Execute(anchor Pose, caster Caster)
}

// AbilityEffectFunc adapts plain functions into AbilityEffect.
type AbilityEffectFunc func(anchor Pose, caster Caster)

// Execute implements AbilityEffect.
func (f AbilityEffectFunc) Execute(anchor Pose, caster Caster) {
	if f == nil {
		return
	}
	f(anchor, caster)
}

// AbilityDescriptor is the immutable-per-cast configuration of an equipped
// ability. The instrument never mutates a descriptor after equip.
type AbilityDescriptor struct {
	ID           string
	Name         string
	ManaCost     float64
	Cooldown     time.Duration
	MinCharge    time.Duration
	VisualActors []VisualActorConfig
	Effect       AbilityEffect
}

// ResourcePool is the consumable resource owned by a caster. The instrument
// only checks and consumes; it never reaches into the balance directly.
type ResourcePool interface {
	CanConsume(amount float64) bool
	Consume(amount float64) bool
}

// Caster is the external entity that owns the resource pool and cooldown
// records referenced during a charge. The instrument caches at most one
// caster reference and drops it when the last holder releases the grip.
type Caster interface {
	CasterID() string
	Resource() ResourcePool
	Cooldowns() *CooldownTracker
}
