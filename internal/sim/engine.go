package sim

import (
	"time"

	"emberstaff/server/internal/cast"
)

// CasterSnapshot captures the externally observable state of one caster.
type CasterSnapshot struct {
	ID                string   `json:"id"`
	Mana              float64  `json:"mana"`
	ManaMax           float64  `json:"manaMax"`
	Sources           []string `json:"sources,omitempty"`
	CooldownRemaining float64  `json:"cooldownRemaining,omitempty"`
	RTTMillis         int64    `json:"rttMillis,omitempty"`
}

// Snapshot is the per-tick broadcast state: all casters plus the instrument.
type Snapshot struct {
	Casters    []CasterSnapshot        `json:"casters"`
	Instrument cast.InstrumentSnapshot `json:"instrument"`
}

// OutEvent is an observable side effect raised during a step, delivered to
// subscribers alongside the state broadcast.
type OutEvent struct {
	Kind     string `json:"kind"`
	Tick     uint64 `json:"tick"`
	Source   string `json:"source,omitempty"`
	Ability  string `json:"ability,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Cue      string `json:"cue,omitempty"`
	Charging bool   `json:"charging,omitempty"`
}

// OutEvent kinds.
const (
	EventChargeState  = "chargeState"
	EventSpellCast    = "spellCast"
	EventCastRejected = "castRejected"
)

// LoopTickContext describes one scheduled simulation step.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult captures the outcome of one step for broadcast hooks.
type LoopStepResult struct {
	Tick           uint64
	Now            time.Time
	Delta          float64
	Snapshot       Snapshot
	Events         []OutEvent
	Commands       []Command
	RemovedCasters []string
	Duration       time.Duration
	Budget         time.Duration
	ClampedDelta   bool
	MaxDelta       float64
}

// LoopHooks let the hub observe loop scheduling without owning it.
type LoopHooks struct {
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	NextTick       func() uint64
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// EngineCore is the deterministic simulation the loop advances. Prepare runs
// before Apply each tick so command application observes the tick's time.
type EngineCore interface {
	Prepare(ctx LoopTickContext)
	Apply(cmds []Command) error
	Step(ctx LoopTickContext)
	Snapshot() Snapshot
	DrainEvents() []OutEvent
	RemovedCasters() []string
	Deps() Deps
}
