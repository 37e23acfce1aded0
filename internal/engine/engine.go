package engine

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"emberstaff/server/internal/cast"
	"emberstaff/server/internal/mana"
	"emberstaff/server/internal/sim"
	"emberstaff/server/internal/vfx"
	"emberstaff/server/logging"
	loggingcasting "emberstaff/server/logging/casting"
)

// AbilitySource resolves ability identifiers to compiled descriptors. The
// live source may be swapped between ticks by the catalog watcher.
type AbilitySource interface {
	Descriptor(id string) (*cast.AbilityDescriptor, bool)
}

// Config assembles an engine.
type Config struct {
	Deps             sim.Deps
	Abilities        AbilitySource
	DefaultAbilityID string
	Audio            cast.AudioCue
	VisualFactory    vfx.ActorFactory
	FadeGrace        time.Duration
	ManaMax          float64
	ManaRegen        float64
	HeartbeatTimeout time.Duration
	InstrumentID     string
}

type casterState struct {
	id            string
	pool          *mana.Pool
	cooldowns     *cast.CooldownTracker
	sources       map[cast.InputSourceID]struct{}
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

func (c *casterState) CasterID() string {
	return c.id
}

func (c *casterState) Resource() cast.ResourcePool {
	return c.pool
}

func (c *casterState) Cooldowns() *cast.CooldownTracker {
	return c.cooldowns
}

// Engine is the single-threaded simulation core: casters, the shared casting
// instrument, and the deterministic per-tick command application order. The
// loop owns the only goroutine that calls Prepare/Apply/Step; hub-side
// mutation goes through commands or the atomic ability source.
type Engine struct {
	deps      sim.Deps
	cfg       Config
	abilities atomic.Value // AbilitySource

	casters     map[string]*casterState
	roles       map[cast.InputSourceID]bool
	sourceOwner map[cast.InputSourceID]string
	instrument  *cast.Instrument
	visuals     *vfx.Sync

	events  []sim.OutEvent
	removed []string
	tick    uint64
	now     time.Time
}

// New constructs an idle engine with an unheld instrument.
func New(cfg Config) *Engine {
	if cfg.ManaMax <= 0 {
		cfg.ManaMax = 100
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 6 * time.Second
	}
	if cfg.InstrumentID == "" {
		cfg.InstrumentID = "staff-1"
	}
	e := &Engine{
		deps:        cfg.Deps,
		cfg:         cfg,
		casters:     make(map[string]*casterState),
		roles:       make(map[cast.InputSourceID]bool),
		sourceOwner: make(map[cast.InputSourceID]string),
	}
	if cfg.Abilities != nil {
		e.abilities.Store(cfg.Abilities)
	}
	factory := cfg.VisualFactory
	if factory == nil {
		factory = vfx.LogActorFactory(cfg.Deps.Logger)
	}
	e.visuals = vfx.NewSync(factory, cfg.FadeGrace)
	audio := cfg.Audio
	if audio == nil {
		audio = cast.NopAudio{}
	}
	e.instrument = cast.NewInstrument(cast.InstrumentConfig{
		Roles:   cast.RoleProviderFunc(e.isDominant),
		Visuals: e.visuals,
		Events:  e,
		Audio:   audio,
	})
	if cfg.DefaultAbilityID != "" {
		if desc, ok := e.resolveAbility(cfg.DefaultAbilityID); ok {
			e.instrument.Equip(desc)
		}
	}
	return e
}

// Deps implements sim.EngineCore.
func (e *Engine) Deps() sim.Deps {
	if e == nil {
		return sim.Deps{}
	}
	return e.deps
}

// Prepare pins the tick context so command application observes this tick's
// time.
func (e *Engine) Prepare(ctx sim.LoopTickContext) {
	if e == nil {
		return
	}
	e.tick = ctx.Tick
	e.now = ctx.Now
}

// Apply processes staged commands in two phases: holder mutations first, then
// charge-session operations, each preserving arrival order. Removal of a
// charging owner therefore always cancels before any new session may start in
// the same tick.
func (e *Engine) Apply(cmds []sim.Command) error {
	if e == nil {
		return nil
	}
	for _, cmd := range cmds {
		if cmd.HolderMutation() || cmd.Type == sim.CommandHeartbeat {
			e.applyCommand(cmd)
		}
	}
	for _, cmd := range cmds {
		if cmd.HolderMutation() || cmd.Type == sim.CommandHeartbeat {
			continue
		}
		e.applyCommand(cmd)
	}
	return nil
}

// Step advances regeneration, prunes stale casters, and ticks the instrument.
func (e *Engine) Step(ctx sim.LoopTickContext) {
	if e == nil {
		return
	}
	e.tick = ctx.Tick
	e.now = ctx.Now
	for _, caster := range e.casters {
		caster.pool.Regenerate(ctx.Delta)
	}
	e.pruneStaleCasters(ctx.Now)
	e.instrument.Tick(ctx.Now)
}

// Snapshot implements sim.EngineCore.
func (e *Engine) Snapshot() sim.Snapshot {
	if e == nil {
		return sim.Snapshot{}
	}
	snap := sim.Snapshot{Instrument: e.instrument.Snapshot()}
	ids := make([]string, 0, len(e.casters))
	for id := range e.casters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ability := e.instrument.Ability()
	for _, id := range ids {
		caster := e.casters[id]
		cs := sim.CasterSnapshot{
			ID:        caster.id,
			Mana:      caster.pool.Current(),
			ManaMax:   caster.pool.Max(),
			RTTMillis: caster.lastRTT.Milliseconds(),
		}
		for source := range caster.sources {
			cs.Sources = append(cs.Sources, string(source))
		}
		sort.Strings(cs.Sources)
		if ability != nil {
			cs.CooldownRemaining = caster.cooldowns.Remaining(e.now, ability).Seconds()
		}
		snap.Casters = append(snap.Casters, cs)
	}
	return snap
}

// DrainEvents returns the step's observable side effects and clears them.
func (e *Engine) DrainEvents() []sim.OutEvent {
	if e == nil || len(e.events) == 0 {
		return nil
	}
	events := e.events
	e.events = nil
	return events
}

// RemovedCasters reports casters pruned since the last call.
func (e *Engine) RemovedCasters() []string {
	if e == nil || len(e.removed) == 0 {
		return nil
	}
	removed := e.removed
	e.removed = nil
	return removed
}

// AddCaster registers a caster with a fresh mana pool and cooldown tracker.
func (e *Engine) AddCaster(id string, now time.Time) {
	if e == nil || id == "" {
		return
	}
	if _, exists := e.casters[id]; exists {
		return
	}
	e.casters[id] = &casterState{
		id:            id,
		pool:          mana.NewPool(e.cfg.ManaMax, e.cfg.ManaRegen),
		cooldowns:     cast.NewCooldownTracker(),
		sources:       make(map[cast.InputSourceID]struct{}),
		lastHeartbeat: now,
	}
}

// RemoveCaster disconnects a caster, releasing every grip it still holds.
func (e *Engine) RemoveCaster(id string, now time.Time) {
	caster, ok := e.casters[id]
	if !ok {
		return
	}
	for source := range caster.sources {
		e.instrument.RemoveHolder(source, now)
		delete(e.roles, source)
		delete(e.sourceOwner, source)
	}
	delete(e.casters, id)
	e.removed = append(e.removed, id)
}

// CasterCount reports the number of connected casters.
func (e *Engine) CasterCount() int {
	if e == nil {
		return 0
	}
	return len(e.casters)
}

// Instrument exposes the composition root for tests and diagnostics.
func (e *Engine) Instrument() *cast.Instrument {
	if e == nil {
		return nil
	}
	return e.instrument
}

// ReplaceAbilities swaps the live ability source. Safe to call from outside
// the loop goroutine; running sessions keep their already-equipped
// descriptor until the next equip.
func (e *Engine) ReplaceAbilities(src AbilitySource) {
	if e == nil || src == nil {
		return
	}
	e.abilities.Store(src)
}

// ChargeStateChanged implements cast.EventSink.
func (e *Engine) ChargeStateChanged(isCharging bool) {
	e.events = append(e.events, sim.OutEvent{
		Kind:     sim.EventChargeState,
		Tick:     e.tick,
		Charging: isCharging,
		Ability:  e.abilityID(),
	})
	instrumentRef := logging.EntityRef{ID: e.cfg.InstrumentID, Kind: logging.EntityKindInstrument}
	if isCharging {
		loggingcasting.ChargeStarted(context.Background(), e.deps.Publisher, e.tick, instrumentRef, e.abilityID())
	} else {
		loggingcasting.ChargeEnded(context.Background(), e.deps.Publisher, e.tick, instrumentRef, e.abilityID(), false)
	}
}

// SpellCast implements cast.EventSink.
func (e *Engine) SpellCast(ability *cast.AbilityDescriptor, owner cast.InputSourceID) {
	e.events = append(e.events, sim.OutEvent{
		Kind:    sim.EventSpellCast,
		Tick:    e.tick,
		Source:  string(owner),
		Ability: ability.ID,
		Cue:     cast.CueCast,
	})
	ownerRef := logging.EntityRef{ID: string(owner), Kind: logging.EntityKindHolder}
	loggingcasting.SpellCast(context.Background(), e.deps.Publisher, e.tick, ownerRef, ability.ID)
}

// ChargeRejected implements cast.EventSink.
func (e *Engine) ChargeRejected(requester cast.InputSourceID, reason cast.RejectReason) {
	e.events = append(e.events, sim.OutEvent{
		Kind:   sim.EventCastRejected,
		Tick:   e.tick,
		Source: string(requester),
		Reason: string(reason),
		Cue:    cast.RejectCue(reason),
	})
	requesterRef := logging.EntityRef{ID: string(requester), Kind: logging.EntityKindHolder}
	loggingcasting.ChargeRejected(context.Background(), e.deps.Publisher, e.tick, requesterRef, e.abilityID(), string(reason))
}

func (e *Engine) applyCommand(cmd sim.Command) {
	switch cmd.Type {
	case sim.CommandJoin:
		e.AddCaster(cmd.ActorID, e.now)
		return
	case sim.CommandLeave:
		e.RemoveCaster(cmd.ActorID, e.now)
		return
	}
	caster, ok := e.casters[cmd.ActorID]
	if !ok {
		return
	}
	switch cmd.Type {
	case sim.CommandGrab:
		if cmd.Grip == nil || cmd.Grip.SourceID == "" {
			return
		}
		source := cast.InputSourceID(cmd.Grip.SourceID)
		if owner, held := e.sourceOwner[source]; held && owner != cmd.ActorID {
			// A source id belongs to exactly one caster for its lifetime.
			return
		}
		e.roles[source] = cmd.Grip.Dominant
		e.sourceOwner[source] = cmd.ActorID
		caster.sources[source] = struct{}{}
		e.instrument.AddHolder(source, caster)
	case sim.CommandRelease:
		if cmd.Grip == nil {
			return
		}
		source := cast.InputSourceID(cmd.Grip.SourceID)
		if e.sourceOwner[source] != cmd.ActorID {
			// Source ids are client-supplied; a caster may only release a
			// grip it established itself.
			return
		}
		delete(caster.sources, source)
		delete(e.sourceOwner, source)
		e.instrument.RemoveHolder(source, e.now)
	case sim.CommandChargeStart:
		if cmd.Charge == nil {
			return
		}
		source := cast.InputSourceID(cmd.Charge.SourceID)
		if e.sourceOwner[source] != cmd.ActorID {
			e.ChargeRejected(source, cast.RejectNotOwner)
			return
		}
		e.instrument.StartCharge(source, e.now)
	case sim.CommandChargeFinish:
		if cmd.Charge == nil {
			return
		}
		source := cast.InputSourceID(cmd.Charge.SourceID)
		if e.sourceOwner[source] != cmd.ActorID {
			e.ChargeRejected(source, cast.RejectNotOwner)
			return
		}
		elapsed := time.Duration(cmd.Charge.HeldSeconds * float64(time.Second))
		e.instrument.FinishCharge(source, elapsed, e.now)
	case sim.CommandChargeCancel:
		if cmd.Charge == nil {
			return
		}
		source := cast.InputSourceID(cmd.Charge.SourceID)
		if e.sourceOwner[source] != cmd.ActorID {
			e.ChargeRejected(source, cast.RejectNotOwner)
			return
		}
		e.instrument.CancelCharge(source, e.now)
	case sim.CommandEquip:
		if cmd.Equip == nil {
			return
		}
		if desc, ok := e.resolveAbility(cmd.Equip.AbilityID); ok {
			if !e.instrument.Equip(desc) && e.deps.Logger != nil {
				e.deps.Logger.Printf("equip %s rejected while charging", cmd.Equip.AbilityID)
			}
		} else if e.deps.Logger != nil {
			e.deps.Logger.Printf("equip rejected: unknown ability %q", cmd.Equip.AbilityID)
		}
	case sim.CommandHeartbeat:
		if cmd.Heartbeat == nil {
			return
		}
		caster.lastHeartbeat = cmd.Heartbeat.ReceivedAt
		caster.lastRTT = cmd.Heartbeat.RTT
	}
}

func (e *Engine) pruneStaleCasters(now time.Time) {
	var stale []string
	for id, caster := range e.casters {
		if now.Sub(caster.lastHeartbeat) > e.cfg.HeartbeatTimeout {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	for _, id := range stale {
		if e.deps.Logger != nil {
			e.deps.Logger.Printf("pruning stale caster %s", id)
		}
		e.RemoveCaster(id, now)
	}
}

func (e *Engine) isDominant(id cast.InputSourceID) bool {
	return e.roles[id]
}

func (e *Engine) resolveAbility(id string) (*cast.AbilityDescriptor, bool) {
	src, _ := e.abilities.Load().(AbilitySource)
	if src == nil {
		return nil, false
	}
	return src.Descriptor(id)
}

func (e *Engine) abilityID() string {
	if ability := e.instrument.Ability(); ability != nil {
		return ability.ID
	}
	return ""
}

var _ sim.EngineCore = (*Engine)(nil)
var _ cast.EventSink = (*Engine)(nil)
