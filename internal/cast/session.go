package cast

import (
	"math"
	"time"
)

// ProgressSync is the visual lifecycle collaborator driven by the session
// machine. The concrete implementation lives in internal/vfx; tests use
// recording fakes.
type ProgressSync interface {
	Begin(start time.Time, anchor Pose, configs []VisualActorConfig)
	SetProgress(p float64)
	End(now time.Time)
	ReleaseAll()
	Tick(now time.Time)
}

// NopProgressSync discards every visual transition.
type NopProgressSync struct{}

// Begin implements ProgressSync.
func (NopProgressSync) Begin(time.Time, Pose, []VisualActorConfig) {}

// SetProgress implements ProgressSync.
func (NopProgressSync) SetProgress(float64) {}

// End implements ProgressSync.
func (NopProgressSync) End(time.Time) {}

// ReleaseAll implements ProgressSync.
func (NopProgressSync) ReleaseAll() {}

// Tick implements ProgressSync.
func (NopProgressSync) Tick(time.Time) {}

// ChargeSession is the exclusive, time-bounded charge state. At most one
// instance is live per instrument at any time.
type ChargeSession struct {
	Owner     InputSourceID
	StartedAt time.Time
	Complete  bool
}

// Elapsed reports how long the session has been charging.
func (s *ChargeSession) Elapsed(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// Progress updates below this threshold are not forwarded to the visual sync.
const progressEpsilon = 1e-3

// machineDeps carries the collaborators and lookups the machine needs each
// decision. The instrument owns the authoritative fields and hands the
// machine read access through closures so the machine never caches a caster
// or ability beyond a single call.
type machineDeps struct {
	holders *HolderRegistry
	visuals ProgressSync
	events  EventSink
	audio   AudioCue
	ability func() *AbilityDescriptor
	caster  func() Caster
	anchor  func() Pose
}

// Machine arbitrates charge sessions: Idle -> Charging -> {Cast, Cancelled}
// -> Idle. Charging never times out on its own; it ends only on an explicit
// finish or cancel, or on removal of the owning holder.
type Machine struct {
	deps         machineDeps
	session      *ChargeSession
	lastProgress float64
}

func newMachine(deps machineDeps) *Machine {
	if deps.visuals == nil {
		deps.visuals = NopProgressSync{}
	}
	if deps.events == nil {
		deps.events = NopEvents{}
	}
	if deps.audio == nil {
		deps.audio = NopAudio{}
	}
	return &Machine{deps: deps, lastProgress: -1}
}

// Session returns the active session, or nil when idle.
func (m *Machine) Session() *ChargeSession {
	if m == nil {
		return nil
	}
	return m.session
}

// Charging reports whether a session is active.
func (m *Machine) Charging() bool {
	return m.Session() != nil
}

// Progress reports the last forwarded progress value, zero when idle.
func (m *Machine) Progress() float64 {
	if m == nil || m.session == nil || m.lastProgress < 0 {
		return 0
	}
	return m.lastProgress
}

// StartCharge opens a session for the requester. All gates must hold: the
// requester is the current primary holder, an ability is equipped, the
// caster's pool covers the cost, and the cooldown is ready. An active session
// under a different owner is force-cancelled first — last requester wins,
// deterministic under single-threaded tick processing.
func (m *Machine) StartCharge(requester InputSourceID, now time.Time) RejectReason {
	if m == nil {
		return RejectNoSession
	}
	if !m.deps.holders.IsPrimary(requester) {
		return m.reject(requester, RejectNotOwner)
	}
	ability := m.deps.ability()
	if ability == nil {
		return m.reject(requester, RejectNoAbility)
	}
	caster := m.deps.caster()
	if caster == nil || caster.Resource() == nil || !caster.Resource().CanConsume(ability.ManaCost) {
		return m.reject(requester, RejectResourceUnavailable)
	}
	if caster.Cooldowns() != nil && !caster.Cooldowns().Ready(now, ability) {
		return m.reject(requester, RejectOnCooldown)
	}
	if m.session != nil {
		m.endSession(now)
	}
	m.session = &ChargeSession{Owner: requester, StartedAt: now}
	m.lastProgress = -1
	m.deps.visuals.Begin(now, m.deps.anchor(), ability.VisualActors)
	m.deps.events.ChargeStateChanged(true)
	m.deps.audio.Play(CueChargeLoop)
	return RejectNone
}

// Tick advances the session's derived progress and forwards it to the visual
// sync when it moved by more than epsilon. Completion latches once at 1.0;
// re-entering the complete state is a no-op.
func (m *Machine) Tick(now time.Time) {
	if m == nil || m.session == nil {
		return
	}
	ability := m.deps.ability()
	progress := 1.0
	if ability != nil && ability.MinCharge > 0 {
		progress = clamp01(float64(m.session.Elapsed(now)) / float64(ability.MinCharge))
	}
	if m.lastProgress < 0 || math.Abs(progress-m.lastProgress) > progressEpsilon {
		m.lastProgress = progress
		m.deps.visuals.SetProgress(progress)
	}
	if progress >= 1 && !m.session.Complete {
		m.session.Complete = true
	}
}

// FinishCharge closes the session. Only the session owner may finish. The
// session ends on acceptance regardless of outcome; the cast itself is gated
// again on ability presence, the inclusive minimum charge time, and a
// mandatory re-validation of resource and cooldown — real time passed since
// StartCharge and external drains may have happened in between.
func (m *Machine) FinishCharge(requester InputSourceID, elapsed time.Duration, now time.Time) RejectReason {
	if m == nil {
		return RejectNoSession
	}
	if m.session == nil {
		return m.reject(requester, RejectNoSession)
	}
	if m.session.Owner != requester {
		return m.reject(requester, RejectNotOwner)
	}
	ability := m.deps.ability()
	caster := m.deps.caster()
	m.endSession(now)

	if ability == nil {
		return m.reject(requester, RejectNoAbility)
	}
	if elapsed < ability.MinCharge {
		return m.reject(requester, RejectChargeTooShort)
	}
	if caster == nil || caster.Resource() == nil || !caster.Resource().CanConsume(ability.ManaCost) {
		return m.reject(requester, RejectResourceUnavailable)
	}
	if caster.Cooldowns() != nil && !caster.Cooldowns().Ready(now, ability) {
		return m.reject(requester, RejectOnCooldown)
	}

	caster.Resource().Consume(ability.ManaCost)
	if caster.Cooldowns() != nil {
		caster.Cooldowns().Stamp(now, ability.ID)
	}
	if ability.Effect != nil {
		ability.Effect.Execute(m.deps.anchor(), caster)
	}
	m.deps.events.SpellCast(ability, requester)
	m.deps.audio.Play(CueCast)
	return RejectNone
}

// CancelCharge tears the session down without casting. Accepted from the
// session owner or from any current primary holder (override authority).
// Cancelling with no session is a no-op, so double-cancel converges on the
// same idle state.
func (m *Machine) CancelCharge(requester InputSourceID, now time.Time) RejectReason {
	if m == nil || m.session == nil {
		return RejectNoSession
	}
	if m.session.Owner != requester && !m.deps.holders.IsPrimary(requester) {
		return m.reject(requester, RejectNotOwner)
	}
	m.endSession(now)
	return RejectNone
}

// ForceCancel ends any active session without requester checks. Used when the
// owning holder is removed and on instrument teardown.
func (m *Machine) ForceCancel(now time.Time) bool {
	if m == nil || m.session == nil {
		return false
	}
	m.endSession(now)
	return true
}

// endSession returns the machine to Idle: state flips synchronously, visual
// teardown continues asynchronously under the sync's bounded grace period.
func (m *Machine) endSession(now time.Time) {
	m.session = nil
	m.lastProgress = -1
	m.deps.visuals.End(now)
	m.deps.events.ChargeStateChanged(false)
	m.deps.audio.Stop(CueChargeLoop, true)
}

func (m *Machine) reject(requester InputSourceID, reason RejectReason) RejectReason {
	m.deps.events.ChargeRejected(requester, reason)
	m.deps.audio.Play(RejectCue(reason))
	return reason
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
