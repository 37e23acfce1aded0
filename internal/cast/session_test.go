package cast

import (
	"testing"
	"time"
)

type testPool struct {
	current float64
}

func (p *testPool) CanConsume(amount float64) bool {
	return p != nil && amount >= 0 && p.current >= amount
}

func (p *testPool) Consume(amount float64) bool {
	if !p.CanConsume(amount) {
		return false
	}
	p.current -= amount
	return true
}

type testCaster struct {
	id        string
	pool      *testPool
	cooldowns *CooldownTracker
}

func (c *testCaster) CasterID() string {
	return c.id
}

func (c *testCaster) Resource() ResourcePool {
	return c.pool
}

func (c *testCaster) Cooldowns() *CooldownTracker {
	return c.cooldowns
}

type rejection struct {
	requester InputSourceID
	reason    RejectReason
}

type recordingSink struct {
	stateChanges []bool
	casts        []string
	rejections   []rejection
}

func (s *recordingSink) ChargeStateChanged(isCharging bool) {
	s.stateChanges = append(s.stateChanges, isCharging)
}

func (s *recordingSink) SpellCast(ability *AbilityDescriptor, owner InputSourceID) {
	s.casts = append(s.casts, ability.ID)
}

func (s *recordingSink) ChargeRejected(requester InputSourceID, reason RejectReason) {
	s.rejections = append(s.rejections, rejection{requester: requester, reason: reason})
}

func (s *recordingSink) lastRejection(t *testing.T) rejection {
	t.Helper()
	if len(s.rejections) == 0 {
		t.Fatalf("expected a rejection")
	}
	return s.rejections[len(s.rejections)-1]
}

type recordingSync struct {
	begins   int
	ends     int
	releases int
	progress []float64
}

func (s *recordingSync) Begin(time.Time, Pose, []VisualActorConfig) { s.begins++ }
func (s *recordingSync) SetProgress(p float64)                      { s.progress = append(s.progress, p) }
func (s *recordingSync) End(time.Time)                              { s.ends++ }
func (s *recordingSync) ReleaseAll()                                { s.releases++ }
func (s *recordingSync) Tick(time.Time)                             {}

type fixture struct {
	instrument *Instrument
	roles      roleMap
	sink       *recordingSink
	sync       *recordingSync
	caster     *testCaster
	ability    *AbilityDescriptor
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roles := roleMap{"h1": true}
	sink := &recordingSink{}
	sync := &recordingSync{}
	inst := NewInstrument(InstrumentConfig{
		Roles:   roles,
		Visuals: sync,
		Events:  sink,
	})
	caster := &testCaster{
		id:        "caster-1",
		pool:      &testPool{current: 100},
		cooldowns: NewCooldownTracker(),
	}
	ability := &AbilityDescriptor{
		ID:        "emberbolt",
		ManaCost:  30,
		Cooldown:  3 * time.Second,
		MinCharge: 500 * time.Millisecond,
	}
	if !inst.Equip(ability) {
		t.Fatalf("equip failed on idle instrument")
	}
	return &fixture{
		instrument: inst,
		roles:      roles,
		sink:       sink,
		sync:       sync,
		caster:     caster,
		ability:    ability,
		now:        time.Unix(5000, 0),
	}
}

func (f *fixture) grab(ids ...InputSourceID) {
	for _, id := range ids {
		f.instrument.AddHolder(id, f.caster)
	}
}

func (f *fixture) advance(d time.Duration) time.Time {
	f.now = f.now.Add(d)
	return f.now
}

func TestChargeRoundTrip(t *testing.T) {
	// Scenario A: full pool, cost 30, min charge 0.5s, held for 0.6s.
	f := newFixture(t)
	f.grab("h1")

	if got := f.instrument.StartCharge("h1", f.now); got != RejectNone {
		t.Fatalf("start rejected: %s", got)
	}
	if !f.instrument.Charging() {
		t.Fatalf("expected an active session")
	}

	session := f.instrument.Session()
	if session.Owner != "h1" {
		t.Fatalf("session owner should be h1, got %s", session.Owner)
	}
	if !f.instrument.IsPrimary(session.Owner) {
		t.Fatalf("session owner must be primary at session start")
	}

	f.instrument.Tick(f.advance(600 * time.Millisecond))
	if got := f.instrument.FinishCharge("h1", 600*time.Millisecond, f.now); got != RejectNone {
		t.Fatalf("finish rejected: %s", got)
	}

	if got := f.caster.pool.current; got != 70 {
		t.Fatalf("expected pool at 70 after cast, got %v", got)
	}
	if len(f.sink.casts) != 1 || f.sink.casts[0] != "emberbolt" {
		t.Fatalf("expected exactly one SpellCast, got %v", f.sink.casts)
	}
	if f.caster.cooldowns.Ready(f.now, f.ability) {
		t.Fatalf("cooldown must be stamped exactly at cast time")
	}
	want := []bool{true, false}
	if len(f.sink.stateChanges) != len(want) || f.sink.stateChanges[0] != want[0] || f.sink.stateChanges[1] != want[1] {
		t.Fatalf("expected charge state true,false, got %v", f.sink.stateChanges)
	}
	if f.sync.begins != 1 || f.sync.ends != 1 {
		t.Fatalf("expected one visual begin and one end, got %d/%d", f.sync.begins, f.sync.ends)
	}
}

func TestFinishAtExactMinimumIsAccepted(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	f.advance(f.ability.MinCharge)
	if got := f.instrument.FinishCharge("h1", f.ability.MinCharge, f.now); got != RejectNone {
		t.Fatalf("elapsed == minCharge must be accepted, got %s", got)
	}
}

func TestFinishTooShortEndsSessionWithoutCast(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	f.advance(200 * time.Millisecond)
	if got := f.instrument.FinishCharge("h1", 200*time.Millisecond, f.now); got != RejectChargeTooShort {
		t.Fatalf("expected charge_too_short, got %s", got)
	}
	if f.instrument.Charging() {
		t.Fatalf("session must end even when the cast is rejected")
	}
	if got := f.caster.pool.current; got != 100 {
		t.Fatalf("no mana may be consumed on a rejected cast, got %v", got)
	}
	if len(f.sink.casts) != 0 {
		t.Fatalf("no SpellCast may fire, got %v", f.sink.casts)
	}
	if f.sync.ends != 1 {
		t.Fatalf("visuals must fade out on a rejected finish")
	}
}

func TestSecondHolderStartRejectedWhilePrimaryHolds(t *testing.T) {
	// Scenario B: h2 would be primary-eligible once h1 releases, but is not
	// primary while h1 holds.
	f := newFixture(t)
	f.roles["h2"] = true
	f.grab("h1", "h2")

	if got := f.instrument.StartCharge("h2", f.now); got != RejectNotOwner {
		t.Fatalf("expected not_owner for non-primary start, got %s", got)
	}
	if rej := f.sink.lastRejection(t); rej.requester != "h2" || rej.reason != RejectNotOwner {
		t.Fatalf("unexpected rejection feedback %+v", rej)
	}

	f.instrument.RemoveHolder("h1", f.now)
	if got := f.instrument.StartCharge("h2", f.now); got != RejectNone {
		t.Fatalf("h2 should start once primary, got %s", got)
	}
}

func TestOwnerRemovalForcesCancel(t *testing.T) {
	// Scenario C: the charging owner leaves the holder set mid-charge.
	f := newFixture(t)
	f.roles["h2"] = true
	f.grab("h1", "h2")
	f.instrument.StartCharge("h1", f.now)

	f.instrument.RemoveHolder("h1", f.advance(200*time.Millisecond))
	if f.instrument.Charging() {
		t.Fatalf("session must force-cancel when its owner is removed")
	}
	if len(f.sink.stateChanges) != 2 || f.sink.stateChanges[1] != false {
		t.Fatalf("expected ChargeStateChanged(false), got %v", f.sink.stateChanges)
	}

	f.advance(time.Second)
	if got := f.instrument.FinishCharge("h1", time.Second, f.now); got != RejectNoSession {
		t.Fatalf("late finish must report no_session, got %s", got)
	}
	if len(f.sink.casts) != 0 {
		t.Fatalf("no SpellCast may fire after a forced cancel")
	}
}

func TestStartRejectedOnCooldownUntilReady(t *testing.T) {
	// Scenario D: ability ready again 3 seconds after the stamp.
	f := newFixture(t)
	f.grab("h1")
	f.caster.cooldowns.Stamp(f.now, f.ability.ID)

	if got := f.instrument.StartCharge("h1", f.now); got != RejectOnCooldown {
		t.Fatalf("expected on_cooldown, got %s", got)
	}

	f.advance(3 * time.Second)
	if got := f.instrument.StartCharge("h1", f.now); got != RejectNone {
		t.Fatalf("identical request must succeed once ready, got %s", got)
	}
}

func TestNewPrimaryMayCancelForeignSession(t *testing.T) {
	// Scenario E: h1 owns the session, primary passes to h2 while h1 keeps
	// holding, and h2 cancels with override authority.
	f := newFixture(t)
	f.roles["h2"] = true
	f.grab("h1", "h2")
	f.instrument.StartCharge("h1", f.now)

	// The caster switches dominant hands; the next holder-set change
	// recomputes the primary designation.
	f.roles["h1"] = false
	f.instrument.AddHolder("h3", f.caster)
	if !f.instrument.IsPrimary("h2") {
		t.Fatalf("expected primary to pass to h2")
	}

	if got := f.instrument.CancelCharge("h2", f.advance(100*time.Millisecond)); got != RejectNone {
		t.Fatalf("primary override cancel must be accepted, got %s", got)
	}
	if f.instrument.Charging() {
		t.Fatalf("session must end on override cancel")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	if got := f.instrument.CancelCharge("h1", f.now); got != RejectNone {
		t.Fatalf("first cancel must be accepted, got %s", got)
	}
	states := len(f.sink.stateChanges)
	ends := f.sync.ends

	if got := f.instrument.CancelCharge("h1", f.now); got != RejectNoSession {
		t.Fatalf("second cancel must be a no-op, got %s", got)
	}
	if len(f.sink.stateChanges) != states || f.sync.ends != ends {
		t.Fatalf("double cancel must not emit additional transitions")
	}
}

func TestCancelFromBystanderRejected(t *testing.T) {
	f := newFixture(t)
	f.grab("h1", "h2")
	f.instrument.StartCharge("h1", f.now)

	if got := f.instrument.CancelCharge("h2", f.now); got != RejectNotOwner {
		t.Fatalf("non-owner non-primary cancel must be rejected, got %s", got)
	}
	if !f.instrument.Charging() {
		t.Fatalf("session must survive a rejected cancel")
	}
}

func TestStartPreemptsActiveSession(t *testing.T) {
	// Last requester wins: a fresh start while charging cancels the active
	// session first, it never queues.
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)
	first := f.instrument.Session()

	f.advance(100 * time.Millisecond)
	if got := f.instrument.StartCharge("h1", f.now); got != RejectNone {
		t.Fatalf("preempting start must be accepted, got %s", got)
	}
	second := f.instrument.Session()
	if second == first {
		t.Fatalf("expected a fresh session after preemption")
	}
	if !second.StartedAt.Equal(f.now) {
		t.Fatalf("new session must start at the preempting request time")
	}
	if f.sync.begins != 2 || f.sync.ends != 1 {
		t.Fatalf("expected begin,end,begin visual sequence, got begins=%d ends=%d", f.sync.begins, f.sync.ends)
	}
}

func TestStartWithInsufficientMana(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.caster.pool.current = 10

	if got := f.instrument.StartCharge("h1", f.now); got != RejectResourceUnavailable {
		t.Fatalf("expected resource_unavailable, got %s", got)
	}
	if f.sync.begins != 0 {
		t.Fatalf("no visuals may spawn on a rejected start")
	}
}

func TestStartWithoutAbility(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.ability = nil

	if got := f.instrument.StartCharge("h1", f.now); got != RejectNoAbility {
		t.Fatalf("expected no_ability, got %s", got)
	}
}

func TestFinishRevalidatesResource(t *testing.T) {
	// Mana checked at start may be gone at finish; the re-check is mandatory.
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	f.caster.pool.current = 5
	f.advance(time.Second)
	if got := f.instrument.FinishCharge("h1", time.Second, f.now); got != RejectResourceUnavailable {
		t.Fatalf("expected resource_unavailable at finish, got %s", got)
	}
	if f.instrument.Charging() {
		t.Fatalf("session must still end on a failed re-validation")
	}
}

func TestFinishAfterCasterUnbound(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	// Simulates the caster reference becoming unavailable mid-session.
	f.instrument.caster = nil
	f.advance(time.Second)
	if got := f.instrument.FinishCharge("h1", time.Second, f.now); got != RejectResourceUnavailable {
		t.Fatalf("missing caster must reject as resource_unavailable, got %s", got)
	}
}

func TestProgressForwardingGatedByEpsilon(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	f.instrument.Tick(f.now)
	forwarded := len(f.sync.progress)
	f.instrument.Tick(f.now)
	if len(f.sync.progress) != forwarded {
		t.Fatalf("unchanged progress must not be forwarded again")
	}

	f.instrument.Tick(f.advance(250 * time.Millisecond))
	if len(f.sync.progress) != forwarded+1 {
		t.Fatalf("expected one more progress update, got %d", len(f.sync.progress))
	}

	f.instrument.Tick(f.advance(time.Second))
	last := f.sync.progress[len(f.sync.progress)-1]
	if last != 1 {
		t.Fatalf("progress must clamp at 1, got %v", last)
	}
	if !f.instrument.Session().Complete {
		t.Fatalf("session must latch complete at full progress")
	}
}

func TestEquipRejectedWhileCharging(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	if f.instrument.Equip(&AbilityDescriptor{ID: "other"}) {
		t.Fatalf("equip must be rejected while a session is active")
	}
	if f.instrument.Ability().ID != "emberbolt" {
		t.Fatalf("equipped ability must be unchanged")
	}
}

func TestLastHolderReleaseClearsCaster(t *testing.T) {
	f := newFixture(t)
	f.grab("h1", "h2")

	f.instrument.RemoveHolder("h2", f.now)
	if f.instrument.Caster() == nil {
		t.Fatalf("caster must stay bound while any holder remains")
	}
	f.instrument.RemoveHolder("h1", f.now)
	if f.instrument.Caster() != nil {
		t.Fatalf("last release must clear the cached caster reference")
	}
}

func TestEffectReceivesAnchorAndCaster(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.SetPose(Pose{X: 1, Y: 2, Z: 3})

	var gotAnchor Pose
	var gotCaster Caster
	f.ability.Effect = AbilityEffectFunc(func(anchor Pose, caster Caster) {
		gotAnchor = anchor
		gotCaster = caster
	})

	f.instrument.StartCharge("h1", f.now)
	f.advance(time.Second)
	if got := f.instrument.FinishCharge("h1", time.Second, f.now); got != RejectNone {
		t.Fatalf("finish rejected: %s", got)
	}
	if gotAnchor != (Pose{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("effect must receive the instrument anchor, got %+v", gotAnchor)
	}
	if gotCaster != f.caster {
		t.Fatalf("effect must receive the caster reference")
	}
}

func TestTeardownReleasesVisualsImmediately(t *testing.T) {
	f := newFixture(t)
	f.grab("h1")
	f.instrument.StartCharge("h1", f.now)

	f.instrument.Teardown(f.now)
	if f.instrument.Charging() {
		t.Fatalf("teardown must cancel the session")
	}
	if f.sync.releases != 1 {
		t.Fatalf("teardown must release visual handles immediately")
	}
}
