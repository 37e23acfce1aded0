package cast

import "time"

// CooldownRecord stores the last successful cast time for one ability. A
// record that has never been stamped is always ready.
type CooldownRecord struct {
	lastCast time.Time
	stamped  bool
}

// IsReady reports whether the cooldown window has elapsed. Readiness is a
// pure function of (now, lastCast, cooldown).
func (r *CooldownRecord) IsReady(now time.Time, cooldown time.Duration) bool {
	if r == nil || !r.stamped || cooldown <= 0 {
		return true
	}
	return !now.Before(r.lastCast.Add(cooldown))
}

// Stamp records a successful cast at the provided time.
func (r *CooldownRecord) Stamp(now time.Time) {
	if r == nil {
		return
	}
	r.lastCast = now
	r.stamped = true
}

// Remaining reports how much of the cooldown window is left. Ready records
// report zero.
func (r *CooldownRecord) Remaining(now time.Time, cooldown time.Duration) time.Duration {
	if r.IsReady(now, cooldown) {
		return 0
	}
	return r.lastCast.Add(cooldown).Sub(now)
}

// ModifyCooldown rescales only the remaining window, not the configured
// cooldown: remaining' = remaining * multiplier, reapplied as a recomputed
// last-cast time.
func (r *CooldownRecord) ModifyCooldown(now time.Time, cooldown time.Duration, multiplier float64) {
	if r == nil || multiplier < 0 {
		return
	}
	remaining := r.Remaining(now, cooldown)
	if remaining <= 0 {
		return
	}
	scaled := time.Duration(float64(remaining) * multiplier)
	r.lastCast = now.Add(scaled).Add(-cooldown)
	r.stamped = true
}

// CooldownTracker keeps one CooldownRecord per ability. It is owned by the
// caster; the instrument only asks for readiness and stamps successful casts.
type CooldownTracker struct {
	records map[string]*CooldownRecord
}

// NewCooldownTracker constructs an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{records: make(map[string]*CooldownRecord)}
}

// Record returns the record for the ability, creating it on first use.
func (t *CooldownTracker) Record(abilityID string) *CooldownRecord {
	if t == nil {
		return nil
	}
	if t.records == nil {
		t.records = make(map[string]*CooldownRecord)
	}
	rec, ok := t.records[abilityID]
	if !ok {
		rec = &CooldownRecord{}
		t.records[abilityID] = rec
	}
	return rec
}

// Ready reports whether the ability may be cast at the provided time.
func (t *CooldownTracker) Ready(now time.Time, ability *AbilityDescriptor) bool {
	if ability == nil {
		return false
	}
	if t == nil {
		return true
	}
	if rec, ok := t.records[ability.ID]; ok {
		return rec.IsReady(now, ability.Cooldown)
	}
	return true
}

// Stamp records a successful cast of the ability.
func (t *CooldownTracker) Stamp(now time.Time, abilityID string) {
	t.Record(abilityID).Stamp(now)
}

// Remaining reports the unexpired portion of the ability's cooldown.
func (t *CooldownTracker) Remaining(now time.Time, ability *AbilityDescriptor) time.Duration {
	if t == nil || ability == nil {
		return 0
	}
	if rec, ok := t.records[ability.ID]; ok {
		return rec.Remaining(now, ability.Cooldown)
	}
	return 0
}

// ModifyCooldown rescales the remaining window of the ability's record.
func (t *CooldownTracker) ModifyCooldown(now time.Time, ability *AbilityDescriptor, multiplier float64) {
	if t == nil || ability == nil {
		return
	}
	if rec, ok := t.records[ability.ID]; ok {
		rec.ModifyCooldown(now, ability.Cooldown, multiplier)
	}
}
