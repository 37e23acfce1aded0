package mana

// Pool tracks a depletable, regenerating quantity owned by a caster. All
// mutation goes through Consume and Regenerate so callers can never leave the
// pool outside [0, max].
type Pool struct {
	current float64
	max     float64
	regen   float64
}

// NewPool constructs a full pool with the provided capacity and regeneration
// rate in points per second. Non-positive capacities collapse to zero.
func NewPool(max, regenPerSecond float64) *Pool {
	if max < 0 {
		max = 0
	}
	if regenPerSecond < 0 {
		regenPerSecond = 0
	}
	return &Pool{current: max, max: max, regen: regenPerSecond}
}

// Current reports the available quantity.
func (p *Pool) Current() float64 {
	if p == nil {
		return 0
	}
	return p.current
}

// Max reports the pool capacity.
func (p *Pool) Max() float64 {
	if p == nil {
		return 0
	}
	return p.max
}

// RegenRate reports the configured regeneration rate in points per second.
func (p *Pool) RegenRate() float64 {
	if p == nil {
		return 0
	}
	return p.regen
}

// CanConsume reports whether the pool currently covers the requested amount.
func (p *Pool) CanConsume(amount float64) bool {
	if p == nil || amount < 0 {
		return false
	}
	return p.current >= amount
}

// Consume withdraws the requested amount, reporting whether the withdrawal
// happened. Partial consumption never occurs.
func (p *Pool) Consume(amount float64) bool {
	if !p.CanConsume(amount) {
		return false
	}
	p.current -= amount
	if p.current < 0 {
		p.current = 0
	}
	return true
}

// Regenerate advances the pool by dt seconds of regeneration, clamped at the
// configured capacity.
func (p *Pool) Regenerate(dt float64) {
	if p == nil || dt <= 0 || p.regen <= 0 {
		return
	}
	p.current += p.regen * dt
	if p.current > p.max {
		p.current = p.max
	}
}

// Drain empties the pool down to the provided amount. Used by external
// consumers (damage, channelled auras) that bypass ability costs.
func (p *Pool) Drain(amount float64) {
	if p == nil || amount <= 0 {
		return
	}
	p.current -= amount
	if p.current < 0 {
		p.current = 0
	}
}
