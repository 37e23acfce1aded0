package vfx

import (
	"fmt"
	"time"

	"emberstaff/server/internal/cast"
)

// Actor is the externally rendered visual entity tracked by a handle. The
// sync drives only the progress channel and lifecycle; rotation, scale, and
// shader work stay on the actor's side of the boundary.
type Actor interface {
	SpawnAt(pose cast.Pose, delay time.Duration)
	SetProgress(p float64)
	BeginFadeOut()
	IsReleased() bool
}

// ActorFactory builds an actor for one visual config. Invoked when the
// actor's scheduled appearance comes due, not at session start.
type ActorFactory func(cfg cast.VisualActorConfig) Actor

// Handle pairs a spawned actor with its config and last delivered progress.
// Handles are owned exclusively by the Sync and dropped on release.
type Handle struct {
	ID       string
	Config   cast.VisualActorConfig
	Actor    Actor
	Progress float64
	fading   bool
}

type pendingSpawn struct {
	at  time.Time
	cfg cast.VisualActorConfig
}

// DefaultFadeGrace bounds how long released actors may keep their handles
// after a session ends.
const DefaultFadeGrace = 2 * time.Second

// Sync drives a set of ephemeral visual actors from a single progress scalar
// in [0,1]. Delayed appearance and fade-out are scheduled continuations keyed
// by absolute resume time and processed once per tick; the sync never blocks.
type Sync struct {
	factory ActorFactory
	grace   time.Duration

	handles  []*Handle
	pending  []pendingSpawn
	anchor   cast.Pose
	progress float64
	active   bool

	// releaseAt is the unconditional release deadline after End. Zero while
	// the session is active or the sync is empty.
	releaseAt time.Time
	nextID    uint64
}

// NewSync constructs a sync that builds actors through the factory and holds
// fading actors for at most grace after session end.
func NewSync(factory ActorFactory, grace time.Duration) *Sync {
	if grace <= 0 {
		grace = DefaultFadeGrace
	}
	return &Sync{factory: factory, grace: grace}
}

// Begin schedules the session's visual actors. Each config appears at
// start + AppearDelay. Any leftovers from a previous session are released
// immediately so the new session starts from a clean set.
func (s *Sync) Begin(start time.Time, anchor cast.Pose, configs []cast.VisualActorConfig) {
	if s == nil {
		return
	}
	s.ReleaseAll()
	s.active = true
	s.anchor = anchor
	s.progress = 0
	for _, cfg := range configs {
		s.pending = append(s.pending, pendingSpawn{at: start.Add(cfg.AppearDelay), cfg: cfg})
	}
}

// SetProgress broadcasts the latest progress to all visible actors. The
// session machine already gates redundant values by epsilon.
func (s *Sync) SetProgress(p float64) {
	if s == nil || !s.active {
		return
	}
	s.progress = p
	for _, handle := range s.handles {
		if handle.fading {
			continue
		}
		handle.Progress = p
		handle.Actor.SetProgress(p)
	}
}

// Tick processes due continuations: scheduled appearances, early release once
// every actor self-reports, and the unconditional release deadline.
func (s *Sync) Tick(now time.Time) {
	if s == nil {
		return
	}
	s.spawnDue(now)
	if s.releaseAt.IsZero() {
		return
	}
	if !now.Before(s.releaseAt) {
		// Deadline: configured delays were clamped to the deadline, so every
		// pending actor has spawned by now. Release unconditionally — an
		// unresponsive actor must not leak its handle.
		s.releaseAllHandles()
		return
	}
	if len(s.pending) == 0 && s.allReleased() {
		s.releaseAllHandles()
	}
}

// End begins fade-out for every actor and arms the release deadline. Safe to
// re-enter; a second end while fading changes nothing.
func (s *Sync) End(now time.Time) {
	if s == nil {
		return
	}
	if !s.active {
		return
	}
	s.active = false
	s.releaseAt = now.Add(s.grace)
	for _, handle := range s.handles {
		s.beginFade(handle)
	}
	// Configured delays are still honored after the session ends, but never
	// past the release deadline.
	for i := range s.pending {
		if s.pending[i].at.After(s.releaseAt) {
			s.pending[i].at = s.releaseAt
		}
	}
}

// ReleaseAll drops every handle and continuation immediately. Used on
// instrument teardown and when a new session begins over stale visuals.
func (s *Sync) ReleaseAll() {
	if s == nil {
		return
	}
	s.releaseAllHandles()
	s.active = false
}

// Handles returns the live handle count, visible for diagnostics and tests.
func (s *Sync) Handles() int {
	if s == nil {
		return 0
	}
	return len(s.handles)
}

// PendingSpawns returns the number of scheduled appearances not yet due.
func (s *Sync) PendingSpawns() int {
	if s == nil {
		return 0
	}
	return len(s.pending)
}

func (s *Sync) spawnDue(now time.Time) {
	if len(s.pending) == 0 {
		return
	}
	remaining := s.pending[:0]
	for _, spawn := range s.pending {
		if now.Before(spawn.at) {
			remaining = append(remaining, spawn)
			continue
		}
		s.spawn(spawn.cfg)
	}
	s.pending = remaining
}

func (s *Sync) spawn(cfg cast.VisualActorConfig) {
	if s.factory == nil {
		return
	}
	actor := s.factory(cfg)
	if actor == nil {
		return
	}
	s.nextID++
	handle := &Handle{
		ID:     fmt.Sprintf("visual-%d", s.nextID),
		Config: cfg,
		Actor:  actor,
	}
	offset := cfg.PositionOffset
	actor.SpawnAt(s.anchor.Offset(offset.X, offset.Y, offset.Z), cfg.AppearDelay)
	s.handles = append(s.handles, handle)
	if s.active {
		handle.Progress = s.progress
		actor.SetProgress(s.progress)
		return
	}
	// The session already ended; the actor still appears, then immediately
	// proceeds to fade-out.
	s.beginFade(handle)
}

func (s *Sync) beginFade(handle *Handle) {
	if handle.fading {
		return
	}
	handle.fading = true
	handle.Actor.BeginFadeOut()
}

func (s *Sync) allReleased() bool {
	for _, handle := range s.handles {
		if !handle.Actor.IsReleased() {
			return false
		}
	}
	return true
}

func (s *Sync) releaseAllHandles() {
	s.handles = nil
	s.pending = nil
	s.releaseAt = time.Time{}
}
