package cast

// RejectReason classifies why a charge request was refused. Rejections are
// expected outcomes signalled through return values and feedback cues; none
// of them is a fault and the instrument stays usable after every one.
type RejectReason string

const (
	// RejectNone marks an accepted request.
	RejectNone RejectReason = ""
	// RejectNotOwner: the requester lacks the required relationship — not
	// the primary holder for a start, not the session owner for a finish.
	RejectNotOwner RejectReason = "not_owner"
	// RejectNoSession: finish or cancel arrived with no active session.
	RejectNoSession RejectReason = "no_session"
	// RejectResourceUnavailable: insufficient mana, or the caster reference
	// went away before the cast resolved.
	RejectResourceUnavailable RejectReason = "resource_unavailable"
	// RejectOnCooldown: the equipped ability is not ready yet.
	RejectOnCooldown RejectReason = "on_cooldown"
	// RejectChargeTooShort: the hold ended before the minimum charge time.
	RejectChargeTooShort RejectReason = "charge_too_short"
	// RejectNoAbility: nothing is equipped.
	RejectNoAbility RejectReason = "no_ability"
)

// Accepted reports whether the reason marks a successful request.
func (r RejectReason) Accepted() bool {
	return r == RejectNone
}

// Audio cue identifiers. Each rejection maps to its own cue so feedback is
// never silent and never ambiguous.
const (
	CueChargeLoop = "charge_loop"
	CueCast       = "cast"
)

// RejectCue returns the feedback cue identifier for a rejection reason.
func RejectCue(reason RejectReason) string {
	if reason == RejectNone {
		return ""
	}
	return "reject_" + string(reason)
}

// AudioCue is the fire-and-forget playback collaborator. Implementations must
// tolerate unknown cue identifiers and repeated stops.
type AudioCue interface {
	Play(id string)
	Stop(id string, withFade bool)
}

// NopAudio discards every cue. Used when audio output is disabled.
type NopAudio struct{}

// Play implements AudioCue.
func (NopAudio) Play(string) {}

// Stop implements AudioCue.
func (NopAudio) Stop(string, bool) {}

// EventSink receives the instrument's observable side effects. The hub
// implementation forwards them to subscribers and the logging router.
type EventSink interface {
	ChargeStateChanged(isCharging bool)
	SpellCast(ability *AbilityDescriptor, owner InputSourceID)
	ChargeRejected(requester InputSourceID, reason RejectReason)
}

// NopEvents discards every event. Convenient default for tests.
type NopEvents struct{}

// ChargeStateChanged implements EventSink.
func (NopEvents) ChargeStateChanged(bool) {}

// SpellCast implements EventSink.
func (NopEvents) SpellCast(*AbilityDescriptor, InputSourceID) {}

// ChargeRejected implements EventSink.
func (NopEvents) ChargeRejected(InputSourceID, RejectReason) {}
