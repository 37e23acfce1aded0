package casting

import (
	"context"

	"emberstaff/server/logging"
)

const (
	ChargeStartedEventType  logging.EventType = "casting.charge_started"
	ChargeEndedEventType    logging.EventType = "casting.charge_ended"
	ChargeRejectedEventType logging.EventType = "casting.charge_rejected"
	SpellCastEventType      logging.EventType = "casting.spell_cast"
)

type ChargePayload struct {
	Ability string `json:"ability,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

type ChargeEndPayload struct {
	Ability string `json:"ability,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Cast    bool   `json:"cast"`
}

type RejectPayload struct {
	Ability string `json:"ability,omitempty"`
	Reason  string `json:"reason"`
}

func ChargeStarted(ctx context.Context, pub logging.Publisher, tick uint64, owner logging.EntityRef, ability string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     ChargeStartedEventType,
		Tick:     tick,
		Actor:    owner,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCasting,
		Payload:  ChargePayload{Ability: ability, Owner: owner.ID},
	})
}

func ChargeEnded(ctx context.Context, pub logging.Publisher, tick uint64, owner logging.EntityRef, ability string, didCast bool) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     ChargeEndedEventType,
		Tick:     tick,
		Actor:    owner,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCasting,
		Payload:  ChargeEndPayload{Ability: ability, Owner: owner.ID, Cast: didCast},
	})
}

func ChargeRejected(ctx context.Context, pub logging.Publisher, tick uint64, requester logging.EntityRef, ability string, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     ChargeRejectedEventType,
		Tick:     tick,
		Actor:    requester,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCasting,
		Payload:  RejectPayload{Ability: ability, Reason: reason},
	})
}

func SpellCast(ctx context.Context, pub logging.Publisher, tick uint64, owner logging.EntityRef, ability string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     SpellCastEventType,
		Tick:     tick,
		Actor:    owner,
		Targets:  []logging.EntityRef{{ID: ability, Kind: logging.EntityKindAbility}},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCasting,
		Payload:  ChargePayload{Ability: ability, Owner: owner.ID},
	})
}
