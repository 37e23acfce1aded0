package catalog

import (
	"fmt"

	"emberstaff/server/internal/cast"
	"emberstaff/server/internal/telemetry"
)

// Release effect kinds understood by the standard builder.
const (
	EffectKindBolt  = "bolt"
	EffectKindNova  = "nova"
	EffectKindBeam  = "beam"
	EffectKindChant = "chant"
)

// StandardEffects resolves the built-in effect kinds. The server has no
// renderer, so release payloads surface through the telemetry logger; the
// anchor pose and caster identity are what downstream consumers key on.
func StandardEffects(logger telemetry.Logger) EffectBuilder {
	return func(doc Document) (cast.AbilityEffect, error) {
		kind := doc.Effect.Kind
		switch kind {
		case EffectKindBolt, EffectKindNova, EffectKindBeam, EffectKindChant:
		default:
			return nil, fmt.Errorf("unknown effect kind %q", kind)
		}
		power := doc.Effect.Power
		radius := doc.Effect.Radius
		speed := doc.Effect.Speed
		return cast.AbilityEffectFunc(func(anchor cast.Pose, caster cast.Caster) {
			if logger == nil {
				return
			}
			casterID := ""
			if caster != nil {
				casterID = caster.CasterID()
			}
			logger.Printf(
				"[effect] kind=%s caster=%s origin=(%.2f,%.2f,%.2f) power=%.1f radius=%.1f speed=%.1f",
				kind, casterID, anchor.X, anchor.Y, anchor.Z, power, radius, speed,
			)
		}), nil
	}
}
