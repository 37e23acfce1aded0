package vfx

import (
	"time"

	"emberstaff/server/internal/cast"
	"emberstaff/server/internal/telemetry"
)

// LogActor is a trivial visual actor backed by the telemetry logger. Real
// deployments replace it with a renderer-side implementation; the server uses
// it so visual lifecycle stays observable without a graphics pipeline.
type LogActor struct {
	template string
	logger   telemetry.Logger
	released bool
}

// LogActorFactory builds LogActors for every config.
func LogActorFactory(logger telemetry.Logger) ActorFactory {
	return func(cfg cast.VisualActorConfig) Actor {
		return &LogActor{template: cfg.Template, logger: logger}
	}
}

func (a *LogActor) SpawnAt(pose cast.Pose, delay time.Duration) {
	if a.logger != nil {
		a.logger.Printf("[visual] spawn template=%s pos=(%.2f,%.2f,%.2f) delay=%s", a.template, pose.X, pose.Y, pose.Z, delay)
	}
}

func (a *LogActor) SetProgress(float64) {}

func (a *LogActor) BeginFadeOut() {
	if a.released {
		return
	}
	a.released = true
	if a.logger != nil {
		a.logger.Printf("[visual] fade template=%s", a.template)
	}
}

func (a *LogActor) IsReleased() bool {
	return a.released
}
