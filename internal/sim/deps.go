package sim

import (
	"emberstaff/server/internal/telemetry"
	"emberstaff/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation
// engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}
