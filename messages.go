package server

import (
	"emberstaff/server/internal/sim"
)

// ProtocolVersion tags every wire message so clients can detect mismatches.
const ProtocolVersion = 1

type joinResponse struct {
	Ver             int          `json:"ver"`
	ID              string       `json:"id"`
	Snapshot        sim.Snapshot `json:"snapshot"`
	Abilities       []string     `json:"abilities,omitempty"`
	TickRate        int          `json:"tickRate"`
	HeartbeatMillis int64        `json:"heartbeatMillis"`
}

type stateMessage struct {
	Ver        int            `json:"ver"`
	Type       string         `json:"type"`
	Tick       uint64         `json:"tick"`
	Snapshot   sim.Snapshot   `json:"snapshot"`
	Events     []sim.OutEvent `json:"events,omitempty"`
	ServerTime int64          `json:"serverTime"`
}

type diagnosticsCaster struct {
	ID        string  `json:"id"`
	Mana      float64 `json:"mana"`
	RTTMillis int64   `json:"rttMillis,omitempty"`
}

// DiagnosticsReport is the payload served by the diagnostics endpoint.
type DiagnosticsReport struct {
	Tick         uint64              `json:"tick"`
	Casters      []diagnosticsCaster `json:"casters"`
	Subscribers  int                 `json:"subscribers"`
	Charging     bool                `json:"charging"`
	AbilityID    string              `json:"abilityId,omitempty"`
	PendingCmds  int                 `json:"pendingCommands"`
	LastStepMS   float64             `json:"lastStepMillis"`
	ClampedTicks uint64              `json:"clampedTicks"`
	Counters     map[string]uint64   `json:"counters,omitempty"`
	Gauges       map[string]uint64   `json:"gauges,omitempty"`
}
