package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"emberstaff/server/internal/engine"
	"emberstaff/server/internal/sim"
	"emberstaff/server/internal/telemetry"
	"emberstaff/server/logging"
)

const (
	writeWait         = 10 * time.Second
	defaultTickRate   = 30
	heartbeatInterval = 2 * time.Second
)

// HubConfig wires the hub to its simulation core and supporting services.
type HubConfig struct {
	Engine     *engine.Engine
	Loop       sim.LoopConfig
	Metrics    *logging.Metrics
	AbilityIDs func() []string
}

// Hub bridges controller sessions and the simulation loop. All engine access
// happens on the loop goroutine; the hub only stages commands and fans the
// per-tick results out to websocket subscribers.
type Hub struct {
	engine *engine.Engine
	loop   *sim.Loop
	cfg    HubConfig

	mu           sync.Mutex
	subscribers  map[string]*Subscriber
	known        map[string]struct{}
	lastSnapshot sim.Snapshot
	lastTick     uint64
	lastStep     time.Duration
	clampedTicks uint64

	nextID atomic.Uint64
	tick   atomic.Uint64
}

type Subscriber struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	lastSeq atomic.Uint64
}

// WriteMessage serializes writes to the underlying connection.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// LastCommandSeq returns the highest acknowledged command sequence.
func (s *Subscriber) LastCommandSeq() uint64 {
	return s.lastSeq.Load()
}

// StoreLastCommandSeq records the highest acknowledged command sequence.
func (s *Subscriber) StoreLastCommandSeq(seq uint64) {
	s.lastSeq.Store(seq)
}

// NewHub assembles a hub around the provided engine.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Loop.TickRate <= 0 {
		cfg.Loop.TickRate = defaultTickRate
	}
	h := &Hub{
		engine:      cfg.Engine,
		cfg:         cfg,
		subscribers: make(map[string]*Subscriber),
		known:       make(map[string]struct{}),
	}
	h.loop = sim.NewLoop(cfg.Engine, cfg.Loop, sim.LoopHooks{
		NextTick:  func() uint64 { return h.tick.Add(1) },
		AfterStep: h.afterStep,
		OnQueueWarning: func(length int) {
			if logger := h.logger(); logger != nil {
				logger.Printf("[backpressure] command queue length=%d", length)
			}
		},
	})
	return h
}

// TickRate reports the configured simulation frequency.
func (h *Hub) TickRate() int {
	return h.cfg.Loop.TickRate
}

// HeartbeatInterval reports how often clients are expected to heartbeat.
func (h *Hub) HeartbeatInterval() time.Duration {
	return heartbeatInterval
}

// RunSimulation drives the loop until the stop channel closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.loop.Run(stop)
}

// Join allocates a caster id and stages its registration for the next tick.
// The returned snapshot is the latest broadcast state; the new caster appears
// in it one tick later.
func (h *Hub) Join() joinResponse {
	id := fmt.Sprintf("caster-%d", h.nextID.Add(1))

	h.mu.Lock()
	h.known[id] = struct{}{}
	snapshot := h.lastSnapshot
	h.mu.Unlock()

	h.loop.Enqueue(sim.Command{
		OriginTick: h.tick.Load(),
		ActorID:    id,
		Type:       sim.CommandJoin,
		IssuedAt:   time.Now(),
	})

	resp := joinResponse{
		Ver:             ProtocolVersion,
		ID:              id,
		Snapshot:        snapshot,
		TickRate:        h.TickRate(),
		HeartbeatMillis: heartbeatInterval.Milliseconds(),
	}
	if h.cfg.AbilityIDs != nil {
		resp.Abilities = h.cfg.AbilityIDs()
	}
	return resp
}

// Subscribe associates a websocket connection with a joined caster.
func (h *Hub) Subscribe(casterID string, conn *websocket.Conn) (*Subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.known[casterID]; !ok {
		return nil, false
	}
	if existing, ok := h.subscribers[casterID]; ok {
		existing.conn.Close()
	}
	sub := &Subscriber{conn: conn}
	h.subscribers[casterID] = sub
	return sub, true
}

// Disconnect stages the caster's removal and closes its connection.
func (h *Hub) Disconnect(casterID string) {
	h.mu.Lock()
	sub, subOK := h.subscribers[casterID]
	if subOK {
		delete(h.subscribers, casterID)
	}
	_, known := h.known[casterID]
	delete(h.known, casterID)
	h.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
	if known {
		h.loop.Enqueue(sim.Command{
			OriginTick: h.tick.Load(),
			ActorID:    casterID,
			Type:       sim.CommandLeave,
			IssuedAt:   time.Now(),
		})
	}
}

// EnqueueCommand stamps and stages a command for the next tick.
func (h *Hub) EnqueueCommand(cmd sim.Command) (sim.Command, bool, string) {
	h.mu.Lock()
	_, known := h.known[cmd.ActorID]
	h.mu.Unlock()
	if !known {
		return cmd, false, sim.CommandRejectUnknownActor
	}
	cmd.OriginTick = h.tick.Load()
	cmd.IssuedAt = time.Now()
	ok, reason := h.loop.Enqueue(cmd)
	return cmd, ok, reason
}

// UpdateHeartbeat computes the round trip estimate and stages the heartbeat.
func (h *Hub) UpdateHeartbeat(casterID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	var rtt time.Duration
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt = receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
		}
	}
	_, ok, _ := h.EnqueueCommand(sim.Command{
		ActorID: casterID,
		Type:    sim.CommandHeartbeat,
		Heartbeat: &sim.HeartbeatCommand{
			ReceivedAt: receivedAt,
			ClientSent: clientSent,
			RTT:        rtt,
		},
	})
	return rtt, ok
}

// ReloadAbilities swaps the live ability source. Safe to call from the
// catalog watcher goroutine.
func (h *Hub) ReloadAbilities(src engine.AbilitySource) {
	h.engine.ReplaceAbilities(src)
}

// Diagnostics summarizes hub and loop health for the diagnostics endpoint.
func (h *Hub) Diagnostics() DiagnosticsReport {
	h.mu.Lock()
	snapshot := h.lastSnapshot
	report := DiagnosticsReport{
		Tick:         h.lastTick,
		Subscribers:  len(h.subscribers),
		Charging:     snapshot.Instrument.Charging,
		AbilityID:    snapshot.Instrument.AbilityID,
		LastStepMS:   float64(h.lastStep.Microseconds()) / 1000,
		ClampedTicks: h.clampedTicks,
	}
	h.mu.Unlock()

	for _, caster := range snapshot.Casters {
		report.Casters = append(report.Casters, diagnosticsCaster{ID: caster.ID, Mana: caster.Mana, RTTMillis: caster.RTTMillis})
	}
	report.PendingCmds = h.loop.Pending()
	if h.cfg.Metrics != nil {
		report.Counters = h.cfg.Metrics.SnapshotCounters()
		report.Gauges = h.cfg.Metrics.SnapshotGauges()
	}
	return report
}

func (h *Hub) afterStep(result sim.LoopStepResult) {
	h.mu.Lock()
	h.lastSnapshot = result.Snapshot
	h.lastTick = result.Tick
	h.lastStep = result.Duration
	if result.ClampedDelta {
		h.clampedTicks++
	}
	var toClose []*Subscriber
	for _, id := range result.RemovedCasters {
		if sub, ok := h.subscribers[id]; ok {
			toClose = append(toClose, sub)
			delete(h.subscribers, id)
		}
		delete(h.known, id)
	}
	subs := make(map[string]*Subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	if h.cfg.Metrics != nil {
		h.cfg.Metrics.TelemetryStore("hub_subscribers", uint64(len(subs)))
		h.cfg.Metrics.TelemetryStore("loop_step_micros", uint64(result.Duration.Microseconds()))
	}

	for _, sub := range toClose {
		sub.conn.Close()
	}

	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Tick:       result.Tick,
		Snapshot:   result.Snapshot,
		Events:     result.Events,
		ServerTime: result.Now.UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		if logger := h.logger(); logger != nil {
			logger.Printf("failed to marshal state message: %v", err)
		}
		return
	}

	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			if logger := h.logger(); logger != nil {
				logger.Printf("failed to send update to %s: %v", id, err)
			}
			h.Disconnect(id)
		}
	}
}

func (h *Hub) logger() telemetry.Logger {
	return h.loop.Deps().Logger
}
