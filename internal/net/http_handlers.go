package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"emberstaff/server"
	"emberstaff/server/internal/sim"
)

// HTTPHandlerConfig tunes the HTTP surface.
type HTTPHandlerConfig struct {
	ClientDir string
	Logger    *log.Logger
}

type clientMessage struct {
	Ver         int     `json:"ver,omitempty"`
	Type        string  `json:"type"`
	SourceID    string  `json:"sourceId,omitempty"`
	Dominant    bool    `json:"dominant,omitempty"`
	HeldSeconds float64 `json:"heldSeconds,omitempty"`
	AbilityID   string  `json:"abilityId,omitempty"`
	SentAt      int64   `json:"sentAt,omitempty"`
	CommandSeq  *uint64 `json:"seq,omitempty"`
}

type commandAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Tick uint64 `json:"tick,omitempty"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// NewHTTPHandler builds the server mux: join, websocket, diagnostics, and an
// optional static client directory.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status          string                   `json:"status"`
			ServerTime      int64                    `json:"serverTime"`
			TickRate        int                      `json:"tickRate"`
			HeartbeatMillis int64                    `json:"heartbeatMillis"`
			Report          server.DiagnosticsReport `json:"report"`
		}{
			Status:          "ok",
			ServerTime:      time.Now().UnixMilli(),
			TickRate:        hub.TickRate(),
			HeartbeatMillis: hub.HeartbeatInterval().Milliseconds(),
			Report:          hub.Diagnostics(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		join := hub.Join()
		data, err := json.Marshal(join)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		casterID := r.URL.Query().Get("id")
		if casterID == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", casterID, err)
			return
		}

		sub, ok := hub.Subscribe(casterID, conn)
		if !ok {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown caster")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}

		serveSession(hub, sub, conn, casterID, logger)
	})

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func serveSession(hub *server.Hub, sub *server.Subscriber, conn *websocket.Conn, casterID string, logger *log.Logger) {
	writeJSON := func(payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Printf("failed to marshal response for %s: %v", casterID, err)
			return true
		}
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			hub.Disconnect(casterID)
			return false
		}
		return true
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			hub.Disconnect(casterID)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Printf("discarding malformed message from %s: %v", casterID, err)
			continue
		}

		seq := uint64(0)
		if msg.CommandSeq != nil && *msg.CommandSeq > 0 {
			seq = *msg.CommandSeq
		}

		sendAck := func(cmd sim.Command) bool {
			if seq == 0 {
				return true
			}
			ack := commandAckMessage{Ver: server.ProtocolVersion, Type: "commandAck", Seq: seq}
			if cmd.OriginTick > 0 {
				ack.Tick = cmd.OriginTick
			}
			if !writeJSON(ack) {
				return false
			}
			sub.StoreLastCommandSeq(seq)
			return true
		}

		sendReject := func(reason string) bool {
			if seq == 0 {
				return true
			}
			reject := commandRejectMessage{
				Ver:    server.ProtocolVersion,
				Type:   "commandReject",
				Seq:    seq,
				Reason: reason,
				Retry:  reason == sim.CommandRejectQueueLimit,
			}
			return writeJSON(reject)
		}

		if msg.Type == "heartbeat" {
			now := time.Now()
			rtt, ok := hub.UpdateHeartbeat(casterID, now, msg.SentAt)
			if !ok {
				continue
			}
			ack := heartbeatMessage{
				Ver:        server.ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			if !writeJSON(ack) {
				return
			}
			continue
		}

		cmd, ok := decodeCommand(casterID, msg)
		if !ok {
			logger.Printf("unknown message type %q from %s", msg.Type, casterID)
			continue
		}

		if seq > 0 {
			if last := sub.LastCommandSeq(); last > 0 && seq <= last {
				// Duplicate delivery; re-ack without re-staging.
				if !writeJSON(commandAckMessage{Ver: server.ProtocolVersion, Type: "commandAck", Seq: seq}) {
					return
				}
				continue
			}
			cmd.Seq = seq
		}

		staged, ok, reason := hub.EnqueueCommand(cmd)
		if ok {
			if !sendAck(staged) {
				return
			}
			continue
		}
		if reason == sim.CommandRejectUnknownActor {
			logger.Printf("command %s ignored for unknown caster %s", cmd.Type, casterID)
		}
		if !sendReject(reason) {
			return
		}
	}
}

func decodeCommand(casterID string, msg clientMessage) (sim.Command, bool) {
	cmd := sim.Command{ActorID: casterID}
	switch msg.Type {
	case "grab":
		cmd.Type = sim.CommandGrab
		cmd.Grip = &sim.GripCommand{SourceID: msg.SourceID, Dominant: msg.Dominant}
	case "release":
		cmd.Type = sim.CommandRelease
		cmd.Grip = &sim.GripCommand{SourceID: msg.SourceID}
	case "chargeStart":
		cmd.Type = sim.CommandChargeStart
		cmd.Charge = &sim.ChargeCommand{SourceID: msg.SourceID}
	case "chargeFinish":
		cmd.Type = sim.CommandChargeFinish
		cmd.Charge = &sim.ChargeCommand{SourceID: msg.SourceID, HeldSeconds: msg.HeldSeconds}
	case "chargeCancel":
		cmd.Type = sim.CommandChargeCancel
		cmd.Charge = &sim.ChargeCommand{SourceID: msg.SourceID}
	case "equip":
		cmd.Type = sim.CommandEquip
		cmd.Equip = &sim.EquipCommand{AbilityID: msg.AbilityID}
	default:
		return sim.Command{}, false
	}
	if cmd.Grip != nil && cmd.Grip.SourceID == "" {
		return sim.Command{}, false
	}
	if cmd.Charge != nil && cmd.Charge.SourceID == "" {
		return sim.Command{}, false
	}
	if cmd.Equip != nil && cmd.Equip.AbilityID == "" {
		return sim.Command{}, false
	}
	return cmd, true
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
