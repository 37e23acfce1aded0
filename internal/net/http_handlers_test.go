package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emberstaff/server"
	"emberstaff/server/abilities/catalog"
	"emberstaff/server/internal/engine"
	"emberstaff/server/internal/sim"
)

const testDefinitions = `
abilities:
  - id: emberbolt
    manaCost: 30
    cooldownSeconds: 3
    minChargeSeconds: 0.5
    effect:
      kind: bolt
`

func newTestHub(t *testing.T) *server.Hub {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "core.yaml"), []byte(testDefinitions), 0o644); err != nil {
		t.Fatalf("write definitions: %v", err)
	}
	abilities, err := catalog.Load(dir, nil)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	eng := engine.New(engine.Config{
		Abilities:        abilities,
		DefaultAbilityID: "emberbolt",
		ManaMax:          100,
	})
	return server.NewHub(server.HubConfig{
		Engine:     eng,
		Loop:       sim.LoopConfig{TickRate: 60, CommandCapacity: 64, PerActorLimit: 16},
		AbilityIDs: abilities.IDs,
	})
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "ok" {
		t.Fatalf("expected ok body, got %q", body)
	}
}

func TestJoinRejectsWrongMethod(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestJoinReturnsCasterAndAbilities(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode join payload: %v", err)
	}
	id, ok := payload["id"].(string)
	if !ok || !strings.HasPrefix(id, "caster-") {
		t.Fatalf("expected caster id, got %v", payload["id"])
	}
	abilitiesValue, ok := payload["abilities"].([]any)
	if !ok || len(abilitiesValue) != 1 || abilitiesValue[0] != "emberbolt" {
		t.Fatalf("expected abilities list [emberbolt], got %v", payload["abilities"])
	}
}

func TestDiagnosticsReportsLoopState(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload struct {
		Status   string                   `json:"status"`
		TickRate int                      `json:"tickRate"`
		Report   server.DiagnosticsReport `json:"report"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode diagnostics payload: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("expected ok status, got %q", payload.Status)
	}
	if payload.TickRate != 60 {
		t.Fatalf("expected tick rate 60, got %d", payload.TickRate)
	}
}

func TestWebsocketRejectsUnknownCaster(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?id=caster-99"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close for unknown caster")
	}
}

func TestWebsocketCommandRoundTrip(t *testing.T) {
	hub := newTestHub(t)
	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	srv := httptest.NewServer(NewHTTPHandler(hub, HTTPHandlerConfig{}))
	defer srv.Close()

	join := hub.Join()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?id=" + join.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	grab := map[string]any{"type": "grab", "sourceId": "right-hand", "dominant": true, "seq": 1}
	if err := conn.WriteJSON(grab); err != nil {
		t.Fatalf("write grab: %v", err)
	}

	var sawAck, sawPrimary bool
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && (!sawAck || !sawPrimary) {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		switch msg["type"] {
		case "commandAck":
			if seq, _ := msg["seq"].(float64); seq == 1 {
				sawAck = true
			}
		case "state":
			snapshot, _ := msg["snapshot"].(map[string]any)
			instrument, _ := snapshot["instrument"].(map[string]any)
			if instrument["primary"] == "right-hand" {
				sawPrimary = true
			}
		}
	}
	if !sawAck {
		t.Fatalf("never received commandAck for seq 1")
	}
	if !sawPrimary {
		t.Fatalf("state broadcast never reflected the grab")
	}
}

func TestDecodeCommandValidation(t *testing.T) {
	if _, ok := decodeCommand("caster-1", clientMessage{Type: "grab"}); ok {
		t.Fatalf("grab without sourceId must be rejected")
	}
	if _, ok := decodeCommand("caster-1", clientMessage{Type: "equip"}); ok {
		t.Fatalf("equip without abilityId must be rejected")
	}
	if _, ok := decodeCommand("caster-1", clientMessage{Type: "levitate"}); ok {
		t.Fatalf("unknown type must be rejected")
	}
	cmd, ok := decodeCommand("caster-1", clientMessage{Type: "chargeFinish", SourceID: "h1", HeldSeconds: 0.75})
	if !ok || cmd.Type != sim.CommandChargeFinish || cmd.Charge.HeldSeconds != 0.75 {
		t.Fatalf("unexpected decode result: %+v ok=%v", cmd, ok)
	}
}
