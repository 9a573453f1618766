package engine

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"simbridge.dev/internal/protocol"
	"simbridge.dev/internal/sim/bridge"
	"simbridge.dev/internal/sim/entity"
	"simbridge.dev/internal/sim/router"
)

func startServer(t *testing.T) (*bridge.Bridge, string) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	b, err := bridge.New(bridge.Config{}, logger, bridge.Options{})
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	srv := httptest.NewServer(NewServer(b, logger).Handler())
	t.Cleanup(srv.Close)
	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var v T
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read: %v", err)
	}
	return v
}

func hello() protocol.HelloMsg {
	return protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		HostName:        "test-host",
		Mission:         protocol.MissionInfo{Name: "training", Theatre: "Syria"},
	}
}

func TestHandshake_Welcome(t *testing.T) {
	b, url := startServer(t)
	conn := dial(t, url)
	send(t, conn, hello())
	w := recv[protocol.WelcomeMsg](t, conn)
	if w.Type != protocol.TypeWelcome || w.SessionHash != b.SessionHash() || w.MaxQueue != 32 {
		t.Fatalf("welcome = %+v", w)
	}
	m, _ := b.Mission()
	if m.Theatre != "Syria" {
		t.Fatalf("mission = %+v", m)
	}
}

func TestHandshake_RejectsBadVersion(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	h := hello()
	h.ProtocolVersion = "1.0"
	send(t, conn, h)
	e := recv[protocol.ErrorMsg](t, conn)
	if e.Code != protocol.ErrProtoVersion {
		t.Fatalf("error = %+v", e)
	}
}

func TestHandshake_SecondHostBusy(t *testing.T) {
	_, url := startServer(t)
	first := dial(t, url)
	send(t, first, hello())
	recv[protocol.WelcomeMsg](t, first)

	second := dial(t, url)
	send(t, second, hello())
	e := recv[protocol.ErrorMsg](t, second)
	if e.Code != protocol.ErrHostBusy {
		t.Fatalf("error = %+v", e)
	}
}

func TestFrame_DrivesHeartbeatAndScripts(t *testing.T) {
	b, url := startServer(t)
	conn := dial(t, url)
	send(t, conn, hello())
	recv[protocol.WelcomeMsg](t, conn)

	var batch map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"smoke":{"color":"white","location":{"lat":35,"lng":36}}}`), &batch)
	res := b.Submit(router.Caller{Role: router.RoleGameMaster}, batch)
	if res.CommandHash == "" {
		t.Fatalf("smoke not queued: %+v", res.Outcomes)
	}

	send(t, conn, protocol.FrameMsg{
		Type: protocol.TypeFrame,
		Time: 1,
		Units: []entity.Update{{ID: 5, Patch: entity.Patch{
			Category: entity.Ptr(entity.CategoryHelicopter),
			Alive:    entity.Ptr(true),
		}}},
	})
	sc := recv[protocol.ScriptMsg](t, conn)
	if sc.Type != protocol.TypeScript || sc.Seq != 1 || !strings.Contains(sc.Script, "Olympus.smoke") {
		t.Fatalf("script = %+v", sc)
	}
	send(t, conn, protocol.ScriptResultMsg{Type: protocol.TypeScriptResult, Seq: sc.Seq})

	if !b.IsCommandExecuted(res.CommandHash) {
		t.Fatalf("command not executed")
	}
	if got := b.Stats().Units; got != 1 {
		t.Fatalf("units = %d, want 1", got)
	}
}

func TestScriptResult_ErrorRetractsCommand(t *testing.T) {
	b, url := startServer(t)
	conn := dial(t, url)
	send(t, conn, hello())
	recv[protocol.WelcomeMsg](t, conn)

	var batch map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"smoke":{"color":"blue","location":{"lat":35,"lng":36}}}`), &batch)
	res := b.Submit(router.Caller{Role: router.RoleGameMaster}, batch)
	send(t, conn, protocol.FrameMsg{Type: protocol.TypeFrame, Time: 1})
	sc := recv[protocol.ScriptMsg](t, conn)
	if !b.IsCommandExecuted(res.CommandHash) {
		t.Fatalf("command not dispatched")
	}

	send(t, conn, protocol.ScriptResultMsg{Type: protocol.TypeScriptResult, Seq: sc.Seq, Error: "attempt to call a nil value"})
	deadline := time.Now().Add(2 * time.Second)
	for b.IsCommandExecuted(res.CommandHash) {
		if time.Now().After(deadline) {
			t.Fatalf("command still executed after the host rejected it")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s := b.Stats(); s.CommandsFailed != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestLink_QueueFull(t *testing.T) {
	done := make(chan struct{})
	l := newLink(1, done)
	if err := l.Exec("h1", "a"); err != nil {
		t.Fatalf("first exec: %v", err)
	}
	if err := l.Exec("h2", "b"); err != ErrQueueFull {
		t.Fatalf("second exec err = %v, want ErrQueueFull", err)
	}
	if hash, ok := l.settle(1); !ok || hash != "h1" {
		t.Fatalf("settle(1) = %q %v, want h1", hash, ok)
	}
	if _, ok := l.settle(2); ok {
		t.Fatalf("unsent script still tracked")
	}
	close(done)
	<-l.out
	if err := l.Exec("h3", "c"); err == nil {
		t.Fatalf("exec on closed link succeeded")
	}
}
