package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"simbridge.dev/internal/protocol"
	"simbridge.dev/internal/sim/entity"
)

type hostConfig struct {
	Name     string
	Units    int
	FailRate float64
	Seed     int64
}

// unit flies a circle around its anchor.
type unit struct {
	id        uint32
	category  string
	coalition uint8
	anchor    entity.Coords
	radius    float64
	phase     float64
	speed     float64
}

type host struct {
	cfg   hostConfig
	log   *log.Logger
	rng   *rand.Rand
	units []unit

	wmu  sync.Mutex
	conn *websocket.Conn

	frames  int
	scripts int
	sent    bool
}

var categories = []string{entity.CategoryAircraft, entity.CategoryHelicopter, entity.CategoryGroundUnit, entity.CategoryNavyUnit}

func newHost(cfg hostConfig, logger *log.Logger) *host {
	h := &host{cfg: cfg, log: logger, rng: rand.New(rand.NewSource(cfg.Seed))}
	for i := 0; i < cfg.Units; i++ {
		h.units = append(h.units, unit{
			id:        uint32(i + 1),
			category:  categories[i%len(categories)],
			coalition: uint8(1 + i%2),
			anchor:    entity.Coords{Lat: 42 + h.rng.Float64(), Lng: 41 + h.rng.Float64(), Alt: 1000 + 500*h.rng.Float64()},
			radius:    0.01 + 0.02*h.rng.Float64(),
			phase:     2 * math.Pi * h.rng.Float64(),
			speed:     50 + 200*h.rng.Float64(),
		})
	}
	return h
}

func (h *host) hello() protocol.HelloMsg {
	return protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		HostName:        h.cfg.Name,
		MaxQueue:        64,
		Mission: protocol.MissionInfo{
			Name:        "simhost",
			Theatre:     "Caucasus",
			DateAndTime: `{"date":{"Year":2016,"Month":6,"Day":21},"time":{"h":12,"m":0,"s":0}}`,
			Airbases:    json.RawMessage(`{"1":{"callsign":"Batumi","coalition":"blue","latitude":41.61,"longitude":41.6}}`),
			Bullseyes:   json.RawMessage(`{"1":{"latitude":42.0,"longitude":41.5,"coalition":"red"},"2":{"latitude":42.5,"longitude":42.0,"coalition":"blue"}}`),
		},
	}
}

// frame advances every unit to time t. The first frame carries the full
// static description; later ones only what moves.
func (h *host) frame(t time.Duration) protocol.FrameMsg {
	f := protocol.FrameMsg{Type: protocol.TypeFrame, Time: t.Milliseconds()}
	secs := t.Seconds()
	for _, u := range h.units {
		a := u.phase + secs*u.speed/(u.radius*111_000)
		pos := entity.Coords{
			Lat: u.anchor.Lat + u.radius*math.Sin(a),
			Lng: u.anchor.Lng + u.radius*math.Cos(a),
			Alt: u.anchor.Alt,
		}
		p := entity.Patch{
			Position: &pos,
			Speed:    entity.Ptr(u.speed),
			Heading:  entity.Ptr(math.Mod(a+math.Pi/2, 2*math.Pi)),
		}
		if !h.sent {
			p.Category = entity.Ptr(u.category)
			p.Alive = entity.Ptr(true)
			p.Coalition = entity.Ptr(u.coalition)
			p.Name = entity.Ptr(fmt.Sprintf("%s-%d", u.category, u.id))
			p.UnitName = entity.Ptr(fmt.Sprintf("Unit #%d", u.id))
			p.GroupName = entity.Ptr(fmt.Sprintf("Group #%d", u.id))
			p.IsLeader = entity.Ptr(true)
			p.Fuel = entity.Ptr(1.0)
		}
		f.Units = append(f.Units, entity.Update{ID: u.id, Patch: p})
	}
	h.sent = true
	h.frames++
	return f
}

// result answers one SCRIPT message, failing a FailRate fraction of them.
func (h *host) result(s protocol.ScriptMsg) protocol.ScriptResultMsg {
	h.scripts++
	r := protocol.ScriptResultMsg{Type: protocol.TypeScriptResult, Seq: s.Seq}
	if h.cfg.FailRate > 0 && h.rng.Float64() < h.cfg.FailRate {
		r.Error = "simulated script error"
	}
	return r
}

func (h *host) write(v any) error {
	h.wmu.Lock()
	defer h.wmu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return h.conn.WriteJSON(v)
}

// Run connects, performs the handshake and then sends a frame every
// interval until ctx is done or the link drops.
func (h *host) Run(ctx context.Context, url string, interval time.Duration) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	h.conn = conn
	defer conn.Close()

	if err := h.write(h.hello()); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read WELCOME: %w", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		_ = json.Unmarshal(msg, &w)
		h.log.Printf("WELCOME session=%s max_queue=%d", w.SessionHash, w.MaxQueue)
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return fmt.Errorf("rejected: %s: %s", e.Code, e.Message)
	default:
		return fmt.Errorf("unexpected %s before WELCOME", base.Type)
	}

	// Scripts are answered from the reader goroutine; rng and counters
	// are only touched under mu.
	var mu sync.Mutex
	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeScript {
				continue
			}
			var s protocol.ScriptMsg
			if err := json.Unmarshal(msg, &s); err != nil {
				continue
			}
			mu.Lock()
			res := h.result(s)
			mu.Unlock()
			h.log.Printf("SCRIPT seq=%d %s", s.Seq, s.Script)
			if err := h.write(res); err != nil {
				readErr <- err
				return
			}
		}
	}()

	start := time.Now()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.wmu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			h.wmu.Unlock()
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-t.C:
			mu.Lock()
			f := h.frame(time.Since(start))
			mu.Unlock()
			if err := h.write(f); err != nil {
				return err
			}
		}
	}
}
