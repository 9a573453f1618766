// Package engine serves the websocket link to the simulation host.
//
// The host opens /v1/engine and sends HELLO. The bridge answers WELCOME and
// from then on the host streams one FRAME per simulation frame; each frame
// drives one bridge heartbeat. Executed commands travel back as SCRIPT
// messages and the host acknowledges them with SCRIPT_RESULT. A result
// carrying an error retracts the command's executed status.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"simbridge.dev/internal/protocol"
	"simbridge.dev/internal/sim/bridge"
	"simbridge.dev/internal/sim/scheduler"
)

// Bridge is the part of *bridge.Bridge the link drives.
type Bridge interface {
	AttachRuntime(rt scheduler.Runtime, m bridge.Mission) error
	DetachRuntime(rt scheduler.Runtime)
	Heartbeat(f bridge.Frame)
	ScriptFailed(hash, reason string)
	SessionHash() string
}

// ErrQueueFull is returned by a link whose outbound queue is full.
var ErrQueueFull = errors.New("engine link: outbound queue full")

var errClosed = errors.New("engine link: closed")

type Server struct {
	bridge Bridge
	log    *log.Logger

	// ReadTimeout bounds the silence between two host messages.
	ReadTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(b Bridge, logger *log.Logger) *Server {
	return &Server{
		bridge:      b,
		log:         logger,
		ReadTimeout: 60 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// maxInflight bounds the scripts a link remembers while it waits for
// SCRIPT_RESULT. Results for scripts past the bound are only logged.
const maxInflight = 1024

// link is the scheduler.Runtime for one connected host.
type link struct {
	out  chan []byte
	seq  atomic.Uint64
	done <-chan struct{}

	mu       sync.Mutex
	inflight map[uint64]string // seq -> command hash
}

func newLink(queue int, done <-chan struct{}) *link {
	return &link{out: make(chan []byte, queue), done: done, inflight: map[uint64]string{}}
}

func (l *link) Exec(hash, script string) error {
	select {
	case <-l.done:
		return errClosed
	default:
	}
	seq := l.seq.Add(1)
	b, err := json.Marshal(protocol.ScriptMsg{
		Type:   protocol.TypeScript,
		Seq:    seq,
		Script: script,
	})
	if err != nil {
		return err
	}
	l.track(seq, hash)
	select {
	case l.out <- b:
		return nil
	default:
		l.settle(seq)
		return ErrQueueFull
	}
}

func (l *link) track(seq uint64, hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inflight) < maxInflight {
		l.inflight[seq] = hash
	}
}

// settle forgets seq and returns the hash it was sent for.
func (l *link) settle(seq uint64) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hash, ok := l.inflight[seq]
	delete(l.inflight, seq)
	return hash, ok
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, ok := s.handshake(conn, ctx.Done())
		if !ok {
			return
		}
		defer s.bridge.DetachRuntime(l)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-l.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.log.Printf("engine: undecodable message: %v", err)
				continue
			}
			switch base.Type {
			case protocol.TypeFrame:
				var f protocol.FrameMsg
				if err := json.Unmarshal(msg, &f); err != nil {
					s.log.Printf("engine: bad frame: %v", err)
					continue
				}
				s.bridge.Heartbeat(bridge.Frame{
					Time:           f.Time,
					Units:          f.Units,
					Weapons:        f.Weapons,
					RemovedUnits:   f.RemovedUnits,
					RemovedWeapons: f.RemovedWeapons,
				})
			case protocol.TypeScriptResult:
				var res protocol.ScriptResultMsg
				if err := json.Unmarshal(msg, &res); err != nil {
					continue
				}
				hash, tracked := l.settle(res.Seq)
				if res.Error == "" {
					continue
				}
				if !tracked {
					s.log.Printf("engine: untracked script %d failed on host: %s", res.Seq, res.Error)
					continue
				}
				s.bridge.ScriptFailed(hash, res.Error)
			default:
				s.log.Printf("engine: ignoring message type %q", base.Type)
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn, done <-chan struct{}) (*link, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil, false
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 32
	}
	if maxQ > 256 {
		maxQ = 256
	}
	l := newLink(maxQ, done)

	m := hello.Mission
	err = s.bridge.AttachRuntime(l, bridge.Mission{
		Name:      m.Name,
		Theatre:   m.Theatre,
		DateTime:  m.DateAndTime,
		Airbases:  m.Airbases,
		Bullseyes: m.Bullseyes,
	})
	if err != nil {
		reject(conn, protocol.ErrHostBusy, err.Error())
		return nil, false
	}
	if hello.HostName != "" {
		s.log.Printf("engine: host %q connected", hello.HostName)
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionHash:     s.bridge.SessionHash(),
		MaxQueue:        maxQ,
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.bridge.DetachRuntime(l)
		return nil, false
	}
	return l, true
}

func reject(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
