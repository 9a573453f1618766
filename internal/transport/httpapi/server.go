// Package httpapi serves the client REST surface under /olympus together
// with the health and metrics endpoints.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"simbridge.dev/internal/protocol"
	"simbridge.dev/internal/sim/bridge"
	"simbridge.dev/internal/sim/router"
	"simbridge.dev/internal/sim/scheduler"
)

// Bridge is the part of *bridge.Bridge the HTTP surface needs.
type Bridge interface {
	Submit(caller router.Caller, batch map[string]json.RawMessage) router.Result
	IsCommandExecuted(hash string) bool
	UnitsFrame(ref int64) []byte
	WeaponsFrame(ref int64) []byte
	Status() bridge.Status
	Mission() (bridge.Mission, scheduler.CommandModeOptions)
	Stats() bridge.Stats
}

// Logs serves recent log lines.
type Logs interface {
	Since(t int64) map[string]string
}

type Server struct {
	bridge Bridge
	logs   Logs
	creds  Credentials
	log    *log.Logger

	// MaxBodyBytes bounds PUT bodies.
	MaxBodyBytes int64
	// LogRequests logs every request line.
	LogRequests bool
}

func NewServer(b Bridge, logs Logs, creds Credentials, logger *log.Logger) *Server {
	return &Server{bridge: b, logs: logs, creds: creds, log: logger, MaxBodyBytes: 4 << 20}
}

// Register mounts every route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.wrap(false, s.handleRoot))
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("OPTIONS /", preflight)

	mux.HandleFunc("PUT /olympus", s.wrap(true, s.handlePut))
	mux.HandleFunc("GET /olympus/units", s.wrap(true, s.handleUnits))
	mux.HandleFunc("GET /olympus/weapons", s.wrap(true, s.handleWeapons))
	mux.HandleFunc("GET /olympus/commands", s.wrap(true, s.handleCommand))
	mux.HandleFunc("GET /olympus/logs", s.wrap(true, s.handleLogs))
	mux.HandleFunc("GET /olympus/airbases", s.wrap(true, s.handleAirbases))
	mux.HandleFunc("GET /olympus/bullseyes", s.wrap(true, s.handleBullseyes))
	mux.HandleFunc("GET /olympus/mission", s.wrap(true, s.handleMission))
}

type handler func(rw http.ResponseWriter, r *http.Request, caller router.Caller)

// wrap adds CORS headers, authentication and panic recovery.
func (s *Server) wrap(authRequired bool, h handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		cors(rw.Header())
		if s.LogRequests {
			s.log.Printf("Request [%s] %s", r.Method, r.URL.RequestURI())
		}
		caller, ok := s.creds.authenticate(r)
		if authRequired && !ok {
			rw.Header().Set("WWW-Authenticate", `Basic realm="olympus"`)
			writeJSON(rw, http.StatusUnauthorized, protocol.ErrorResponse{Error: "Unauthorized", Code: protocol.ErrUnauthorized})
			return
		}
		defer func() {
			if p := recover(); p != nil {
				s.log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, p)
				writeJSON(rw, http.StatusInternalServerError, protocol.ErrorResponse{
					Error:     fmt.Sprint(p),
					Code:      protocol.ErrInternal,
					Exception: true,
				})
			}
		}()
		h(rw, r, caller)
	}
}

func cors(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Headers", "Accept, Origin, Content-Type, Authorization, Refresh")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD, PUT, DELETE")
}

func preflight(rw http.ResponseWriter, r *http.Request) {
	cors(rw.Header())
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) common() protocol.Common {
	st := s.bridge.Status()
	return protocol.Common{
		Time:        strconv.FormatInt(st.Time, 10),
		SessionHash: st.SessionHash,
		Load:        st.Load,
		FrameRate:   st.FrameRate,
	}
}

// referenceTime parses ?time=; anything missing or malformed is 0.
func referenceTime(r *http.Request) int64 {
	v, err := strconv.ParseUint(r.URL.Query().Get("time"), 10, 64)
	if err != nil {
		return 0
	}
	return int64(v)
}

func (s *Server) handleRoot(rw http.ResponseWriter, r *http.Request, _ router.Caller) {
	writeJSON(rw, http.StatusOK, map[string]bool{"running": true})
}

func (s *Server) handlePut(rw http.ResponseWriter, r *http.Request, caller router.Caller) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.MaxBodyBytes))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, protocol.ErrorResponse{Error: err.Error(), Code: protocol.ErrBadRequest})
		return
	}
	var batch map[string]json.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		writeJSON(rw, http.StatusBadRequest, protocol.ErrorResponse{Error: "request body must be a JSON object", Code: protocol.ErrBadRequest})
		return
	}
	res := s.bridge.Submit(caller, batch)
	for _, o := range res.Outcomes {
		if o.Status == router.StatusDropped || o.Status == router.StatusUnknown {
			s.log.Printf("%s (%s): %s %s: %s", caller.Username, caller.Role, o.Intent, o.Status, o.Reason)
		}
	}
	writeJSON(rw, http.StatusOK, protocol.PutResponse{CommandHash: res.CommandHash, Common: s.common()})
}

func (s *Server) handleUnits(rw http.ResponseWriter, r *http.Request, _ router.Caller) {
	writeBinary(rw, s.bridge.UnitsFrame(referenceTime(r)))
}

func (s *Server) handleWeapons(rw http.ResponseWriter, r *http.Request, _ router.Caller) {
	writeBinary(rw, s.bridge.WeaponsFrame(referenceTime(r)))
}

func (s *Server) handleCommand(rw http.ResponseWriter, r *http.Request, _ router.Caller) {
	q := r.URL.Query()
	if !q.Has("commandHash") {
		writeJSON(rw, http.StatusBadRequest, protocol.ErrorResponse{Error: "Missing commandHash parameter!"})
		return
	}
	writeJSON(rw, http.StatusOK, protocol.CommandStatusResponse{
		CommandExecuted: s.bridge.IsCommandExecuted(q.Get("commandHash")),
		Common:          s.common(),
	})
}

func (s *Server) handleLogs(rw http.ResponseWriter, r *http.Request, _ router.Caller) {
	logs := map[string]string{}
	if s.logs != nil {
		logs = s.logs.Since(referenceTime(r))
	}
	writeJSON(rw, http.StatusOK, protocol.LogsResponse{Logs: logs, Common: s.common()})
}

func (s *Server) handleAirbases(rw http.ResponseWriter, r *http.Request, _ router.Caller) {
	m, _ := s.bridge.Mission()
	s.writeMissionData(rw, "airbases", m.Airbases)
}

func (s *Server) handleBullseyes(rw http.ResponseWriter, r *http.Request, _ router.Caller) {
	m, _ := s.bridge.Mission()
	s.writeMissionData(rw, "bullseyes", m.Bullseyes)
}

// writeMissionData answers with the common fields plus key when the host
// reported it.
func (s *Server) writeMissionData(rw http.ResponseWriter, key string, raw json.RawMessage) {
	c := s.common()
	out := map[string]any{
		"time":        c.Time,
		"sessionHash": c.SessionHash,
		"load":        c.Load,
		"frameRate":   c.FrameRate,
	}
	if len(raw) > 0 {
		out[key] = raw
	}
	writeJSON(rw, http.StatusOK, out)
}

type missionBody struct {
	bridge.Mission
	CommandModeOptions commandModeBody `json:"commandModeOptions"`
}

type commandModeBody struct {
	scheduler.CommandModeOptions
	CommandMode string `json:"commandMode"`
}

type missionResponse struct {
	Mission missionBody `json:"mission"`
	protocol.Common
}

func (s *Server) handleMission(rw http.ResponseWriter, r *http.Request, caller router.Caller) {
	m, opts := s.bridge.Mission()
	mode := string(caller.Role)
	if mode == "" {
		mode = "Observer"
	}
	writeJSON(rw, http.StatusOK, missionResponse{
		Mission: missionBody{
			Mission:            m,
			CommandModeOptions: commandModeBody{CommandModeOptions: opts, CommandMode: mode},
		},
		Common: s.common(),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeBinary(rw http.ResponseWriter, b []byte) {
	rw.Header().Set("Content-Type", "application/octet-stream")
	rw.Header().Set("Content-Length", strconv.Itoa(len(b)))
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write(b)
}
