package httpapi

import (
	"fmt"
	"net/http"
)

func (s *Server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	st := s.bridge.Status()
	m := s.bridge.Stats()

	fmt.Fprintf(rw, "# HELP simbridge_host_connected Whether a simulation host is attached.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_host_connected gauge\n")
	fmt.Fprintf(rw, "simbridge_host_connected %d\n", b2i(m.HostConnected))

	fmt.Fprintf(rw, "# HELP simbridge_frame_rate Observed host frame rate.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_frame_rate gauge\n")
	fmt.Fprintf(rw, "simbridge_frame_rate %d\n", st.FrameRate)

	fmt.Fprintf(rw, "# HELP simbridge_pending_load Summed load of pending commands.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_pending_load gauge\n")
	fmt.Fprintf(rw, "simbridge_pending_load %d\n", st.Load)

	fmt.Fprintf(rw, "# HELP simbridge_pending_commands Pending command count.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_pending_commands gauge\n")
	fmt.Fprintf(rw, "simbridge_pending_commands %d\n", m.Pending)

	fmt.Fprintf(rw, "# HELP simbridge_entities Tracked entities.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_entities gauge\n")
	fmt.Fprintf(rw, "simbridge_entities{kind=%q} %d\n", "unit", m.Units)
	fmt.Fprintf(rw, "simbridge_entities{kind=%q} %d\n", "weapon", m.Weapons)

	fmt.Fprintf(rw, "# HELP simbridge_heartbeats_total Host frames processed.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_heartbeats_total counter\n")
	fmt.Fprintf(rw, "simbridge_heartbeats_total %d\n", m.Heartbeats)

	fmt.Fprintf(rw, "# HELP simbridge_commands_total Commands handed to the host.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_commands_total counter\n")
	fmt.Fprintf(rw, "simbridge_commands_total{result=%q} %d\n", "ok", m.CommandsExecuted-m.CommandsFailed)
	fmt.Fprintf(rw, "simbridge_commands_total{result=%q} %d\n", "error", m.CommandsFailed)

	fmt.Fprintf(rw, "# HELP simbridge_requests_total Client batches handled.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_requests_total counter\n")
	fmt.Fprintf(rw, "simbridge_requests_total %d\n", m.Requests)

	fmt.Fprintf(rw, "# HELP simbridge_intents_dropped_total Intents rejected by the router.\n")
	fmt.Fprintf(rw, "# TYPE simbridge_intents_dropped_total counter\n")
	fmt.Fprintf(rw, "simbridge_intents_dropped_total %d\n", m.IntentsDropped)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
