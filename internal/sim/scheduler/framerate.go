package scheduler

import "time"

// FrameRateMeter estimates the host frame rate from heartbeat arrivals,
// recomputed once per window.
type FrameRateMeter struct {
	window time.Duration
	start  time.Time
	frames int
	fps    int
}

func NewFrameRateMeter(window time.Duration) *FrameRateMeter {
	if window <= 0 {
		window = 50 * time.Millisecond
	}
	return &FrameRateMeter{window: window}
}

// Tick counts one frame at now and reports the current estimate and
// whether it was recomputed.
func (m *FrameRateMeter) Tick(now time.Time) (int, bool) {
	if m.start.IsZero() {
		m.start = now
		return m.fps, false
	}
	m.frames++
	elapsed := now.Sub(m.start)
	if elapsed < m.window {
		return m.fps, false
	}
	m.fps = int(float64(m.frames) / elapsed.Seconds())
	m.frames = 0
	m.start = now
	return m.fps, true
}

func (m *FrameRateMeter) FPS() int { return m.fps }
