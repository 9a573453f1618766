// Command simhost plays the simulation host side of the engine link with a
// handful of synthetic units, for running the bridge without the simulator.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:3001/v1/engine", "engine link url")
		name     = flag.String("name", "simhost", "host name sent in HELLO")
		fps      = flag.Int("fps", 30, "frames per second")
		units    = flag.Int("units", 8, "number of synthetic units")
		failRate = flag.Float64("fail_rate", 0, "fraction of scripts answered with an error")
		seed     = flag.Int64("seed", 1, "rng seed for unit placement and script failures")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[simhost] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h := newHost(hostConfig{
		Name:     *name,
		Units:    *units,
		FailRate: *failRate,
		Seed:     *seed,
	}, logger)
	interval := time.Second / time.Duration(max(*fps, 1))
	if err := h.Run(ctx, *url, interval); err != nil && ctx.Err() == nil {
		logger.Fatalf("run: %v", err)
	}
}
