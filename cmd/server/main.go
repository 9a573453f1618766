package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"simbridge.dev/internal/catalogs"
	"simbridge.dev/internal/config"
	"simbridge.dev/internal/logbuf"
	persistlog "simbridge.dev/internal/persistence/log"
	"simbridge.dev/internal/persistence/r2s3"
	"simbridge.dev/internal/persistence/snapshot"
	"simbridge.dev/internal/sim/bridge"
	"simbridge.dev/internal/transport/engine"
	"simbridge.dev/internal/transport/httpapi"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/bridge.yaml", "path to bridge.yaml")
		addr       = flag.String("addr", "", "http listen address (overrides server.addr)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides persistence.data_dir)")
		dbDir      = flag.String("databases", "", "unit database directory (overrides databases.dir)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
		restore    = flag.Bool("restore_options", true, "restore command mode options from the latest snapshot")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bridge] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Printf("config %s: %v; using defaults", *configPath, err)
	}
	if v := strings.TrimSpace(*addr); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		cfg.Persistence.DataDir = v
	}
	if v := strings.TrimSpace(*dbDir); v != "" {
		cfg.Databases.Dir = v
	}
	if *disableDB {
		cfg.Persistence.IndexDB = false
	}
	ring := logbuf.New(cfg.Logs.RingLines)
	logger.SetOutput(io.MultiWriter(os.Stdout, ring))

	ctx, cancel := signalContext()
	defer cancel()

	cats := catalogs.NewSet(cfg.Databases.Dir)
	if err := cats.Reload(); err != nil {
		logger.Printf("databases: %v; unit type checks disabled until a valid reload", err)
	}
	if cfg.Databases.Watch {
		if err := cats.Watch(ctx, logger); err != nil {
			logger.Printf("databases: watch %s: %v", cfg.Databases.Dir, err)
		}
	}

	mirror, err := openMirror(cfg.Persistence, logger)
	if err != nil {
		logger.Printf("mirror disabled: %v", err)
	}
	defer mirror.Close()

	var audits bridge.MultiAudit
	if cfg.Persistence.Audit {
		al := persistlog.NewAuditLogger(cfg.Persistence.DataDir, logger)
		if mirror != nil {
			al.OnFileClosed(mirror.Enqueue)
		}
		defer al.Close()
		audits = append(audits, al)
	}
	idx, err := openRuntimeIndex(cfg.Persistence.DataDir, !cfg.Persistence.IndexDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		audits = append(audits, idx)
		if err := idx.UpsertCatalogs(cats.Current()); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	opts := bridge.Options{
		Catalog: cats,
		Reload: func() error {
			if err := cats.Reload(); err != nil {
				return err
			}
			if idx != nil {
				return idx.UpsertCatalogs(cats.Current())
			}
			return nil
		},
	}
	if len(audits) > 0 {
		opts.Audit = audits
	}
	b, err := bridge.New(bridge.Config{
		DeadEntityTTL:   cfg.Scheduler.DeadEntityTTL,
		FrameRateWindow: cfg.Scheduler.FrameRateWindow,
		Scheduler:       cfg.SchedulerConfig(),
	}, logger, opts)
	if err != nil {
		logger.Fatalf("bridge: %v", err)
	}
	logger.Printf("session %s", b.SessionHash())

	snapDir := filepath.Join(cfg.Persistence.DataDir, "snapshots")
	if *restore {
		restoreOptions(b, snapDir, logger)
	}
	snapDone := make(chan struct{})
	if every := cfg.Persistence.SnapshotEvery; every > 0 {
		sink := snapshotSink{dir: snapDir, keep: cfg.Persistence.SnapshotKeep, idx: idx, mirror: mirror}
		go func() {
			defer close(snapDone)
			runSnapshots(ctx, b, sink, every, logger)
		}()
	} else {
		close(snapDone)
	}

	mux := newMux(b, ring, cfg, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (engine link %s)", cfg.Server.Addr, cfg.Engine.Path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-snapDone
}

func newMux(b *bridge.Bridge, logs httpapi.Logs, cfg config.Config, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	api := httpapi.NewServer(b, logs, httpapi.Credentials{
		GameMaster:    cfg.Authentication.GameMasterPassword,
		BlueCommander: cfg.Authentication.BlueCommanderPassword,
		RedCommander:  cfg.Authentication.RedCommanderPassword,
	}, logger)
	api.MaxBodyBytes = cfg.Server.MaxBodyBytes
	api.LogRequests = cfg.Server.LogRequests
	api.Register(mux)

	eng := engine.NewServer(b, logger)
	eng.ReadTimeout = cfg.Engine.ReadTimeout
	mux.HandleFunc("GET "+cfg.Engine.Path, eng.Handler())
	return mux
}

// openMirror returns nil when no mirror is configured.
func openMirror(p config.Persistence, logger *log.Logger) (*r2s3.Mirror, error) {
	if !p.Mirror.Enabled() {
		return nil, nil
	}
	client, err := r2s3.New(r2s3.Config{
		Endpoint:        p.Mirror.Endpoint,
		Bucket:          p.Mirror.Bucket,
		Region:          p.Mirror.Region,
		AccessKeyID:     os.Getenv("SIMBRIDGE_MIRROR_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("SIMBRIDGE_MIRROR_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return nil, err
	}
	logger.Printf("mirror: %s/%s prefix=%q", p.Mirror.Endpoint, p.Mirror.Bucket, p.Mirror.Prefix)
	return r2s3.NewMirror(client, p.DataDir, p.Mirror.Prefix, p.Mirror.Workers, logger), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func restoreOptions(b *bridge.Bridge, dir string, logger *log.Logger) {
	path, err := snapshot.Latest(dir)
	if err != nil || path == "" {
		return
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		logger.Printf("read snapshot %s: %v", filepath.Base(path), err)
		return
	}
	b.RestoreOptions(snap.Options)
	logger.Printf("restored command mode options from %s", filepath.Base(path))
}
