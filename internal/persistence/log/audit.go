package log

import (
	stdlog "log"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"simbridge.dev/internal/sim/bridge"
)

// CommandEntry is one line of commands-*.jsonl.zst.
type CommandEntry struct {
	ID string `json:"id"`
	bridge.CommandRecord
}

// RequestEntry is one line of requests-*.jsonl.zst.
type RequestEntry struct {
	ID string `json:"id"`
	bridge.RequestRecord
}

// AuditLogger implements bridge.Audit on two JSONL streams. Write errors
// are logged and otherwise ignored.
type AuditLogger struct {
	log      *stdlog.Logger
	commands *JSONLZstdWriter
	requests *JSONLZstdWriter
}

func NewAuditLogger(dataDir string, logger *stdlog.Logger) *AuditLogger {
	return &AuditLogger{
		log:      logger,
		commands: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "commands"),
		requests: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "requests"),
	}
}

func (l *AuditLogger) CommandExecuted(rec bridge.CommandRecord) {
	e := CommandEntry{ID: ulid.Make().String(), CommandRecord: rec}
	if err := l.commands.Write(e); err != nil {
		l.log.Printf("audit: write command %s: %v", rec.Hash, err)
	}
}

func (l *AuditLogger) RequestHandled(rec bridge.RequestRecord) {
	e := RequestEntry{ID: ulid.Make().String(), RequestRecord: rec}
	if err := l.requests.Write(e); err != nil {
		l.log.Printf("audit: write request %s: %v", rec.Intent, err)
	}
}

// OnFileClosed forwards finished audit files to fn, e.g. an off-site mirror.
func (l *AuditLogger) OnFileClosed(fn func(path string)) {
	l.commands.OnClosed(fn)
	l.requests.OnClosed(fn)
}

func (l *AuditLogger) Close() error {
	err1 := l.commands.Close()
	err2 := l.requests.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
