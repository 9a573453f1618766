// Package snapshot stores point-in-time copies of the bridge state as a
// JSON header line followed by a gob body, zstd-compressed.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"simbridge.dev/internal/sim/bridge"
	"simbridge.dev/internal/sim/scheduler"
)

const Version = 1

type Header struct {
	Version     int    `json:"version"`
	SessionHash string `json:"session_hash"`
	Time        int64  `json:"time"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	HostTime int64     `json:"host_time"`
	Mission  MissionV1 `json:"mission"`

	Options scheduler.CommandModeOptions `json:"command_mode_options"`

	// Units and Weapons are full delta frames.
	Units   []byte `json:"units"`
	Weapons []byte `json:"weapons"`

	Pending  []PendingV1 `json:"pending"`
	Executed int         `json:"executed"`
}

type MissionV1 struct {
	Name      string `json:"name"`
	Theatre   string `json:"theatre"`
	DateTime  string `json:"date_time,omitempty"`
	Airbases  []byte `json:"airbases,omitempty"`
	Bullseyes []byte `json:"bullseyes,omitempty"`
}

type PendingV1 struct {
	Hash     string `json:"hash"`
	Kind     string `json:"kind"`
	Priority string `json:"priority"`
	Load     int    `json:"load"`
	Script   string `json:"script"`
}

// FromState converts a bridge state copy into its stored form.
func FromState(st bridge.State) SnapshotV1 {
	s := SnapshotV1{
		Header:   Header{Version: Version, SessionHash: st.SessionHash, Time: st.Time.UnixMilli()},
		HostTime: st.HostTime,
		Mission: MissionV1{
			Name:      st.Mission.Name,
			Theatre:   st.Mission.Theatre,
			DateTime:  st.Mission.DateTime,
			Airbases:  st.Mission.Airbases,
			Bullseyes: st.Mission.Bullseyes,
		},
		Options:  st.Options,
		Units:    st.Units,
		Weapons:  st.Weapons,
		Executed: st.Executed,
	}
	for _, p := range st.Pending {
		s.Pending = append(s.Pending, PendingV1(p))
	}
	return s
}

// FileName is the canonical name of a snapshot taken at t.
func FileName(t time.Time) string {
	return t.UTC().Format("20060102T150405.000Z") + ".snap.zst"
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is duplicated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

// List returns the snapshot files in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the newest snapshot in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	files, err := List(dir)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[len(files)-1], nil
}

// Prune deletes all but the newest keep snapshots. keep <= 0 keeps all.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	files, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(files) <= keep {
		return nil, nil
	}
	old := files[:len(files)-keep]
	for _, p := range old {
		if err := os.Remove(p); err != nil {
			return nil, err
		}
	}
	return old, nil
}
