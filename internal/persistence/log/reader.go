package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Files lists prefix-*.jsonl.zst in dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, filepath.Join(dir, name))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Scan decodes every line of the given files into a fresh T and passes
// it to fn. fn returning false stops the scan.
func Scan[T any](paths []string, fn func(T) bool) error {
	for _, path := range paths {
		more, err := scanFile(path, fn)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func scanFile[T any](path string, fn func(T) bool) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return false, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return false, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if !fn(v) {
			return false, nil
		}
	}
	return true, sc.Err()
}
