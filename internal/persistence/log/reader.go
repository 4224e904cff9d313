package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"envoy.ai/internal/sim/session"
)

// ReadTreatyFile decodes every record of one .jsonl.zst file.
func ReadTreatyFile(path string) ([]session.TreatyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []session.TreatyRecord
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r session.TreatyRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ReadTreatyDir reads every treaty log under dir in chronological file order.
func ReadTreatyDir(dir string) ([]session.TreatyRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "treaties-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var out []session.TreatyRecord
	for _, p := range paths {
		recs, err := ReadTreatyFile(p)
		if err != nil {
			return out, err
		}
		out = append(out, recs...)
	}
	return out, nil
}
