package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"horse.fit/paperboy/internal/story"
)

// Dump streams the shard's raw records to w, one JSON object per line.
// The output is the backup format: named by period, human-inspectable,
// and loadable through restore in any order.
func (s *ShardStore) Dump(w io.Writer) (int, error) {
	records, err := s.RawRecords()
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encode raw record: %w", err)
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return 0, fmt.Errorf("write backup: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flush backup: %w", err)
	}
	return len(records), nil
}

// ReadBackup parses a backup stream back into input records, preserving
// line order.
func ReadBackup(r io.Reader) ([]story.InputRecord, error) {
	var out []story.InputRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec story.InputRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode backup line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return out, nil
}
