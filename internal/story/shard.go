package story

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Shard is a calendar-month bucket of stories, encoded as an ordinal so
// adjacent months are adjacent integers across year boundaries.
type Shard int

// ShardFromTime buckets a timestamp (interpreted in UTC) into its shard.
func ShardFromTime(t time.Time) Shard {
	utc := t.UTC()
	return Shard(utc.Year()*12 + int(utc.Month()) - 1)
}

// ShardFromString parses the on-disk shard name, e.g. "2024-03".
func ShardFromString(s string) (Shard, bool) {
	year, month, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, false
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 {
		return 0, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return 0, false
	}
	return Shard(y*12 + m - 1), true
}

func (s Shard) String() string {
	return fmt.Sprintf("%04d-%02d", int(s)/12, int(s)%12+1)
}

func (s Shard) Prev() Shard { return s - 1 }
func (s Shard) Next() Shard { return s + 1 }

// Start returns the first instant of the shard's month in UTC.
func (s Shard) Start() time.Time {
	return time.Date(int(s)/12, time.Month(int(s)%12+1), 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls inside this shard's month.
func (s Shard) Contains(t time.Time) bool {
	return ShardFromTime(t) == s
}

// ShardRange enumerates the shards covering [from, to], oldest first. A zero
// "from" or "to" leaves the corresponding bound open and is clamped by the
// caller's known shard range.
func ShardRange(from, to Shard) []Shard {
	if to < from {
		return nil
	}
	out := make([]Shard, 0, int(to-from)+1)
	for s := from; s <= to; s++ {
		out = append(out, s)
	}
	return out
}
