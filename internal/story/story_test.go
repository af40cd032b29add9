package story

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewIDDeterministic(t *testing.T) {
	t.Parallel()

	u, err := ParseURL("https://example.com/a")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	shard, _ := ShardFromString("2024-05")
	a := NewID(shard, u)
	b := NewID(shard, u)
	if a != b {
		t.Fatalf("expected deterministic IDs, got %q and %q", a, b)
	}

	idShard, ok := a.Shard()
	if !ok || idShard != shard {
		t.Fatalf("expected shard %v from id %q, got %v %v", shard, a, idShard, ok)
	}
}

func TestSetContributionReplacesLowerSignal(t *testing.T) {
	t.Parallel()

	s := &Story{}
	first := Contribution{SourceName: "reddit", SourceID: "abc", SourceSignal: 40}
	if !s.SetContribution(first) {
		t.Fatalf("expected first contribution to be accepted")
	}
	lower := Contribution{SourceName: "reddit", SourceID: "def", SourceSignal: 10}
	if s.SetContribution(lower) {
		t.Fatalf("expected lower-signal duplicate to be dropped")
	}
	higher := Contribution{SourceName: "reddit", SourceID: "ghi", SourceSignal: 90}
	if !s.SetContribution(higher) {
		t.Fatalf("expected higher-signal duplicate to replace")
	}
	if len(s.Contributions) != 1 {
		t.Fatalf("expected one contribution per source, got %d", len(s.Contributions))
	}
	if got, _ := s.Contribution("reddit"); got.SourceID != "ghi" {
		t.Fatalf("expected replacement to win, got %q", got.SourceID)
	}

	other := Contribution{SourceName: "hackernews", SourceID: "1", SourceSignal: 5}
	if !s.SetContribution(other) {
		t.Fatalf("expected contribution from a second source to append")
	}
	if len(s.Contributions) != 2 {
		t.Fatalf("expected two contributions, got %d", len(s.Contributions))
	}
}

func TestTagSetJSONRoundTrip(t *testing.T) {
	t.Parallel()

	ts := NewTagSet("rust", "compilers", "rust", "")
	if ts.Len() != 2 {
		t.Fatalf("expected duplicates and empties dropped, got %d", ts.Len())
	}

	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["compilers","rust"]` {
		t.Fatalf("expected sorted encoding, got %s", data)
	}

	var back TagSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Contains("rust") || !back.Contains("compilers") {
		t.Fatalf("round-trip lost tags: %v", back.List())
	}
}

func TestInputRecordShard(t *testing.T) {
	t.Parallel()

	rec := InputRecord{SubmittedAt: time.Date(2024, 3, 2, 4, 0, 0, 0, time.UTC)}
	if got := rec.Shard().String(); got != "2024-03" {
		t.Fatalf("unexpected shard: %q", got)
	}
}
