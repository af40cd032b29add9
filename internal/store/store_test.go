package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"horse.fit/paperboy/internal/index"
	"horse.fit/paperboy/internal/story"
)

func testShard(t *testing.T) (*Catalog, *ShardStore) {
	t.Helper()
	catalog, err := OpenCatalog(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	shard, _ := story.ShardFromString("2024-05")
	s, err := catalog.Shard(shard)
	if err != nil {
		t.Fatalf("open shard: %v", err)
	}
	return catalog, s
}

func testStory(t *testing.T, rawURL string) *story.Story {
	t.Helper()
	u, err := story.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	shard, _ := story.ShardFromString("2024-05")
	return &story.Story{
		ID:               story.NewID(shard, u),
		CanonicalURL:     u.Raw,
		NormURL:          u.Norm,
		NormalizedDomain: u.Domain,
		Title:            "A story",
		TitleSource:      "hackernews",
		Tags:             story.NewTagSet("rust"),
		Contributions: []story.Contribution{
			{SourceName: "hackernews", SourceID: "1", SourceSignal: 10, SubmittedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		},
		CreatedAt:     time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		LastUpdatedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndLookupStory(t *testing.T) {
	t.Parallel()

	_, s := testShard(t)
	ctx := context.Background()
	st := testStory(t, "https://example.com/a")
	if err := s.SaveStory(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.StoryByNormURL(ctx, st.NormURL)
	if err != nil {
		t.Fatalf("lookup by norm url: %v", err)
	}
	if got.ID != st.ID || got.Title != st.Title || !got.Tags.Contains("rust") {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if len(got.Contributions) != 1 || got.Contributions[0].SourceName != "hackernews" {
		t.Fatalf("contributions lost: %+v", got.Contributions)
	}

	if _, err := s.StoryByNormURL(ctx, "no:such:url"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveStoryReplaces(t *testing.T) {
	t.Parallel()

	_, s := testShard(t)
	ctx := context.Background()
	st := testStory(t, "https://example.com/a")
	if err := s.SaveStory(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Title = "A better title"
	st.Score = 4.5
	if err := s.SaveStory(ctx, st); err != nil {
		t.Fatalf("save again: %v", err)
	}

	count, err := s.StoryCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected upsert, got %d rows", count)
	}
	got, err := s.StoryByID(ctx, st.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Title != "A better title" || got.Score != 4.5 {
		t.Fatalf("update lost: %+v", got)
	}
}

func TestRawLogRoundTrip(t *testing.T) {
	t.Parallel()

	_, s := testShard(t)
	recs := []story.InputRecord{
		{SourceName: "hackernews", SourceID: "1", URL: "https://example.com/a", Title: "one", SubmittedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{SourceName: "reddit", SourceID: "2", URL: "https://example.com/b", Title: "two", SubmittedAt: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, rec := range recs {
		if err := s.AppendRaw(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.RawRecords()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 2 || got[0].SourceID != "1" || got[1].SourceID != "2" {
		t.Fatalf("raw log order lost: %+v", got)
	}
}

func TestDumpAndReadBackup(t *testing.T) {
	t.Parallel()

	_, s := testShard(t)
	rec := story.InputRecord{SourceName: "lobsters", SourceID: "x", URL: "https://example.com/a", Title: "one", SubmittedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)}
	if err := s.AppendRaw(rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	var buf bytes.Buffer
	n, err := s.Dump(&buf)
	if err != nil || n != 1 {
		t.Fatalf("dump: %d, %v", n, err)
	}
	got, err := ReadBackup(&buf)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(got) != 1 || got[0].SourceID != "x" {
		t.Fatalf("backup round-trip mismatch: %+v", got)
	}
}

func TestReplaceRaw(t *testing.T) {
	t.Parallel()

	_, s := testShard(t)
	if err := s.AppendRaw(story.InputRecord{SourceName: "a", SourceID: "old", URL: "https://example.com/a", Title: "old"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.ReplaceRaw([]story.InputRecord{{SourceName: "b", SourceID: "new", URL: "https://example.com/b", Title: "new"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	// Appends keep working against the swapped-in log.
	if err := s.AppendRaw(story.InputRecord{SourceName: "c", SourceID: "tail", URL: "https://example.com/c", Title: "tail"}); err != nil {
		t.Fatalf("append after replace: %v", err)
	}
	got, err := s.RawRecords()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 2 || got[0].SourceID != "new" || got[1].SourceID != "tail" {
		t.Fatalf("unexpected log after replace: %+v", got)
	}
}

func TestSegmentSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	_, s := testShard(t)
	docs := []index.Doc{{ID: "2024-05:0000000000000001", Title: "snapshot", Score: 3}}
	if err := s.SaveSegment(docs); err != nil {
		t.Fatalf("save segment: %v", err)
	}
	got, err := s.LoadSegment()
	if err != nil {
		t.Fatalf("load segment: %v", err)
	}
	if len(got) != 1 || got[0].Title != "snapshot" {
		t.Fatalf("segment round-trip mismatch: %+v", got)
	}
}

func TestCatalogShardDiscoveryAndRetention(t *testing.T) {
	t.Parallel()

	catalog, err := OpenCatalog(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer catalog.Close()

	for _, name := range []string{"2024-01", "2024-04"} {
		shard, _ := story.ShardFromString(name)
		if _, err := catalog.Shard(shard); err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
	}
	shards, err := catalog.Shards()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shards) != 2 || shards[0].String() != "2024-01" {
		t.Fatalf("unexpected shards: %v", shards)
	}

	now := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	old, _ := story.ShardFromString("2024-01")
	if err := catalog.CheckWritable(old, now); !errors.Is(err, ErrShardReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	recent, _ := story.ShardFromString("2024-04")
	if err := catalog.CheckWritable(recent, now); err != nil {
		t.Fatalf("expected recent shard writable, got %v", err)
	}

	missing, _ := story.ShardFromString("2023-01")
	if _, err := catalog.Existing(missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing shard, got %v", err)
	}
}
