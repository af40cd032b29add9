package index

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"horse.fit/paperboy/internal/story"
)

func mustDoc(t *testing.T, rawURL, title string, score float64, created time.Time, tags ...string) Doc {
	t.Helper()
	u, err := story.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	shard := story.ShardFromTime(created)
	return Doc{
		ID:        story.NewID(shard, u),
		Title:     title,
		Domain:    u.Domain,
		Tags:      tags,
		Score:     score,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := Tokenize("The Rust borrow checker, explained (again)")
	want := []string{"again", "borrow", "checker", "explained", "rust"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	if Tokenize("the of and a") != nil {
		t.Fatalf("expected pure stop words to tokenize to nothing")
	}
	got = Tokenize("C++ vs C#")
	want = []string{"c#", "c++", "vs"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestSearchTextAndTags(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	ix := New()
	docs := []Doc{
		mustDoc(t, "https://example.com/a", "Rust borrow checker deep dive", 5, created, "rust"),
		mustDoc(t, "https://example.com/b", "Go scheduler internals", 8, created, "go"),
		mustDoc(t, "https://example.com/c", "Why the borrow checker exists", 2, created, "rust", "compilers"),
	}
	for _, d := range docs {
		if err := ix.Upsert(d); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got := ix.Search(Query{Text: "borrow checker"})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Score < got[1].Score {
		t.Fatalf("expected results ordered by score: %v", got)
	}

	// A tag query matches stories whose title never contains the word.
	got = ix.Search(Query{Text: "go"})
	if len(got) != 1 || got[0].Title != "Go scheduler internals" {
		t.Fatalf("unexpected tag-as-text match: %v", got)
	}

	got = ix.Search(Query{Tags: []string{"rust", "compilers"}})
	if len(got) != 1 || got[0].Title != "Why the borrow checker exists" {
		t.Fatalf("unexpected tag filter result: %v", got)
	}
}

func TestSearchDomainPrefix(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	ix := New()
	for i, raw := range []string{
		"https://blog.example.com/post",
		"https://www.example.com/story",
		"https://otherexample.com/story",
	} {
		if err := ix.Upsert(mustDoc(t, raw, fmt.Sprintf("story %d", i), float64(i), created)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got := ix.Search(Query{DomainPrefix: story.ReverseDomain("example.com")})
	if len(got) != 2 {
		t.Fatalf("expected both example.com subdomains and nothing else, got %v", got)
	}
	for _, d := range got {
		if d.Domain == "com.otherexample" {
			t.Fatalf("otherexample.com must not match an example.com prefix query")
		}
	}
}

func TestSearchFansOutAcrossShards(t *testing.T) {
	t.Parallel()

	ix := New()
	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	if err := ix.Upsert(mustDoc(t, "https://a.com/1", "sharded index march", 1, march)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.Upsert(mustDoc(t, "https://a.com/2", "sharded index april", 9, april)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got := ix.Search(Query{Text: "sharded index"})
	if len(got) != 2 || got[0].Title != "sharded index april" {
		t.Fatalf("expected cross-shard merge by score, got %v", got)
	}

	got = ix.Search(Query{Text: "sharded index", From: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)})
	if len(got) != 1 || got[0].Title != "sharded index april" {
		t.Fatalf("expected the time range to exclude march, got %v", got)
	}
}

func TestUpsertReadYourWrites(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	ix := New()
	doc := mustDoc(t, "https://example.com/a", "original title", 1, created)
	if err := ix.Upsert(doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	doc.Title = "revised title"
	doc.Score = 7
	if err := ix.Upsert(doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok := ix.Doc(doc.ID)
	if !ok || got.Title != "revised title" || got.Score != 7 {
		t.Fatalf("expected the rewrite to be immediately visible, got %+v %v", got, ok)
	}
	if seg := ix.Segment(story.ShardFromTime(created)); seg.Len() != 1 {
		t.Fatalf("expected upsert to replace, not duplicate: %d docs", seg.Len())
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	ix := New()
	doc := mustDoc(t, "https://example.com/a", "to be removed", 1, created)
	if err := ix.Upsert(doc); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ix.Remove(doc.ID)
	if _, ok := ix.Doc(doc.ID); ok {
		t.Fatalf("expected doc gone after remove")
	}
	// Removing again is harmless.
	ix.Remove(doc.ID)
}

func TestConcurrentQueriesDuringUpserts(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	ix := New()
	base := make([]Doc, 50)
	for i := range base {
		base[i] = mustDoc(t, fmt.Sprintf("https://example.com/%d", i), "concurrent churn test", 0, created)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			doc := base[i%len(base)]
			doc.Score = float64(i)
			if err := ix.Upsert(doc); err != nil {
				t.Errorf("upsert: %v", err)
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				results := ix.Search(Query{Text: "churn", Limit: 100})
				// Every result must be a complete doc from some snapshot.
				for _, d := range results {
					if d.Title != "concurrent churn test" || d.ID == "" {
						t.Errorf("observed torn doc: %+v", d)
						return
					}
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestTagCounts(t *testing.T) {
	t.Parallel()

	ix := New()
	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	if err := ix.Upsert(mustDoc(t, "https://a.com/1", "one", 1, march, "rust")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.Upsert(mustDoc(t, "https://a.com/2", "two", 1, april, "rust")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.Upsert(mustDoc(t, "https://a.com/3", "three", 1, april, "go")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got := ix.TagCounts("rust", time.Time{}, time.Time{})
	if len(got) != 2 || got[0].Count != 1 || got[1].Count != 1 {
		t.Fatalf("unexpected buckets: %v", got)
	}
	if got[0].Shard.String() != "2024-03" {
		t.Fatalf("expected oldest bucket first, got %v", got[0].Shard)
	}
}
