package index

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"horse.fit/paperboy/internal/story"
)

// DefaultLimit caps result pages when the caller does not ask for a size.
const DefaultLimit = 30

// Query describes one search. All filters are conjunctive. Text matches
// title words and canonical tags; DomainPrefix is a reversed-label domain
// ("com.example" matches every subdomain of example.com); From/To bound
// story creation time and a zero value leaves that bound open.
type Query struct {
	Text         string
	Tags         []string
	DomainPrefix string
	From         time.Time
	To           time.Time
	Offset       int
	Limit        int
}

// TagCount is one shard's story count for a tag, for trend aggregates.
type TagCount struct {
	Shard story.Shard `json:"shard"`
	Count int         `json:"count"`
}

// shardIndex pairs a shard's current readable segment with the mutex that
// serializes writers. Readers never take the mutex; they load the segment
// pointer once and scan that immutable snapshot.
type shardIndex struct {
	writeMu sync.Mutex
	seg     atomic.Pointer[Segment]
}

func (si *shardIndex) load() *Segment { return si.seg.Load() }

// Index is the sharded search index. Each shard holds an immutable segment
// behind an atomic pointer; writes rebuild the segment and swap it, so a
// long write never blocks concurrent queries and queries never observe a
// half-applied update.
type Index struct {
	mu     sync.RWMutex
	shards map[story.Shard]*shardIndex
}

func New() *Index {
	return &Index{shards: map[story.Shard]*shardIndex{}}
}

func (ix *Index) shard(s story.Shard, create bool) *shardIndex {
	ix.mu.RLock()
	si := ix.shards[s]
	ix.mu.RUnlock()
	if si != nil || !create {
		return si
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if si = ix.shards[s]; si == nil {
		si = &shardIndex{}
		si.seg.Store(NewSegment(s, nil))
		ix.shards[s] = si
	}
	return si
}

// Upsert adds or replaces one story's doc in the shard its ID encodes. The
// new doc is visible to every query issued after Upsert returns.
func (ix *Index) Upsert(doc Doc) error {
	shard, ok := doc.ID.Shard()
	if !ok {
		return fmt.Errorf("index: doc %q has no parseable shard", doc.ID)
	}
	si := ix.shard(shard, true)
	si.writeMu.Lock()
	defer si.writeMu.Unlock()
	si.seg.Store(si.load().withUpsert(doc))
	return nil
}

// Remove drops a story from the index. Removing an absent story is a no-op.
func (ix *Index) Remove(id story.ID) {
	shard, ok := id.Shard()
	if !ok {
		return
	}
	si := ix.shard(shard, false)
	if si == nil {
		return
	}
	si.writeMu.Lock()
	defer si.writeMu.Unlock()
	si.seg.Store(si.load().withRemove(id))
}

// ReplaceShard swaps in a freshly built segment for the whole shard, used
// by restore and rebuild.
func (ix *Index) ReplaceShard(shard story.Shard, docs []Doc) {
	si := ix.shard(shard, true)
	si.writeMu.Lock()
	defer si.writeMu.Unlock()
	si.seg.Store(NewSegment(shard, docs))
}

// DropShard removes a shard's segment entirely, used when retention closes
// a shard out of the queryable window.
func (ix *Index) DropShard(shard story.Shard) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.shards, shard)
}

// Segment returns a shard's current readable snapshot, or nil when the
// shard is not loaded. The caller may scan it freely; it never mutates.
func (ix *Index) Segment(shard story.Shard) *Segment {
	si := ix.shard(shard, false)
	if si == nil {
		return nil
	}
	return si.load()
}

// Shards lists the loaded shards, oldest first.
func (ix *Index) Shards() []story.Shard {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]story.Shard, 0, len(ix.shards))
	for s := range ix.shards {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Doc looks one story's doc up across shards via the shard its ID encodes.
func (ix *Index) Doc(id story.ID) (Doc, bool) {
	shard, ok := id.Shard()
	if !ok {
		return Doc{}, false
	}
	seg := ix.Segment(shard)
	if seg == nil {
		return Doc{}, false
	}
	return seg.Doc(id)
}

// Search fans the query out across the shards that intersect its time
// range, newest shard first, merges all matches by descending score and
// applies offset/limit. Each shard is scanned against the snapshot current
// when the scan starts, so in-flight writes never tear a result.
func (ix *Index) Search(q Query) []Doc {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	var merged []Doc
	for _, shard := range ix.queryShards(q) {
		seg := ix.Segment(shard)
		if seg == nil {
			continue
		}
		merged = append(merged, seg.search(q)...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	if q.Offset >= len(merged) {
		return nil
	}
	merged = merged[q.Offset:]
	if len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	return merged
}

// TagCounts buckets the tag's story count per shard across the requested
// range, oldest shard first.
func (ix *Index) TagCounts(tag string, from, to time.Time) []TagCount {
	var out []TagCount
	for _, shard := range ix.Shards() {
		if !from.IsZero() && shard.Next().Start().Before(from) {
			continue
		}
		if !to.IsZero() && shard.Start().After(to) {
			continue
		}
		seg := ix.Segment(shard)
		if seg == nil {
			continue
		}
		out = append(out, TagCount{Shard: shard, Count: seg.TagCount(tag)})
	}
	return out
}

// queryShards returns the shards to scan, newest first, restricted to the
// query's time range when one is set.
func (ix *Index) queryShards(q Query) []story.Shard {
	shards := ix.Shards()
	var out []story.Shard
	for i := len(shards) - 1; i >= 0; i-- {
		s := shards[i]
		if !q.From.IsZero() && s.Next().Start().Before(q.From) {
			continue
		}
		if !q.To.IsZero() && s.Start().After(q.To) {
			continue
		}
		out = append(out, s)
	}
	return out
}
