package index

import (
	"sort"
	"time"

	"horse.fit/paperboy/internal/story"
)

// Doc is the searchable projection of one story. The shard's story table is
// the source of truth; docs are derived and rebuildable from it.
type Doc struct {
	ID        story.ID  `json:"id"`
	Title     string    `json:"title"`
	Domain    string    `json:"domain"`
	Tags      []string  `json:"tags"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocFromStory projects a story into its index document.
func DocFromStory(s *story.Story) Doc {
	return Doc{
		ID:        s.ID,
		Title:     s.Title,
		Domain:    s.NormalizedDomain,
		Tags:      s.Tags.List(),
		Score:     s.Score,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.LastUpdatedAt,
	}
}

// Segment is one shard's readable index view. A segment is immutable after
// construction; writes build a replacement segment and swap it in, so any
// number of readers can scan a segment without locks.
type Segment struct {
	shard  story.Shard
	docs   []Doc
	byID   map[story.ID]int
	tokens map[string][]int
	tags   map[string][]int
}

// NewSegment builds a segment over a set of docs. Input order does not
// matter; docs are sorted by descending score with the ID as tiebreaker so
// rebuilds are deterministic.
func NewSegment(shard story.Shard, docs []Doc) *Segment {
	sorted := make([]Doc, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ID < sorted[j].ID
	})

	seg := &Segment{
		shard:  shard,
		docs:   sorted,
		byID:   make(map[story.ID]int, len(sorted)),
		tokens: map[string][]int{},
		tags:   map[string][]int{},
	}
	for i, doc := range sorted {
		seg.byID[doc.ID] = i
		for _, tok := range Tokenize(doc.Title) {
			seg.tokens[tok] = append(seg.tokens[tok], i)
		}
		// Tags are searchable as text too, so queries like "rust" hit
		// tagged stories whose title never says the word.
		for _, tag := range doc.Tags {
			seg.tags[tag] = append(seg.tags[tag], i)
			if !tokenListContains(seg.tokens[tag], i) {
				seg.tokens[tag] = append(seg.tokens[tag], i)
			}
		}
	}
	return seg
}

func tokenListContains(list []int, i int) bool {
	// Postings are built in ascending doc order, so only the tail can match.
	return len(list) > 0 && list[len(list)-1] == i
}

// Shard returns the time bucket this segment covers.
func (s *Segment) Shard() story.Shard { return s.shard }

// Len returns the number of indexed docs.
func (s *Segment) Len() int { return len(s.docs) }

// Docs returns the segment's documents, best score first. Callers must not
// mutate the returned slice.
func (s *Segment) Docs() []Doc { return s.docs }

// Doc looks a document up by story ID.
func (s *Segment) Doc(id story.ID) (Doc, bool) {
	if i, ok := s.byID[id]; ok {
		return s.docs[i], true
	}
	return Doc{}, false
}

// TagCount returns how many docs in the segment carry the tag.
func (s *Segment) TagCount(tag string) int { return len(s.tags[tag]) }

// withUpsert returns a new segment with the doc added or replaced.
func (s *Segment) withUpsert(doc Doc) *Segment {
	docs := make([]Doc, 0, len(s.docs)+1)
	for _, d := range s.docs {
		if d.ID != doc.ID {
			docs = append(docs, d)
		}
	}
	docs = append(docs, doc)
	return NewSegment(s.shard, docs)
}

// withRemove returns a new segment without the doc, or the receiver when
// the doc was not present.
func (s *Segment) withRemove(id story.ID) *Segment {
	if _, ok := s.byID[id]; !ok {
		return s
	}
	docs := make([]Doc, 0, len(s.docs)-1)
	for _, d := range s.docs {
		if d.ID != id {
			docs = append(docs, d)
		}
	}
	return NewSegment(s.shard, docs)
}

// search returns the docs matching q, best score first. Offset and limit
// are applied by the caller after the cross-shard merge.
func (s *Segment) search(q Query) []Doc {
	textTokens := Tokenize(q.Text)
	var out []Doc
	for i, doc := range s.docs {
		if s.matches(i, doc, q, textTokens) {
			out = append(out, doc)
		}
	}
	return out
}

func (s *Segment) matches(i int, doc Doc, q Query, textTokens []string) bool {
	if !q.From.IsZero() && doc.CreatedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !doc.CreatedAt.Before(q.To) {
		return false
	}
	if q.DomainPrefix != "" && !story.DomainMatchesPrefix(doc.Domain, q.DomainPrefix) {
		return false
	}
	for _, tag := range q.Tags {
		if !postingContains(s.tags[tag], i) {
			return false
		}
	}
	for _, tok := range textTokens {
		if !postingContains(s.tokens[tok], i) {
			return false
		}
	}
	return true
}

func postingContains(list []int, i int) bool {
	n := sort.SearchInts(list, i)
	return n < len(list) && list[n] == i
}
