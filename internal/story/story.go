package story

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ID identifies a story forever. It encodes the shard the story was created
// in plus the hash of its normalized URL, so replaying the same records
// assigns the same IDs.
type ID string

// NewID derives the story identifier from the creation shard and the
// normalized URL.
func NewID(shard Shard, u URL) ID {
	return ID(fmt.Sprintf("%s:%016x", shard, u.NormHash()))
}

// Shard extracts the creation shard from the identifier.
func (id ID) Shard() (Shard, bool) {
	s := string(id)
	if len(s) < 8 {
		return 0, false
	}
	return ShardFromString(s[:7])
}

// Contribution is one source's signal data attached to a story. A story
// holds at most one contribution per source; a higher-signal rescrape of the
// same story on the same source replaces the older entry.
type Contribution struct {
	SourceName   string    `json:"source"`
	SourceID     string    `json:"source_id"`
	SourceSignal float64   `json:"source_signal"`
	CommentCount int       `json:"comment_count"`
	CommentURL   string    `json:"comment_url,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Story is the single merged record for one real-world story across all
// contributing sources.
type Story struct {
	ID               ID             `json:"id"`
	CanonicalURL     string         `json:"url"`
	NormURL          string         `json:"norm_url"`
	NormalizedDomain string         `json:"domain"`
	Title            string         `json:"title"`
	TitleSource      string         `json:"title_source"`
	Language         string         `json:"language,omitempty"`
	Tags             TagSet         `json:"tags"`
	Contributions    []Contribution `json:"contributions"`
	CreatedAt        time.Time      `json:"created_at"`
	LastUpdatedAt    time.Time      `json:"last_updated_at"`
	Score            float64        `json:"score"`
}

// Contribution returns the entry for a source, if any.
func (s *Story) Contribution(sourceName string) (Contribution, bool) {
	for _, c := range s.Contributions {
		if c.SourceName == sourceName {
			return c, true
		}
	}
	return Contribution{}, false
}

// SetContribution appends or replaces the entry for c's source, keeping the
// higher-signal duplicate. It reports whether the story changed.
func (s *Story) SetContribution(c Contribution) bool {
	for i, existing := range s.Contributions {
		if existing.SourceName != c.SourceName {
			continue
		}
		if c.SourceSignal < existing.SourceSignal {
			return false
		}
		s.Contributions[i] = c
		return true
	}
	s.Contributions = append(s.Contributions, c)
	return true
}

// TagSet is a set of canonical tags with deterministic (sorted) iteration
// and JSON encoding.
type TagSet struct {
	set map[string]struct{}
}

func NewTagSet(tags ...string) TagSet {
	ts := TagSet{}
	for _, t := range tags {
		ts.Add(t)
	}
	return ts
}

func (ts *TagSet) Add(tag string) {
	if tag == "" {
		return
	}
	if ts.set == nil {
		ts.set = map[string]struct{}{}
	}
	ts.set[tag] = struct{}{}
}

func (ts TagSet) Contains(tag string) bool {
	_, ok := ts.set[tag]
	return ok
}

func (ts TagSet) Len() int { return len(ts.set) }

// List returns the tags in sorted order.
func (ts TagSet) List() []string {
	out := make([]string, 0, len(ts.set))
	for t := range ts.set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (ts TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.List())
}

func (ts *TagSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*ts = NewTagSet(tags...)
	return nil
}
