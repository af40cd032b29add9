package story

import "time"

// InputRecord is one scraped listing of a story on one source, as delivered
// by a source parser. Records are immutable once produced; the raw log and
// the backup files serialize them verbatim for replay.
type InputRecord struct {
	SourceName   string    `json:"source"`
	SourceID     string    `json:"source_id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	RawTags      []string  `json:"raw_tags,omitempty"`
	Author       string    `json:"author,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	SourceSignal float64   `json:"source_signal"`
	CommentCount int       `json:"comment_count"`
	CommentURL   string    `json:"comment_url,omitempty"`
}

// Shard returns the time bucket the record's submission falls into.
func (r InputRecord) Shard() Shard {
	return ShardFromTime(r.SubmittedAt)
}
