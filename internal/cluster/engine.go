package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/paperboy/internal/globaltime"
	"horse.fit/paperboy/internal/index"
	"horse.fit/paperboy/internal/langdetect"
	"horse.fit/paperboy/internal/rank"
	"horse.fit/paperboy/internal/store"
	"horse.fit/paperboy/internal/story"
	"horse.fit/paperboy/internal/tagger"
)

// RejectError reports a per-record ingestion rejection: malformed input
// that must not touch existing stories. It is never fatal to a batch.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return "record rejected: " + e.Reason }

func reject(format string, args ...any) error {
	return &RejectError{Reason: fmt.Sprintf(format, args...)}
}

// Engine is the clustering, tagging, ranking and indexing core. One engine
// owns a catalog's write path; queries may run concurrently with ingestion.
type Engine struct {
	catalog    *store.Catalog
	idx        *index.Index
	scorer     *rank.Scorer
	normalizer *tagger.Normalizer
	precedence map[string]int
	detect     func(string) string
	now        func() time.Time
	logger     zerolog.Logger

	mergeMu sync.Mutex
	merges  map[story.Shard]*sync.Mutex
}

func NewEngine(catalog *store.Catalog, cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		catalog:    catalog,
		idx:        index.New(),
		scorer:     rank.NewScorer(cfg.Score),
		normalizer: tagger.NewNormalizer(cfg.Tags),
		precedence: cfg.Precedence,
		detect:     langdetect.DetectISO6391,
		now:        globaltime.UTC,
		logger:     logger.With().Str("component", "cluster").Logger(),
		merges:     map[story.Shard]*sync.Mutex{},
	}
}

// SetLanguageDetector swaps the title language detector, letting callers
// avoid loading the full detection models where scoring language does not
// matter.
func (e *Engine) SetLanguageDetector(detect func(string) string) {
	e.detect = detect
}

// Load brings every on-disk shard into the queryable index, preferring the
// persisted segment snapshot and rebuilding from the story table when the
// snapshot is missing.
func (e *Engine) Load(ctx context.Context) error {
	shards, err := e.catalog.Shards()
	if err != nil {
		return err
	}
	for _, shard := range shards {
		s, err := e.catalog.Shard(shard)
		if err != nil {
			return err
		}
		docs, err := s.LoadSegment()
		if err != nil {
			e.logger.Warn().Err(err).Stringer("shard", shard).Msg("segment snapshot unreadable, rebuilding")
			docs = nil
		}
		if docs == nil {
			if docs, err = e.buildDocs(ctx, s); err != nil {
				return err
			}
		}
		e.idx.ReplaceShard(shard, docs)
		e.logger.Info().Stringer("shard", shard).Int("stories", len(docs)).Msg("shard loaded")
	}
	return nil
}

func (e *Engine) buildDocs(ctx context.Context, s *store.ShardStore) ([]index.Doc, error) {
	stories, err := s.Stories(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]index.Doc, 0, len(stories))
	for _, st := range stories {
		docs = append(docs, index.DocFromStory(st))
	}
	return docs, nil
}

// Ingest clusters one input record into a new or existing story, updates
// its tags, contributions, title, score and index entry, and returns the
// story's identifier. The record is durable in the raw log before Ingest
// reports success.
func (e *Engine) Ingest(ctx context.Context, rec story.InputRecord) (story.ID, error) {
	u, err := e.validate(rec)
	if err != nil {
		return "", err
	}

	// Only the candidate shard is horizon-checked. A lookback merge may
	// still touch the shard one month past the horizon; refusing it would
	// fork the story instead of keeping it whole.
	candidate := rec.Shard()
	if err := e.catalog.CheckWritable(candidate, e.now()); err != nil {
		if errors.Is(err, store.ErrShardReadOnly) {
			return "", reject("shard %s is outside the write horizon", candidate)
		}
		return "", err
	}
	candidateStore, err := e.catalog.Shard(candidate)
	if err != nil {
		return "", err
	}
	if err := candidateStore.AppendRaw(rec); err != nil {
		return "", err
	}
	return e.apply(ctx, candidateStore, rec, u)
}

func (e *Engine) validate(rec story.InputRecord) (story.URL, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return story.URL{}, reject("empty title")
	}
	if rec.SourceName == "" {
		return story.URL{}, reject("missing source name")
	}
	if rec.SubmittedAt.IsZero() {
		return story.URL{}, reject("missing submission time")
	}
	u, err := story.ParseURL(rec.URL)
	if err != nil {
		return story.URL{}, reject("%v", err)
	}
	return u, nil
}

// shardLock returns the merge mutex for one shard, creating it lazily.
func (e *Engine) shardLock(s story.Shard) *sync.Mutex {
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()
	mu := e.merges[s]
	if mu == nil {
		mu = &sync.Mutex{}
		e.merges[s] = mu
	}
	return mu
}

// lockMerge takes the merge locks covering a candidate shard and its
// lookback predecessor, oldest shard first so concurrent ingests into
// adjacent shards cannot deadlock. The returned func releases both.
func (e *Engine) lockMerge(candidate story.Shard) func() {
	prev := e.shardLock(candidate.Prev())
	cur := e.shardLock(candidate)
	prev.Lock()
	cur.Lock()
	return func() {
		cur.Unlock()
		prev.Unlock()
	}
}

// apply resolves the record to a story and merges it. It is the shared
// core of ingest and replay; replay skips the raw log append upstream.
// The whole lookup, merge and save runs under the merge locks of the
// candidate shard and its predecessor, so two records for the same story
// can never race each other into divergent rows.
func (e *Engine) apply(ctx context.Context, candidateStore *store.ShardStore, rec story.InputRecord, u story.URL) (story.ID, error) {
	candidate := rec.Shard()
	unlock := e.lockMerge(candidate)
	defer unlock()

	owner := candidateStore
	st, err := candidateStore.StoryByNormURL(ctx, u.Norm)
	if err == nil {
		e.checkAdjacentDuplicate(ctx, candidate, u)
	} else if errors.Is(err, store.ErrNotFound) {
		// Stories near a shard boundary may have been created slightly
		// earlier, so a candidate-shard miss also checks the immediately
		// preceding shard before creating anything.
		var lookbackStore *store.ShardStore
		st, lookbackStore, err = e.lookback(ctx, candidate.Prev(), u)
		if st != nil {
			owner = lookbackStore
		}
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	if st == nil {
		st = e.newStory(candidate, rec, u)
		e.logger.Debug().Str("story", string(st.ID)).Str("source", rec.SourceName).Msg("story created")
	} else {
		e.merge(st, rec)
	}

	st.Score = e.scorer.Score(st, e.now())
	if err := owner.SaveStory(ctx, st); err != nil {
		return "", err
	}
	if err := e.idx.Upsert(index.DocFromStory(st)); err != nil {
		return "", err
	}
	return st.ID, nil
}

// checkAdjacentDuplicate logs the anomaly where the same normalized URL
// holds a story in both the candidate shard and its predecessor, which can
// only arise from out-of-order cross-shard arrivals. The candidate match
// always wins the merge; the duplicate is surfaced for operator repair.
func (e *Engine) checkAdjacentDuplicate(ctx context.Context, candidate story.Shard, u story.URL) {
	dup, _, err := e.lookback(ctx, candidate.Prev(), u)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		e.logger.Error().Err(err).Stringer("shard", candidate.Prev()).Msg("adjacent shard duplicate check failed")
		return
	}
	e.logger.Warn().
		Str("norm_url", u.Norm).
		Str("duplicate", string(dup.ID)).
		Stringer("shard", candidate).
		Stringer("prev_shard", candidate.Prev()).
		Msg("story duplicated across adjacent shards")
}

func (e *Engine) lookback(ctx context.Context, prev story.Shard, u story.URL) (*story.Story, *store.ShardStore, error) {
	s, err := e.catalog.Existing(prev)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, store.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	st, err := s.StoryByNormURL(ctx, u.Norm)
	if err != nil {
		return nil, nil, err
	}
	return st, s, nil
}

func (e *Engine) newStory(shard story.Shard, rec story.InputRecord, u story.URL) *story.Story {
	title := strings.TrimSpace(rec.Title)
	st := &story.Story{
		ID:               story.NewID(shard, u),
		CanonicalURL:     u.Raw,
		NormURL:          u.Norm,
		NormalizedDomain: u.Domain,
		Title:            title,
		TitleSource:      rec.SourceName,
		Language:         e.detect(title),
		Tags:             story.NewTagSet(e.normalizer.NormalizeAll(rec.SourceName, rec.RawTags)...),
		CreatedAt:        rec.SubmittedAt.UTC(),
		LastUpdatedAt:    rec.SubmittedAt.UTC(),
	}
	st.SetContribution(contribution(rec))
	return st
}

// merge folds one record into an existing story: tag union, contribution
// append-or-replace, title upgrade by source precedence.
func (e *Engine) merge(st *story.Story, rec story.InputRecord) {
	for _, tag := range e.normalizer.NormalizeAll(rec.SourceName, rec.RawTags) {
		st.Tags.Add(tag)
	}
	st.SetContribution(contribution(rec))

	if e.rank(rec.SourceName) > e.rank(st.TitleSource) {
		title := strings.TrimSpace(rec.Title)
		if title != "" && title != st.Title {
			st.Title = title
			st.Language = e.detect(title)
		}
		st.TitleSource = rec.SourceName
	}
	if rec.SubmittedAt.UTC().After(st.LastUpdatedAt) {
		st.LastUpdatedAt = rec.SubmittedAt.UTC()
	}
}

func (e *Engine) rank(sourceName string) int { return e.precedence[sourceName] }

func contribution(rec story.InputRecord) story.Contribution {
	return story.Contribution{
		SourceName:   rec.SourceName,
		SourceID:     rec.SourceID,
		SourceSignal: rec.SourceSignal,
		CommentCount: rec.CommentCount,
		CommentURL:   rec.CommentURL,
		SubmittedAt:  rec.SubmittedAt.UTC(),
	}
}

// Search answers a ranked query against the live index.
func (e *Engine) Search(q index.Query) []index.Doc {
	return e.idx.Search(q)
}

// StoryByID returns the full merged story from its owning shard.
func (e *Engine) StoryByID(ctx context.Context, id story.ID) (*story.Story, error) {
	shard, ok := id.Shard()
	if !ok {
		return nil, store.ErrNotFound
	}
	s, err := e.catalog.Existing(shard)
	if err != nil {
		return nil, err
	}
	return s.StoryByID(ctx, id)
}

// TagPopularity buckets the tag's story count per shard for trend views.
func (e *Engine) TagPopularity(tag string, from, to time.Time) []index.TagCount {
	canonical := tag
	if c, ok := e.normalizer.Normalize("", tag); ok {
		canonical = c
	}
	return e.idx.TagCounts(canonical, from, to)
}

// TagSpellings exposes the raw spellings behind a canonical tag.
func (e *Engine) TagSpellings(tag string) []string {
	return e.normalizer.TagsForCanonical(tag)
}

// Tags lists the configured canonical vocabulary.
func (e *Engine) Tags() []string { return e.normalizer.Canonicals() }

// ShardStats is one shard's story count for status output.
type ShardStats struct {
	Shard   string `json:"shard"`
	Stories int64  `json:"stories"`
	Indexed int    `json:"indexed"`
}

// Stats reports per-shard story and index counts, oldest shard first.
func (e *Engine) Stats(ctx context.Context) ([]ShardStats, error) {
	shards, err := e.catalog.Shards()
	if err != nil {
		return nil, err
	}
	out := make([]ShardStats, 0, len(shards))
	for _, shard := range shards {
		s, err := e.catalog.Shard(shard)
		if err != nil {
			return nil, err
		}
		count, err := s.StoryCount(ctx)
		if err != nil {
			return nil, err
		}
		indexed := 0
		if seg := e.idx.Segment(shard); seg != nil {
			indexed = seg.Len()
		}
		out = append(out, ShardStats{Shard: shard.String(), Stories: count, Indexed: indexed})
	}
	return out, nil
}
