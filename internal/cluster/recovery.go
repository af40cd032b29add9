package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"horse.fit/paperboy/internal/index"
	"horse.fit/paperboy/internal/store"
	"horse.fit/paperboy/internal/story"
)

// ErrShardNotEmpty guards restore: overwriting live stories requires the
// caller to confirm explicitly.
var ErrShardNotEmpty = errors.New("shard has stories; pass force to overwrite")

// Backup streams one shard's raw records to w and returns the record count.
func (e *Engine) Backup(shard story.Shard, w io.Writer) (int, error) {
	s, err := e.catalog.Existing(shard)
	if err != nil {
		return 0, err
	}
	return s.Dump(w)
}

// Restore replaces a shard's raw log with the backup records and replays
// them through the clustering pipeline from an empty story table, then
// rebuilds and persists the shard's index segment. Without force, a shard
// that already holds stories is refused.
func (e *Engine) Restore(ctx context.Context, shard story.Shard, records []story.InputRecord, force bool) (int, error) {
	s, err := e.catalog.Shard(shard)
	if err != nil {
		return 0, err
	}
	count, err := s.StoryCount(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 && !force {
		return 0, fmt.Errorf("restore %s: %w", shard, ErrShardNotEmpty)
	}

	if err := s.ClearStories(ctx); err != nil {
		return 0, err
	}
	e.idx.ReplaceShard(shard, nil)

	kept := make([]story.InputRecord, 0, len(records))
	for _, rec := range records {
		if rec.Shard() != shard {
			e.logger.Warn().
				Stringer("shard", shard).
				Stringer("record_shard", rec.Shard()).
				Str("url", rec.URL).
				Msg("backup record outside shard period skipped")
			continue
		}
		kept = append(kept, rec)
	}
	if err := s.ReplaceRaw(kept); err != nil {
		return 0, err
	}

	restored := 0
	for _, rec := range kept {
		u, err := e.validate(rec)
		if err != nil {
			var rej *RejectError
			if errors.As(err, &rej) {
				e.logger.Warn().Str("url", rec.URL).Str("reason", rej.Reason).Msg("backup record rejected")
				continue
			}
			return restored, err
		}
		if _, err := e.apply(ctx, s, rec, u); err != nil {
			return restored, err
		}
		restored++
	}

	if err := e.persistShard(ctx, shard, s); err != nil {
		return restored, err
	}
	e.logger.Info().Stringer("shard", shard).Int("records", restored).Msg("shard restored")
	return restored, nil
}

// Replay rebuilds a shard's stories and index from its own raw log, for
// repair after a logic change or corruption. Replay is idempotent: the
// merge rules are a pure function of current state, so replaying a record
// twice equals replaying it once.
func (e *Engine) Replay(ctx context.Context, shard story.Shard, force bool) (int, error) {
	s, err := e.catalog.Existing(shard)
	if err != nil {
		return 0, err
	}
	records, err := s.RawRecords()
	if err != nil {
		return 0, err
	}
	return e.Restore(ctx, shard, records, force)
}

// Initialize bulk-loads backups into empty shards, one backup stream per
// shard. Loading order does not matter; the result matches feeding the
// same records through Ingest one at a time.
func (e *Engine) Initialize(ctx context.Context, backups map[story.Shard][]story.InputRecord) (int, error) {
	shards := make([]story.Shard, 0, len(backups))
	for shard := range backups {
		shards = append(shards, shard)
	}
	// Oldest first, so boundary records find their lookback stories.
	sort.Slice(shards, func(i, j int) bool { return shards[i] < shards[j] })

	total := 0
	for _, shard := range shards {
		n, err := e.Restore(ctx, shard, backups[shard], false)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// RebuildShard reconstructs a shard's index segment from its story table,
// the documented recovery path when a segment snapshot is lost.
func (e *Engine) RebuildShard(ctx context.Context, shard story.Shard) error {
	s, err := e.catalog.Existing(shard)
	if err != nil {
		return err
	}
	docs, err := e.buildDocs(ctx, s)
	if err != nil {
		return err
	}
	e.idx.ReplaceShard(shard, docs)
	return s.SaveSegment(docs)
}

// PersistSegments writes every loaded shard's current segment snapshot to
// disk. Called on shutdown and by the periodic daemon sweep.
func (e *Engine) PersistSegments(ctx context.Context) error {
	for _, shard := range e.idx.Shards() {
		s, err := e.catalog.Shard(shard)
		if err != nil {
			return err
		}
		if err := e.persistShard(ctx, shard, s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) persistShard(_ context.Context, shard story.Shard, s *store.ShardStore) error {
	seg := e.idx.Segment(shard)
	var docs []index.Doc
	if seg != nil {
		docs = seg.Docs()
	}
	return s.SaveSegment(docs)
}
