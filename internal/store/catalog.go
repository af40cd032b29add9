package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"horse.fit/paperboy/internal/story"
)

// ErrShardReadOnly reports a write against a shard past the retention
// horizon. Old shards stay queryable but are never mutated.
var ErrShardReadOnly = errors.New("shard is past the retention horizon and read-only")

// Catalog manages the data directory: one subdirectory per shard, named by
// period ("2024-03"), each independently readable and rebuildable.
type Catalog struct {
	dataDir         string
	retentionMonths int

	mu   sync.Mutex
	open map[story.Shard]*ShardStore
}

func OpenCatalog(dataDir string, retentionMonths int) (*Catalog, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is empty")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return &Catalog{
		dataDir:         dataDir,
		retentionMonths: retentionMonths,
		open:            map[story.Shard]*ShardStore{},
	}, nil
}

func (c *Catalog) DataDir() string { return c.dataDir }

// Shards lists every shard present on disk, oldest first. Entries that do
// not parse as a period name are ignored.
func (c *Catalog) Shards() ([]story.Shard, error) {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", c.dataDir, err)
	}
	var out []story.Shard
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if shard, ok := story.ShardFromString(e.Name()); ok {
			out = append(out, shard)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Shard opens (creating if needed) the store for one shard. Stores are
// cached; the same shard always yields the same store instance.
func (c *Catalog) Shard(shard story.Shard) (*ShardStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.open[shard]; ok {
		return s, nil
	}
	s, err := openShardStore(shard, filepath.Join(c.dataDir, shard.String()))
	if err != nil {
		return nil, err
	}
	c.open[shard] = s
	return s, nil
}

// Existing opens the store for a shard only if its directory already
// exists, returning ErrNotFound otherwise. Lookback reads use this so a
// query never creates empty shard directories.
func (c *Catalog) Existing(shard story.Shard) (*ShardStore, error) {
	c.mu.Lock()
	if s, ok := c.open[shard]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	if _, err := os.Stat(filepath.Join(c.dataDir, shard.String())); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("stat shard dir %s: %w", shard, err)
	}
	return c.Shard(shard)
}

// CheckWritable rejects writes to shards past the retention horizon. A
// zero retention disables the horizon.
func (c *Catalog) CheckWritable(shard story.Shard, now time.Time) error {
	if c.retentionMonths <= 0 {
		return nil
	}
	horizon := story.ShardFromTime(now) - story.Shard(c.retentionMonths)
	if shard < horizon {
		return fmt.Errorf("shard %s: %w", shard, ErrShardReadOnly)
	}
	return nil
}

func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for shard, s := range c.open {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.open, shard)
	}
	return firstErr
}
