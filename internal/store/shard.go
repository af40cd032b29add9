package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"horse.fit/paperboy/internal/index"
	"horse.fit/paperboy/internal/story"
)

// ErrNotFound reports a story lookup miss.
var ErrNotFound = errors.New("story not found")

const (
	storyDBFile = "shard.db"
	rawLogFile  = "raw.log"
	segmentFile = "segment.json"
)

// ShardStore owns one shard directory: the story table (source of truth),
// the append-only raw record log for replay, and the persisted index
// segment snapshot.
type ShardStore struct {
	shard story.Shard
	dir   string
	gdb   *gorm.DB

	rawMu   sync.Mutex
	rawFile *os.File
}

func openShardStore(shard story.Shard, dir string) (*ShardStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard dir %s: %w", dir, err)
	}

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(dir, storyDBFile)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open shard %s database: %w", shard, err)
	}
	if err := gdb.AutoMigrate(autoMigrateModels()...); err != nil {
		return nil, fmt.Errorf("auto-migrate shard %s: %w", shard, err)
	}

	rawFile, err := os.OpenFile(filepath.Join(dir, rawLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open shard %s raw log: %w", shard, err)
	}

	return &ShardStore{shard: shard, dir: dir, gdb: gdb, rawFile: rawFile}, nil
}

func (s *ShardStore) Shard() story.Shard { return s.shard }
func (s *ShardStore) Dir() string        { return s.dir }

func (s *ShardStore) Close() error {
	s.rawMu.Lock()
	defer s.rawMu.Unlock()
	if s.rawFile != nil {
		_ = s.rawFile.Close()
		s.rawFile = nil
	}
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StoryByNormURL finds the story clustered under a normalized URL.
func (s *ShardStore) StoryByNormURL(ctx context.Context, normURL string) (*story.Story, error) {
	var row StoryRow
	err := s.gdb.WithContext(ctx).Where("norm_url = ?", normURL).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query shard %s by norm url: %w", s.shard, err)
	}
	return row.Story()
}

// StoryByID finds one story by its identifier.
func (s *ShardStore) StoryByID(ctx context.Context, id story.ID) (*story.Story, error) {
	var row StoryRow
	err := s.gdb.WithContext(ctx).Where("id = ?", string(id)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query shard %s by id: %w", s.shard, err)
	}
	return row.Story()
}

// SaveStory inserts or fully replaces one story row.
func (s *ShardStore) SaveStory(ctx context.Context, st *story.Story) error {
	row, err := rowFromStory(st)
	if err != nil {
		return err
	}
	err = s.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save story %s in shard %s: %w", st.ID, s.shard, err)
	}
	return nil
}

// Stories returns every story in the shard, ordered by ID so dumps and
// rebuilds are deterministic.
func (s *ShardStore) Stories(ctx context.Context) ([]*story.Story, error) {
	var rows []StoryRow
	if err := s.gdb.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list shard %s stories: %w", s.shard, err)
	}
	out := make([]*story.Story, 0, len(rows))
	for _, row := range rows {
		st, err := row.Story()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// StoryCount returns the number of stories in the shard.
func (s *ShardStore) StoryCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.gdb.WithContext(ctx).Model(&StoryRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count shard %s stories: %w", s.shard, err)
	}
	return count, nil
}

// ClearStories empties the story table, used by restore before replay.
func (s *ShardStore) ClearStories(ctx context.Context) error {
	if err := s.gdb.WithContext(ctx).Exec("DELETE FROM stories").Error; err != nil {
		return fmt.Errorf("clear shard %s stories: %w", s.shard, err)
	}
	return nil
}

// AppendRaw durably appends one accepted input record to the raw log. The
// write is synced before return, so an ingest that reported success can
// always be replayed.
func (s *ShardStore) AppendRaw(rec story.InputRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode raw record: %w", err)
	}
	s.rawMu.Lock()
	defer s.rawMu.Unlock()
	if s.rawFile == nil {
		return fmt.Errorf("shard %s raw log is closed", s.shard)
	}
	if _, err := s.rawFile.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append shard %s raw log: %w", s.shard, err)
	}
	if err := s.rawFile.Sync(); err != nil {
		return fmt.Errorf("sync shard %s raw log: %w", s.shard, err)
	}
	return nil
}

// RawRecords reads the whole raw log back in append order.
func (s *ShardStore) RawRecords() ([]story.InputRecord, error) {
	f, err := os.Open(filepath.Join(s.dir, rawLogFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open shard %s raw log: %w", s.shard, err)
	}
	defer f.Close()

	var out []story.InputRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec story.InputRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode shard %s raw log line %d: %w", s.shard, len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read shard %s raw log: %w", s.shard, err)
	}
	return out, nil
}

// ReplaceRaw atomically rewrites the raw log with the given records, used
// by restore. The previous log handle is reopened on the new file.
func (s *ShardStore) ReplaceRaw(records []story.InputRecord) error {
	s.rawMu.Lock()
	defer s.rawMu.Unlock()

	path := filepath.Join(s.dir, rawLogFile)
	tmp, err := os.CreateTemp(s.dir, rawLogFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create shard %s raw log temp: %w", s.shard, err)
	}
	defer os.Remove(tmp.Name())

	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encode raw record: %w", err)
		}
		if _, err := tmp.Write(append(line, '\n')); err != nil {
			tmp.Close()
			return fmt.Errorf("write shard %s raw log temp: %w", s.shard, err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync shard %s raw log temp: %w", s.shard, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("swap shard %s raw log: %w", s.shard, err)
	}

	if s.rawFile != nil {
		_ = s.rawFile.Close()
	}
	s.rawFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen shard %s raw log: %w", s.shard, err)
	}
	return nil
}

// SaveSegment persists the shard's index segment snapshot with a temp file
// and rename, so a crash mid-write never leaves a torn snapshot.
func (s *ShardStore) SaveSegment(docs []index.Doc) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode shard %s segment: %w", s.shard, err)
	}
	path := filepath.Join(s.dir, segmentFile)
	tmp, err := os.CreateTemp(s.dir, segmentFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create shard %s segment temp: %w", s.shard, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write shard %s segment: %w", s.shard, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync shard %s segment: %w", s.shard, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("swap shard %s segment: %w", s.shard, err)
	}
	return nil
}

// LoadSegment reads the persisted segment snapshot. A missing snapshot is
// not an error; the segment is rebuildable from the story table.
func (s *ShardStore) LoadSegment() ([]index.Doc, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, segmentFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shard %s segment: %w", s.shard, err)
	}
	var docs []index.Doc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode shard %s segment: %w", s.shard, err)
	}
	return docs, nil
}
