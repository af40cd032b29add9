package store

import (
	"encoding/json"
	"fmt"
	"time"

	"horse.fit/paperboy/internal/story"
)

// StoryRow maps the per-shard stories table. Tags and contributions are
// stored as JSON text so the row stays self-contained and the shard file
// stays human-recoverable with plain sqlite tooling.
type StoryRow struct {
	ID            string    `gorm:"column:id;primaryKey"`
	NormURL       string    `gorm:"column:norm_url;not null;uniqueIndex"`
	CanonicalURL  string    `gorm:"column:canonical_url;not null"`
	Domain        string    `gorm:"column:domain;not null;index"`
	Title         string    `gorm:"column:title;not null"`
	TitleSource   string    `gorm:"column:title_source;not null"`
	Language      string    `gorm:"column:language"`
	Tags          string    `gorm:"column:tags;not null;default:'[]'"`
	Contributions string    `gorm:"column:contributions;not null;default:'[]'"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	LastUpdatedAt time.Time `gorm:"column:last_updated_at;not null"`
	Score         float64   `gorm:"column:score;not null;default:0"`
}

func (StoryRow) TableName() string { return "stories" }

func autoMigrateModels() []any {
	return []any{&StoryRow{}}
}

func rowFromStory(s *story.Story) (StoryRow, error) {
	tags, err := json.Marshal(s.Tags)
	if err != nil {
		return StoryRow{}, fmt.Errorf("encode tags: %w", err)
	}
	contributions, err := json.Marshal(s.Contributions)
	if err != nil {
		return StoryRow{}, fmt.Errorf("encode contributions: %w", err)
	}
	return StoryRow{
		ID:            string(s.ID),
		NormURL:       s.NormURL,
		CanonicalURL:  s.CanonicalURL,
		Domain:        s.NormalizedDomain,
		Title:         s.Title,
		TitleSource:   s.TitleSource,
		Language:      s.Language,
		Tags:          string(tags),
		Contributions: string(contributions),
		CreatedAt:     s.CreatedAt.UTC(),
		LastUpdatedAt: s.LastUpdatedAt.UTC(),
		Score:         s.Score,
	}, nil
}

func (r StoryRow) Story() (*story.Story, error) {
	s := &story.Story{
		ID:               story.ID(r.ID),
		CanonicalURL:     r.CanonicalURL,
		NormURL:          r.NormURL,
		NormalizedDomain: r.Domain,
		Title:            r.Title,
		TitleSource:      r.TitleSource,
		Language:         r.Language,
		CreatedAt:        r.CreatedAt.UTC(),
		LastUpdatedAt:    r.LastUpdatedAt.UTC(),
		Score:            r.Score,
	}
	if err := json.Unmarshal([]byte(r.Tags), &s.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Contributions), &s.Contributions); err != nil {
		return nil, fmt.Errorf("decode contributions of %s: %w", r.ID, err)
	}
	return s, nil
}
