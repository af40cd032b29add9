package scrape

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"horse.fit/paperboy/internal/story"
)

// hackerNews parses the Algolia search API shape.
type hackerNews struct{}

func (hackerNews) Name() string { return "hackernews" }

func (h hackerNews) Parse(payload []byte) ([]story.InputRecord, error) {
	var body struct {
		Hits []struct {
			ObjectID    string `json:"objectID"`
			URL         string `json:"url"`
			Title       string `json:"title"`
			Points      int    `json:"points"`
			NumComments int    `json:"num_comments"`
			CreatedAt   string `json:"created_at"`
			Author      string `json:"author"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("parse hackernews payload: %w", err)
	}
	out := make([]story.InputRecord, 0, len(body.Hits))
	for _, hit := range body.Hits {
		submitted, err := time.Parse(time.RFC3339, hit.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse hackernews created_at %q: %w", hit.CreatedAt, err)
		}
		out = append(out, story.InputRecord{
			SourceName:   h.Name(),
			SourceID:     hit.ObjectID,
			URL:          hit.URL,
			Title:        hit.Title,
			Author:       hit.Author,
			SubmittedAt:  submitted.UTC(),
			SourceSignal: float64(hit.Points),
			CommentCount: hit.NumComments,
			CommentURL:   "https://news.ycombinator.com/item?id=" + hit.ObjectID,
		})
	}
	return out, nil
}

// lobsters parses the hottest.json feed shape.
type lobsters struct{}

func (lobsters) Name() string { return "lobsters" }

func (l lobsters) Parse(payload []byte) ([]story.InputRecord, error) {
	var items []struct {
		ShortID       string   `json:"short_id"`
		URL           string   `json:"url"`
		Title         string   `json:"title"`
		Score         int      `json:"score"`
		CommentCount  int      `json:"comment_count"`
		CreatedAt     string   `json:"created_at"`
		Tags          []string `json:"tags"`
		CommentsURL   string   `json:"comments_url"`
		SubmitterUser string   `json:"submitter_user"`
	}
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("parse lobsters payload: %w", err)
	}
	out := make([]story.InputRecord, 0, len(items))
	for _, item := range items {
		submitted, err := time.Parse(time.RFC3339, item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse lobsters created_at %q: %w", item.CreatedAt, err)
		}
		out = append(out, story.InputRecord{
			SourceName:   l.Name(),
			SourceID:     item.ShortID,
			URL:          item.URL,
			Title:        item.Title,
			RawTags:      item.Tags,
			Author:       item.SubmitterUser,
			SubmittedAt:  submitted.UTC(),
			SourceSignal: float64(item.Score),
			CommentCount: item.CommentCount,
			CommentURL:   item.CommentsURL,
		})
	}
	return out, nil
}

// reddit parses the listing API shape. The subreddit doubles as a raw tag.
type reddit struct{}

func (reddit) Name() string { return "reddit" }

func (r reddit) Parse(payload []byte) ([]story.InputRecord, error) {
	var body struct {
		Data struct {
			Children []struct {
				Data struct {
					ID          string  `json:"id"`
					URL         string  `json:"url"`
					Title       string  `json:"title"`
					Score       int     `json:"score"`
					NumComments int     `json:"num_comments"`
					CreatedUTC  float64 `json:"created_utc"`
					Permalink   string  `json:"permalink"`
					Subreddit   string  `json:"subreddit"`
					Author      string  `json:"author"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("parse reddit payload: %w", err)
	}
	out := make([]story.InputRecord, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		d := child.Data
		sec, frac := math.Modf(d.CreatedUTC)
		out = append(out, story.InputRecord{
			SourceName:   r.Name(),
			SourceID:     d.ID,
			URL:          d.URL,
			Title:        d.Title,
			RawTags:      []string{strings.ToLower(d.Subreddit)},
			Author:       d.Author,
			SubmittedAt:  time.Unix(int64(sec), int64(frac*1e9)).UTC(),
			SourceSignal: float64(d.Score),
			CommentCount: d.NumComments,
			CommentURL:   "https://www.reddit.com" + d.Permalink,
		})
	}
	return out, nil
}

// slashdot parses the firehose feed shape. Topics double as raw tags.
type slashdot struct{}

func (slashdot) Name() string { return "slashdot" }

func (s slashdot) Parse(payload []byte) ([]story.InputRecord, error) {
	var items []struct {
		ID           string   `json:"id"`
		URL          string   `json:"url"`
		Title        string   `json:"title"`
		CommentCount int      `json:"comment_count"`
		Time         string   `json:"time"`
		Topics       []string `json:"topics"`
		StoryURL     string   `json:"story_url"`
	}
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("parse slashdot payload: %w", err)
	}
	out := make([]story.InputRecord, 0, len(items))
	for _, item := range items {
		submitted, err := time.Parse(time.RFC3339, item.Time)
		if err != nil {
			return nil, fmt.Errorf("parse slashdot time %q: %w", item.Time, err)
		}
		out = append(out, story.InputRecord{
			SourceName:   s.Name(),
			SourceID:     item.ID,
			URL:          item.URL,
			Title:        item.Title,
			RawTags:      item.Topics,
			SubmittedAt:  submitted.UTC(),
			SourceSignal: float64(item.CommentCount),
			CommentCount: item.CommentCount,
			CommentURL:   item.StoryURL,
		})
	}
	return out, nil
}
