package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/paperboy/internal/story"
)

//go:embed scrape_batch.schema.json
var scrapeBatchSchemaJSON string

// ScrapeRecord is one scraped item as delivered on the ingestion boundary.
type ScrapeRecord struct {
	SourceID     string   `json:"source_id"`
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	RawTags      []string `json:"raw_tags,omitempty"`
	Author       string   `json:"author,omitempty"`
	SubmittedAt  string   `json:"submitted_at"`
	SourceSignal float64  `json:"source_signal,omitempty"`
	CommentCount int      `json:"comment_count,omitempty"`
	CommentURL   string   `json:"comment_url,omitempty"`
}

// ScrapeBatch is one source invocation's worth of records.
type ScrapeBatch struct {
	PayloadVersion string         `json:"payload_version"`
	Source         string         `json:"source"`
	Records        []ScrapeRecord `json:"records"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateScrapeBatchPayload checks a raw ingestion payload against the
// embedded JSON schema plus the semantic rules the schema cannot express,
// and returns the decoded batch.
func ValidateScrapeBatchPayload(payload json.RawMessage) (*ScrapeBatch, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}
	var batch ScrapeBatch
	if err := json.Unmarshal(normalized, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// InputRecords converts the batch into engine input records. Must only be
// called on a validated batch, where every timestamp parses.
func (b *ScrapeBatch) InputRecords() []story.InputRecord {
	out := make([]story.InputRecord, 0, len(b.Records))
	for _, r := range b.Records {
		submitted, _ := time.Parse(time.RFC3339, strings.TrimSpace(r.SubmittedAt))
		out = append(out, story.InputRecord{
			SourceName:   b.Source,
			SourceID:     r.SourceID,
			URL:          r.URL,
			Title:        r.Title,
			RawTags:      r.RawTags,
			Author:       r.Author,
			SubmittedAt:  submitted.UTC(),
			SourceSignal: r.SourceSignal,
			CommentCount: r.CommentCount,
			CommentURL:   r.CommentURL,
		})
	}
	return out
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("scrape_batch.schema.json", strings.NewReader(scrapeBatchSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("scrape_batch.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

func validateSemantics(batch *ScrapeBatch) error {
	if batch == nil {
		return fmt.Errorf("payload is nil")
	}
	if strings.TrimSpace(batch.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(batch.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}

	for i, rec := range batch.Records {
		if strings.TrimSpace(rec.SourceID) == "" {
			return fmt.Errorf("records[%d].source_id must not be empty", i)
		}
		if strings.TrimSpace(rec.Title) == "" {
			return fmt.Errorf("records[%d].title must not be empty", i)
		}
		if err := validateURI(fmt.Sprintf("records[%d].url", i), rec.URL); err != nil {
			return err
		}
		if rec.CommentURL != "" {
			if err := validateURI(fmt.Sprintf("records[%d].comment_url", i), rec.CommentURL); err != nil {
				return err
			}
		}
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(rec.SubmittedAt)); err != nil {
			return fmt.Errorf("records[%d].submitted_at must be RFC3339: %w", i, err)
		}
	}
	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
