package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func validPayload() string {
	return `{
		"payload_version": "v1",
		"source": "hackernews",
		"records": [
			{
				"source_id": "39000001",
				"url": "https://example.com/story",
				"title": "A story",
				"raw_tags": ["rust"],
				"submitted_at": "2024-04-10T08:00:00Z",
				"source_signal": 42,
				"comment_count": 7,
				"comment_url": "https://news.ycombinator.com/item?id=39000001"
			}
		]
	}`
}

func TestValidateScrapeBatchPayload(t *testing.T) {
	t.Parallel()

	batch, err := ValidateScrapeBatchPayload(json.RawMessage(validPayload()))
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if batch.Source != "hackernews" || len(batch.Records) != 1 {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	recs := batch.InputRecords()
	if len(recs) != 1 {
		t.Fatalf("expected 1 input record, got %d", len(recs))
	}
	if recs[0].SourceName != "hackernews" || recs[0].SourceSignal != 42 {
		t.Fatalf("unexpected conversion: %+v", recs[0])
	}
	if recs[0].SubmittedAt.IsZero() {
		t.Fatalf("submitted_at lost in conversion")
	}
}

func TestValidateScrapeBatchPayloadRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty payload":    ``,
		"trailing content": validPayload() + `{}`,
		"wrong version":    strings.Replace(validPayload(), `"v1"`, `"v2"`, 1),
		"missing source":   strings.Replace(validPayload(), `"source": "hackernews",`, ``, 1),
		"blank title":      strings.Replace(validPayload(), `"A story"`, `"  "`, 1),
		"bad timestamp":    strings.Replace(validPayload(), `"2024-04-10T08:00:00Z"`, `"yesterday"`, 1),
		"unknown field":    strings.Replace(validPayload(), `"source_signal": 42,`, `"points": 42,`, 1),
		"negative signal":  strings.Replace(validPayload(), `"source_signal": 42`, `"source_signal": -1`, 1),
		"not even json":    `not json`,
	}
	for name, payload := range cases {
		if _, err := ValidateScrapeBatchPayload(json.RawMessage(payload)); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}
