package cluster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"horse.fit/paperboy/internal/story"
)

// RecordOutcome is the per-record result of a batch ingest.
type RecordOutcome struct {
	Index    int      `json:"index"`
	StoryID  story.ID `json:"story_id,omitempty"`
	Accepted bool     `json:"accepted"`
	Reason   string   `json:"reason,omitempty"`
}

// BatchResult summarizes one scheduled ingestion run for the scheduler's
// run-history log.
type BatchResult struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Accepted   int             `json:"accepted"`
	Rejected   int             `json:"rejected"`
	Outcomes   []RecordOutcome `json:"outcomes"`
}

// IngestBatch feeds one source's records through Ingest in delivery order.
// Rejections are reported per record and never abort the run; storage
// failures do, returning the partial result alongside the error.
func (e *Engine) IngestBatch(ctx context.Context, sourceName string, records []story.InputRecord) (BatchResult, error) {
	result := BatchResult{
		RunID:     uuid.NewString(),
		Source:    sourceName,
		StartedAt: e.now(),
		Outcomes:  make([]RecordOutcome, 0, len(records)),
	}
	logger := e.logger.With().Str("run_id", result.RunID).Str("source", sourceName).Logger()

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			result.FinishedAt = e.now()
			return result, err
		}
		id, err := e.Ingest(ctx, rec)
		if err != nil {
			var rej *RejectError
			if errors.As(err, &rej) {
				result.Rejected++
				result.Outcomes = append(result.Outcomes, RecordOutcome{Index: i, Reason: rej.Reason})
				logger.Debug().Int("record", i).Str("reason", rej.Reason).Msg("record rejected")
				continue
			}
			result.FinishedAt = e.now()
			logger.Error().Err(err).Int("record", i).Msg("batch aborted on storage failure")
			return result, err
		}
		result.Accepted++
		result.Outcomes = append(result.Outcomes, RecordOutcome{Index: i, StoryID: id, Accepted: true})
	}

	result.FinishedAt = e.now()
	logger.Info().
		Int("accepted", result.Accepted).
		Int("rejected", result.Rejected).
		Msg("batch ingested")
	return result, nil
}
