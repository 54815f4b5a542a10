package filermap

import (
	"context"
	"time"

	"github.com/agentstation/utc"

	"github.com/toriidata/filermap/pkg/catalog"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
)

const backfillDateLayout = "2006-01-02"

// BackfillResult summarizes one backfill step.
type BackfillResult struct {
	RunID       string `json:"run_id,omitempty"`
	WindowStart string `json:"window_start,omitempty"`
	WindowEnd   string `json:"window_end,omitempty"`
	Documents   int    `json:"documents"`

	// Done reports that the cursor has reached the earliest supported
	// date and no window remains.
	Done bool `json:"done"`

	Merge *MergeResult `json:"merge,omitempty"`
}

// Backfill ingests the next historical window of disclosure documents.
// The cursor walks backwards in fixed steps from the present; each call
// fetches one window, merges it as its own run, and persists the advanced
// cursor only after the merge committed. An interrupted backfill therefore
// re-fetches at most one window.
func (f *filermap) Backfill(ctx context.Context) (*BackfillResult, error) {
	if f.config.source == nil {
		return nil, errors.NewValidationError("source", nil, "a document source is required for backfill")
	}

	cursor, err := catalog.LoadCursor(ctx, f.repo)
	if err != nil {
		return nil, err
	}
	if cursor == nil {
		cursor = catalog.NewCursorFrom(time.Now().UTC())
	}
	start, end, next, done, err := cursor.NextWindow()
	if err != nil {
		return nil, err
	}
	if done {
		f.logger.Info().Msg("Backfill reached the earliest supported date")
		return &BackfillResult{Done: true}, nil
	}

	var documents []entity.DocumentRow
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		rows, err := f.config.source.FetchDocumentList(ctx, day, time.Time{})
		if err != nil {
			return nil, err
		}
		documents = append(documents, rows...)
	}

	runID := "backfill-" + start.Format("20060102")
	if len(documents) > 0 {
		payload := &entity.DeltaPayload{Documents: documents, ProducedAt: utc.Now()}
		if _, err := f.Propose(ctx, runID, payload); err != nil {
			return nil, err
		}
	}
	merge, err := f.Merge(ctx, runID)
	if err != nil {
		return nil, err
	}

	if err := catalog.SaveCursor(ctx, f.repo, next); err != nil {
		return nil, err
	}
	f.logger.Info().
		Str("window_start", start.Format(backfillDateLayout)).
		Str("window_end", end.Format(backfillDateLayout)).
		Int("documents", len(documents)).
		Msg("Backfill window ingested")

	return &BackfillResult{
		RunID:       runID,
		WindowStart: start.Format(backfillDateLayout),
		WindowEnd:   end.Format(backfillDateLayout),
		Documents:   len(documents),
		Merge:       merge,
	}, nil
}
