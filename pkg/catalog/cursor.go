package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/repository"
)

const dateLayout = "2006-01-02"

// BackfillCursor tracks historical ingestion progress. The backfill walks
// backwards from the present in fixed-size steps; the cursor records the
// start of the next window so an interrupted backfill resumes where it
// stopped instead of re-fetching years of documents.
type BackfillCursor struct {
	NextTargetStart string `json:"next_target_start"`
}

// LoadCursor reads the persisted cursor. A missing cursor means the
// backfill has not started.
func LoadCursor(ctx context.Context, repo repository.Repository) (*BackfillCursor, error) {
	data, err := repo.Get(ctx, constants.CursorPath)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var cursor BackfillCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, errors.WrapParse("json", "backfill cursor", err)
	}
	return &cursor, nil
}

// SaveCursor persists the cursor as canonical JSON.
func SaveCursor(ctx context.Context, repo repository.Repository, cursor *BackfillCursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return errors.WrapParse("json", "backfill cursor", err)
	}
	data, err := jcs.Transform(raw)
	if err != nil {
		return errors.WrapParse("json", "backfill cursor", err)
	}
	_, err = repo.PutBatch(ctx, []repository.Put{
		{Path: constants.CursorPath, Data: data},
	}, repository.AnyRevision)
	return err
}

// NewCursorFrom seeds a cursor whose first window ends just before start.
func NewCursorFrom(start time.Time) *BackfillCursor {
	first := start.UTC().AddDate(0, 0, -constants.BackfillStepDays)
	limit := BackfillLimit()
	if first.Before(limit) {
		first = limit
	}
	return &BackfillCursor{NextTargetStart: first.Format(dateLayout)}
}

// BackfillLimit returns the earliest date the backfill may reach.
func BackfillLimit() time.Time {
	limit, _ := time.Parse(dateLayout, constants.BackfillLimitDate)
	return limit
}

// NextWindow returns the inclusive date window to fetch next and the
// cursor positioned after it. The window is clipped at the backfill limit;
// done reports that no window remains.
func (c *BackfillCursor) NextWindow() (start, end time.Time, next *BackfillCursor, done bool, err error) {
	start, err = time.Parse(dateLayout, c.NextTargetStart)
	if err != nil {
		return time.Time{}, time.Time{}, nil, false, errors.WrapParse("date", "backfill cursor", err)
	}
	limit := BackfillLimit()
	if start.Before(limit) {
		return time.Time{}, time.Time{}, nil, true, nil
	}

	end = start.AddDate(0, 0, constants.BackfillStepDays-1)
	nextStart := start.AddDate(0, 0, -constants.BackfillStepDays)
	if nextStart.Before(limit) && !start.Equal(limit) {
		nextStart = limit
	}
	next = &BackfillCursor{NextTargetStart: nextStart.Format(dateLayout)}
	return start, end, next, false, nil
}
