package cmd

import (
	"context"
	"time"

	"github.com/agentstation/utc"
	"github.com/spf13/cobra"

	filermap "github.com/toriidata/filermap"
	"github.com/toriidata/filermap/internal/sources/disclosure"
	"github.com/toriidata/filermap/internal/sources/venue"
	"github.com/toriidata/filermap/pkg/delta"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
)

var (
	workerRun   string
	workerDate  string
	workerVenue bool
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Fetch source data and stage it as a delta chunk",
	Long: `Fetch one day of disclosure documents, optionally the current venue
listing snapshot, and stage the result as a completed delta chunk for the
run. Workers never touch the master dataset; a later merge consumes the
chunk.`,
	Example: `  filermap worker --date 2026-03-14 --venue`,
	RunE:    runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerRun, "run", "", "run id to stage under (default daily-<date>)")
	workerCmd.Flags().StringVar(&workerDate, "date", "", "submission date to fetch, YYYY-MM-DD (default today)")
	workerCmd.Flags().BoolVar(&workerVenue, "venue", false, "include the full venue listing snapshot")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	date, runID, err := resolveRun(workerDate, workerRun)
	if err != nil {
		return err
	}
	engine, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	ref, payload, err := stageDay(ctx, engine, runID, date, workerVenue)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"run":          ref.RunID,
		"chunk":        ref.ChunkID,
		"documents":    len(payload.Documents),
		"observations": len(payload.Observations),
	})
}

// resolveRun parses the date flag and derives the default daily run id.
func resolveRun(dateFlag, runFlag string) (time.Time, string, error) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", dateFlag)
		if err != nil {
			return time.Time{}, "", errors.NewValidationError("date", dateFlag, "expected YYYY-MM-DD")
		}
		date = parsed
	}
	runID := runFlag
	if runID == "" {
		runID = "daily-" + date.Format("20060102")
	}
	return date, runID, nil
}

// stageDay fetches one submission date from the sources and stages the
// result as a completed delta chunk.
func stageDay(ctx context.Context, engine filermap.Filermap, runID string, date time.Time, includeVenue bool) (delta.Ref, *entity.DeltaPayload, error) {
	if cfg.DisclosureAPIKey == "" {
		return delta.Ref{}, nil, errors.ErrAPIKeyRequired
	}
	dc, err := disclosure.New(disclosure.Config{
		BaseURL: cfg.DisclosureBaseURL,
		APIKey:  cfg.DisclosureAPIKey,
	}, logging.Default())
	if err != nil {
		return delta.Ref{}, nil, err
	}

	documents, err := dc.FetchDocumentList(ctx, date, time.Time{})
	if err != nil {
		return delta.Ref{}, nil, err
	}
	payload := &entity.DeltaPayload{
		Documents:    documents,
		Observations: documentObservations(documents),
		ProducedAt:   utc.Now(),
	}

	if includeVenue {
		vc := venue.New(venue.Config{
			BaseURL: cfg.VenueBaseURL,
			APIKey:  cfg.VenueAPIKey,
		}, logging.Default())
		snapshot, err := vc.FetchCurrentListing(ctx)
		if err != nil {
			return delta.Ref{}, nil, err
		}
		payload.Observations = append(payload.Observations, snapshot...)
		payload.VenueSnapshot = true
	}

	ref, err := engine.Propose(ctx, runID, payload)
	if err != nil {
		return delta.Ref{}, nil, err
	}
	return ref, payload, nil
}

// documentObservations derives registry observations from the fetched
// document list: every filing confirms the filer's identity as of its
// submission time. Activity stays Unknown; a filing proves existence, not
// a listing.
func documentObservations(documents []entity.DocumentRow) []entity.Observation {
	observations := make([]entity.Observation, 0, len(documents))
	for _, d := range documents {
		if d.FilerCode == "" && d.CorporateNumber == "" {
			continue
		}
		observations = append(observations, entity.Observation{
			Source:          entity.SourceRegistry,
			FilerCode:       d.FilerCode,
			CorporateNumber: d.CorporateNumber,
			SecurityCode:    d.SecurityCode,
			DisplayName:     d.FilerName,
			ObservedAt:      d.SubmittedAt,
			EvidenceRef:     d.DocID,
		})
	}
	return observations
}
