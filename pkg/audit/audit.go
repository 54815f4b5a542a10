// Package audit verifies a committed dataset generation after the fact. The
// auditor only reads: it reports findings with severities and leaves every
// repair decision to an operator, because an automated "fix" running on a
// live dataset is how consistent corruption happens.
package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/catalog"
	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/partition"
	"github.com/toriidata/filermap/pkg/repository"
)

// Severity grades a finding.
type Severity string

// Finding severities.
const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Audit layers, in check order.
const (
	LayerSchema    = "schema"
	LayerSharding  = "sharding"
	LayerCounts    = "counts"
	LayerCrossRefs = "cross_refs"
)

// Finding is one observed inconsistency.
type Finding struct {
	Layer    string   `json:"layer"`
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
}

// Report is the outcome of one audit pass.
type Report struct {
	Findings      []Finding `json:"findings"`
	ShardsChecked int       `json:"shards_checked"`
	RowsChecked   int       `json:"rows_checked"`
	RowsSampled   int       `json:"rows_sampled"`
}

// Clean reports whether the audit found nothing above info.
func (r *Report) Clean() bool {
	for _, f := range r.Findings {
		if f.Severity != SeverityInfo {
			return false
		}
	}
	return true
}

// Errors returns only the error-severity findings.
func (r *Report) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Auditor runs read-only consistency checks against a repository.
type Auditor struct {
	repo       repository.Repository
	logger     *zerolog.Logger
	sampleSize int
}

// NewAuditor creates an auditor. sampleSize bounds the cross-reference
// check; non-positive means the default of 200 rows.
func NewAuditor(repo repository.Repository, sampleSize int, logger *zerolog.Logger) *Auditor {
	if sampleSize <= 0 {
		sampleSize = 200
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Auditor{repo: repo, logger: logger, sampleSize: sampleSize}
}

// Run executes all four layers against the committed state and returns the
// report. Run never writes to the repository.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	idx, err := a.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	entities, err := partition.LoadEntityTable(ctx, a.repo)
	if err != nil {
		return nil, err
	}
	events, err := partition.LoadEventTable(ctx, a.repo)
	if err != nil {
		return nil, err
	}

	shardRows := a.checkShards(ctx, idx, report)
	a.checkCounts(idx, entities, events, report)
	a.checkCrossRefs(shardRows, entities, report)

	a.logger.Info().
		Int("findings", len(report.Findings)).
		Int("shards", report.ShardsChecked).
		Int("rows", report.RowsChecked).
		Bool("clean", report.Clean()).
		Msg("Audit pass complete")
	return report, nil
}

func (a *Auditor) readIndex(ctx context.Context) (*catalog.Index, error) {
	data, err := a.repo.Get(ctx, constants.CatalogIndexPath)
	if err != nil {
		if errors.IsNotFound(err) {
			return catalog.NewIndex(), nil
		}
		return nil, err
	}
	return catalog.DecodeIndex(data)
}

// checkShards covers the schema and sharding layers: every indexed shard
// must exist, decode, and contain only rows that re-derive to its bin.
func (a *Auditor) checkShards(ctx context.Context, idx *catalog.Index, report *Report) []partition.DocumentRow {
	var all []partition.DocumentRow
	for _, path := range idx.ShardPaths() {
		report.ShardsChecked++

		data, err := a.repo.Get(ctx, path)
		if err != nil {
			report.Findings = append(report.Findings, Finding{
				Layer:    LayerSchema,
				Severity: SeverityError,
				Subject:  path,
				Message:  "indexed shard is missing or unreadable",
			})
			continue
		}
		rows, err := partition.DecodeRows[partition.DocumentRow](data)
		if err != nil {
			report.Findings = append(report.Findings, Finding{
				Layer:    LayerSchema,
				Severity: SeverityError,
				Subject:  path,
				Message:  fmt.Sprintf("shard does not decode: %v", err),
			})
			continue
		}

		token := binToken(path)
		for i := range rows {
			report.RowsChecked++
			row := &rows[i]
			if row.DocID == "" {
				report.Findings = append(report.Findings, Finding{
					Layer:    LayerSchema,
					Severity: SeverityError,
					Subject:  path,
					Message:  "row without document id",
				})
			}
			if derived := row.ShardToken(); derived != token {
				report.Findings = append(report.Findings, Finding{
					Layer:    LayerSharding,
					Severity: SeverityError,
					Subject:  row.DocID,
					Message:  fmt.Sprintf("row derives shard %s but is stored in %s", derived, token),
				})
			}
		}
		all = append(all, rows...)
	}
	return all
}

// checkCounts compares the index's advertised counts with the stored
// tables and sanity-checks the activity flags.
func (a *Auditor) checkCounts(idx *catalog.Index, entities []entity.Entity, events []entity.LifecycleEvent, report *Report) {
	if idx.EntityCount != len(entities) {
		report.Findings = append(report.Findings, Finding{
			Layer:    LayerCounts,
			Severity: SeverityError,
			Subject:  "entity table",
			Message:  fmt.Sprintf("index advertises %d entities, table holds %d", idx.EntityCount, len(entities)),
		})
	}
	if idx.EventCount != len(events) {
		report.Findings = append(report.Findings, Finding{
			Layer:    LayerCounts,
			Severity: SeverityError,
			Subject:  "event table",
			Message:  fmt.Sprintf("index advertises %d events, table holds %d", idx.EventCount, len(events)),
		})
	}

	for i := range entities {
		e := &entities[i]
		if e.IsActive.IsTrue() && !e.EverActive {
			report.Findings = append(report.Findings, Finding{
				Layer:    LayerCounts,
				Severity: SeverityWarn,
				Subject:  e.Key(),
				Message:  "entity is active but never marked ever-active",
			})
		}
		if e.ShardKey == "" {
			report.Findings = append(report.Findings, Finding{
				Layer:    LayerCounts,
				Severity: SeverityWarn,
				Subject:  e.Key(),
				Message:  "entity has no shard assignment",
			})
		}
	}
}

// checkCrossRefs samples document rows and verifies their filer codes
// resolve to a consolidated entity, current or former.
func (a *Auditor) checkCrossRefs(rows []partition.DocumentRow, entities []entity.Entity, report *Report) {
	known := map[string]bool{}
	for i := range entities {
		if entities[i].FilerCode != "" {
			known[entities[i].FilerCode] = true
		}
		for _, former := range entities[i].FormerFilerCodes {
			known[former] = true
		}
	}

	step := 1
	if len(rows) > a.sampleSize {
		step = len(rows) / a.sampleSize
	}
	for i := 0; i < len(rows); i += step {
		report.RowsSampled++
		row := &rows[i]
		if row.FilerCode == "" {
			continue
		}
		if !known[row.FilerCode] {
			report.Findings = append(report.Findings, Finding{
				Layer:    LayerCrossRefs,
				Severity: SeverityWarn,
				Subject:  row.DocID,
				Message:  fmt.Sprintf("document filed by unknown filer %s", row.FilerCode),
			})
		}
	}
}

// binToken extracts the shard token from a master path.
func binToken(path string) string {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, "bin=") {
			return strings.TrimPrefix(part, "bin=")
		}
	}
	return ""
}
