// Package constants provides shared constants used throughout the filermap
// codebase: timeouts, retry limits, file permissions, and the fixed parts of
// the repository layout.
package constants

import "time"

// Timeout constants define various timeout durations used in the engine
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to
	// external sources
	DefaultHTTPTimeout = 30 * time.Second

	// DownloadTimeout is the timeout for streaming document downloads
	DownloadTimeout = 5 * time.Minute

	// MergeTimeout is the timeout for a full merge run
	MergeTimeout = 30 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 60 * time.Second
)

// Retry and concurrency limits
const (
	// MaxRetries is the maximum number of retry attempts for transient
	// failures before the run is surfaced as failed
	MaxRetries = 5

	// MaxCommitRetries is the maximum number of attempts for the atomic
	// commit, including optimistic-concurrency re-reads
	MaxCommitRetries = 12

	// SourceRequestsPerSecond caps outbound requests per source client
	SourceRequestsPerSecond = 4
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories
	DirPermissions = 0755

	// FilePermissions is the default permission for created files
	FilePermissions = 0644
)

// Domain constants
const (
	// DeltaMaxAge is how long an unconsumed delta chunk survives before
	// the orphan sweep removes it
	DeltaMaxAge = 24 * time.Hour

	// DiscoveryWindowDays bounds the recent-filings scan used to resolve
	// regulator identifiers for newly listed entities
	DiscoveryWindowDays = 30

	// BackfillStepDays is the size of one historical ingestion step
	BackfillStepDays = 14

	// BackfillLimitDate is the earliest date with usable source coverage;
	// the backfill cursor never steps past it
	BackfillLimitDate = "2014-04-01"

	// LeaseTTL is how long a merge lease stays valid without renewal
	LeaseTTL = 45 * time.Minute
)

// Repository layout prefixes. The partition path embeds a fixed-width shard
// token derived from the immutable corporate identifier; this layout is a
// compatibility contract and must not change.
const (
	// DeltaPrefix is the staging area root for worker deltas
	DeltaPrefix = "temp/deltas"

	// MasterPrefix is the root of the sharded master dataset
	MasterPrefix = "master"

	// MetaPrefix holds the entity table, histories, and cursors
	MetaPrefix = "meta"

	// CatalogIndexPath is the catalog index blob advanced last on commit
	CatalogIndexPath = "catalog/index.json"

	// CursorPath is the persisted backfill cursor
	CursorPath = "meta/backfill_cursor.json"

	// PendingPath is the quarantine bucket for observations held back by
	// the registration guard; every merge retries and rewrites it
	PendingPath = "meta/pending.json"
)
