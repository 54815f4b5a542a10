package filermap

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/reconcile"
	"github.com/toriidata/filermap/pkg/repository"
)

// Option is a function that configures a Filermap instance
type Option func(*config) error

// config holds everything New assembles the engine from.
type config struct {
	repo            repository.Repository
	logger          *zerolog.Logger
	owner           string
	exemptSegments  []string
	bridgeMappings  map[string]string
	authorities     reconcile.AuthorityProvider
	lister          reconcile.DocumentLister
	discoveryWindow int
	auditSampleSize int
	deltaMaxAge     time.Duration
	source          DocumentSource
}

func defaultOptions() *config {
	return &config{
		discoveryWindow: constants.DiscoveryWindowDays,
		deltaMaxAge:     constants.DeltaMaxAge,
	}
}

// WithRepository configures the blob repository holding the staging area,
// the master dataset, and the catalog. Required.
func WithRepository(repo repository.Repository) Option {
	return func(c *config) error {
		c.repo = repo
		return nil
	}
}

// WithLogger configures the logger used by every component.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithOwner configures the merge lease owner identity. Defaults to the
// hostname.
func WithOwner(owner string) Option {
	return func(c *config) error {
		c.owner = owner
		return nil
	}
}

// WithExemptSegments configures the market segments the registration guard
// admits without regulator identifiers.
func WithExemptSegments(segments []string) Option {
	return func(c *config) error {
		c.exemptSegments = segments
		return nil
	}
}

// WithBridgeMappings configures the retired-to-surviving filer code map
// used to fold absorbed filers into their survivors.
func WithBridgeMappings(mappings map[string]string) Option {
	return func(c *config) error {
		c.bridgeMappings = mappings
		return nil
	}
}

// WithAuthorities overrides the attribute authority table.
func WithAuthorities(authorities reconcile.AuthorityProvider) Option {
	return func(c *config) error {
		c.authorities = authorities
		return nil
	}
}

// WithDocumentLister enables identifier discovery for newly listed
// entities by scanning recent document lists. Nil disables discovery.
func WithDocumentLister(lister reconcile.DocumentLister) Option {
	return func(c *config) error {
		c.lister = lister
		return nil
	}
}

// WithDiscoveryWindow bounds the discovery scan in days.
func WithDiscoveryWindow(days int) Option {
	return func(c *config) error {
		c.discoveryWindow = days
		return nil
	}
}

// WithAuditSampleSize configures how many master rows the auditor
// cross-references per run. Zero keeps the auditor's default.
func WithAuditSampleSize(size int) Option {
	return func(c *config) error {
		c.auditSampleSize = size
		return nil
	}
}

// WithDeltaMaxAge configures how long an unconsumed delta chunk survives
// before Sweep reclaims it.
func WithDeltaMaxAge(age time.Duration) Option {
	return func(c *config) error {
		c.deltaMaxAge = age
		return nil
	}
}

// WithDocumentSource configures the disclosure document list source used
// by Backfill.
func WithDocumentSource(source DocumentSource) Option {
	return func(c *config) error {
		c.source = source
		return nil
	}
}
