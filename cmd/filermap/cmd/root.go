// Package cmd implements the filermap CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	filermap "github.com/toriidata/filermap"
	"github.com/toriidata/filermap/internal/config"
	"github.com/toriidata/filermap/internal/sources/bridge"
	"github.com/toriidata/filermap/internal/sources/disclosure"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/reconcile"
	"github.com/toriidata/filermap/pkg/repository"
)

// BuildInfo carries the release identity stamped into the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var (
	cfgFile      string
	settingsFile string
	logLevel     string
	logFormat    string

	cfg   *config.Config
	build BuildInfo
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "filermap",
	Short: "Delta-staged reconciliation and master-merge engine",
	Long: `Filermap consolidates regulatory disclosure filings and market
reference data into a sharded master dataset. Workers stage delta chunks,
a single merger reconciles and commits each run, and the catalog index
only ever points at fully committed generations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Configure(&logging.Config{
			Level:  logLevel,
			Format: logFormat,
			Output: "stderr",
		})
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the CLI.
func Execute(ctx context.Context, info BuildInfo) error {
	build = info
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "reconciliation settings YAML (exemptions, authorities)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (json, console, auto)")
}

// newEngine assembles the engine from the loaded configuration. When
// withSources is set, the disclosure client backs identifier discovery and
// the backfill, and the aggregation bridge mappings are fetched up front.
func newEngine(ctx context.Context, withSources bool) (filermap.Filermap, error) {
	repo, err := repository.NewFS(cfg.RepositoryRoot)
	if err != nil {
		return nil, err
	}

	opts := []filermap.Option{
		filermap.WithRepository(repo),
		filermap.WithOwner(cfg.MergerOwner),
		filermap.WithAuditSampleSize(cfg.AuditSampleSize),
		filermap.WithDeltaMaxAge(time.Duration(cfg.DeltaMaxAgeHours) * time.Hour),
		filermap.WithDiscoveryWindow(cfg.DiscoveryWindow),
		filermap.WithExemptSegments(cfg.ExemptSegments),
	}

	if settingsFile != "" {
		data, err := os.ReadFile(settingsFile)
		if err != nil {
			return nil, err
		}
		settings, err := reconcile.ParseSettings(data)
		if err != nil {
			return nil, err
		}
		if len(settings.ExemptSegments) > 0 {
			opts = append(opts, filermap.WithExemptSegments(settings.ExemptSegments))
		}
		if provider := settings.AuthorityProvider(); provider != nil {
			opts = append(opts, filermap.WithAuthorities(provider))
		}
	}

	if withSources {
		if cfg.DisclosureAPIKey != "" {
			dc, err := disclosure.New(disclosure.Config{
				BaseURL: cfg.DisclosureBaseURL,
				APIKey:  cfg.DisclosureAPIKey,
			}, logging.Default())
			if err != nil {
				return nil, err
			}
			opts = append(opts,
				filermap.WithDocumentLister(dc),
				filermap.WithDocumentSource(dc),
			)
		}

		bc := bridge.New(bridge.Config{BaseURL: cfg.BridgeBaseURL}, logging.Default())
		mappings, err := bc.FetchRetiredMappings(ctx)
		if err != nil {
			// A merge without fresh bridge mappings still converges; the
			// affected filers just stay unbridged until the next run.
			logging.Warn().Err(err).Msg("Could not fetch aggregation bridge mappings")
		} else {
			opts = append(opts, filermap.WithBridgeMappings(mappings))
		}
	}

	return filermap.New(opts...)
}

// printJSON writes a result object to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
