package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"carelog/factstore/pkg/config"
	"carelog/factstore/pkg/fact/query"
	"carelog/factstore/pkg/fact/render"
	"carelog/factstore/pkg/telemetry/logging"
)

var queryFlags struct {
	recordType string
	recordID   string
	params     string
	format     string
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a one-shot report query against the configured store",
	Long: `Run a report query directly against the configured storage backend and
print the result to stdout.

The --params flag takes the same URL query string the report server
accepts: field filters, group_by, date_group, aggregate_by, order_by,
date_range, status, limit, and offset.

Examples:
  # All HbA1c measurements for a record
  factstore query --type measurement --record 52fd5b6f \
    --params "name=HBA1C&order_by=date_measured"

  # Average value per measurement name
  factstore query --type measurement \
    --params "group_by=name&aggregate_by=avg*value"

  # Monthly counts as CSV
  factstore query --type measurement --format csv \
    --params "date_group=date_measured*month&aggregate_by=count*id"`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryFlags.recordType, "type", "t", "", "record type to query (required)")
	queryCmd.Flags().StringVarP(&queryFlags.recordID, "record", "r", "", "record ID to scope the query to")
	queryCmd.Flags().StringVarP(&queryFlags.params, "params", "p", "", "URL-style query parameters")
	queryCmd.Flags().StringVarP(&queryFlags.format, "format", "f", "json", "output format (json, csv)")
	_ = queryCmd.MarkFlagRequired("type")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.GetConfig()

	// Queries print to stdout; keep logs quiet unless asked for
	if !verbose {
		cfg.Telemetry.Logging.Level = "error"
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr); err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	schema, err := registry.Lookup(queryFlags.recordType)
	if err != nil {
		return err
	}

	backend, err := openBackend(cfg, registry)
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	defer backend.Close()

	values, err := url.ParseQuery(queryFlags.params)
	if err != nil {
		return fmt.Errorf("invalid query parameters: %w", err)
	}
	opts, err := query.ParseOptions(values)
	if err != nil {
		return err
	}

	sess := query.New(query.Params{
		Schema:   schema,
		Backend:  backend,
		Options:  opts,
		RecordID: queryFlags.recordID,
	})

	ctx := context.Background()
	if cfg.Query.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Query.Timeout)
		defer cancel()
	}

	report, err := render.BuildReport(ctx, sess)
	if err != nil {
		return err
	}

	var renderer render.Renderer
	switch queryFlags.format {
	case "json":
		renderer = render.NewJSONRenderer(true)
	case "csv":
		renderer = render.NewCSVRenderer()
	default:
		return fmt.Errorf("unsupported output format: %q", queryFlags.format)
	}

	return renderer.Render(ctx, report, os.Stdout)
}
