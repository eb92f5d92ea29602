// Package cli implements the grouper command line: batch ingestion from
// feed files plus the maintenance and rule debugging commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pricetracker/backend/config"
	"github.com/pricetracker/backend/internal/app"
	"github.com/pricetracker/backend/internal/display"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// errRecordFailures fails a --strict run that skipped records
var errRecordFailures = errors.New("some records could not be ingested")

// options holds the global flags
type options struct {
	json bool
}

// newContainer builds the service; replaced in tests
var newContainer = func(ctx context.Context) (*app.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.NewContainer(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "grouper",
		Short: "Normalize and group scraped PC component listings",
		Long: "Ingests scraped retailer listings, resolves each one to its product group and\n" +
			"keeps group starting prices and images current.\n\n" +
			"Configuration comes from config.yaml and PRICETRACKER_* environment variables.",
		Example: `  grouper ingest --file products.json --derive-ids
  grouper regroup --category gpu
  grouper aggregate
  grouper normalize --category gpu "MSI GeForce RTX 4070 Super Ventus 2X 12G"
  grouper compare --category gpu "MSI RTX 4060 8GB" "MSI RTX 4060 16GB"`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output as JSON")

	root.AddCommand(
		newIngestCmd(opts),
		newRegroupCmd(opts),
		newAggregateCmd(opts),
		newNormalizeCmd(opts),
		newCompareCmd(opts),
	)
	return root
}

// Execute runs the root command and exits with its status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := runCLI(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		display.PrintError(stderr, err)
		return ExitFailure
	}
	return ExitSuccess
}

// withContainer runs fn against a freshly built service and closes it after
func withContainer(cmd *cobra.Command, fn func(c *app.Container) error) error {
	c, err := newContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func output(cmd *cobra.Command, opts *options, v interface{}, pretty func(w io.Writer)) error {
	if opts.json {
		return display.PrintJSON(cmd.OutOrStdout(), v)
	}
	pretty(cmd.OutOrStdout())
	return nil
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
