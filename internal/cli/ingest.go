package cli

import (
	"io"

	"github.com/pricetracker/backend/internal/app"
	"github.com/pricetracker/backend/internal/display"
	"github.com/pricetracker/backend/internal/domain"
	"github.com/pricetracker/backend/internal/infrastructure/feed"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *options) *cobra.Command {
	var (
		file      string
		deriveIDs bool
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a JSON feed of scraped listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("file", file); err != nil {
				return err
			}

			records, err := feed.LoadFile(file, feed.Options{DeriveIDs: deriveIDs})
			if err != nil {
				return err
			}

			return withContainer(cmd, func(c *app.Container) error {
				stats, err := c.Aggregator.Ingest(cmd.Context(), records)
				if err != nil {
					return err
				}
				if err := output(cmd, opts, stats, func(w io.Writer) {
					display.PrintIngestStats(w, "Ingest", stats)
				}); err != nil {
					return err
				}
				return strictCheck(strict, stats)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Feed file (JSON array of raw records)")
	cmd.Flags().BoolVar(&deriveIDs, "derive-ids", false, "Derive missing ids from website and URL")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any record fails")
	return cmd
}

func newRegroupCmd(opts *options) *cobra.Command {
	var (
		category string
		strict   bool
	)

	cmd := &cobra.Command{
		Use:   "regroup",
		Short: "Re-run grouping over stored products after a rule change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *app.Container) error {
				stats, err := c.Aggregator.Regroup(cmd.Context(), category)
				if err != nil {
					return err
				}
				if err := output(cmd, opts, stats, func(w io.Writer) {
					display.PrintIngestStats(w, "Regroup", stats)
				}); err != nil {
					return err
				}
				return strictCheck(strict, stats)
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only regroup this category (default all)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any record fails")
	return cmd
}

func newAggregateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute group starting prices and representative images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *app.Container) error {
				stats, err := c.Aggregator.RecomputeAggregates(cmd.Context())
				if err != nil {
					return err
				}
				return output(cmd, opts, stats, func(w io.Writer) {
					display.PrintAggregateStats(w, stats)
				})
			})
		},
	}
}

func strictCheck(strict bool, stats domain.IngestStats) error {
	if strict && stats.Errors > 0 {
		return errRecordFailures
	}
	return nil
}
