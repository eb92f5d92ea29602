package cli

import (
	"fmt"
	"io"

	"github.com/pricetracker/backend/internal/app"
	"github.com/pricetracker/backend/internal/display"
	"github.com/pricetracker/backend/internal/domain"
	"github.com/spf13/cobra"
)

func newNormalizeCmd(opts *options) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "normalize TITLE...",
		Short: "Show how titles normalize under the current rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *app.Container) error {
				specs := make([]domain.ProductSpec, 0, len(args))
				for _, title := range args {
					spec, err := c.Aggregator.Normalize(category, title)
					if err != nil {
						return err
					}
					specs = append(specs, spec)
				}

				return output(cmd, opts, specs, func(w io.Writer) {
					for i, spec := range specs {
						if i > 0 {
							fmt.Fprintln(w)
						}
						display.PrintSpec(w, spec)
					}
				})
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "gpu", "Product category")
	return cmd
}

// compareResult is the JSON output shape of compare
type compareResult struct {
	A        domain.ProductSpec   `json:"a"`
	B        domain.ProductSpec   `json:"b"`
	Decision domain.GroupDecision `json:"decision"`
}

func newCompareCmd(opts *options) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "compare TITLE_A TITLE_B",
		Short: "Decide whether two titles would be grouped",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *app.Container) error {
				a, err := c.Aggregator.Normalize(category, args[0])
				if err != nil {
					return err
				}
				b, err := c.Aggregator.Normalize(category, args[1])
				if err != nil {
					return err
				}
				decision, err := c.Aggregator.Compare(category, args[0], args[1])
				if err != nil {
					return err
				}

				res := compareResult{A: a, B: b, Decision: decision}
				return output(cmd, opts, res, func(w io.Writer) {
					display.PrintDecision(w, a, b, decision)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "gpu", "Product category")
	return cmd
}
