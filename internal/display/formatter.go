package display

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/pricetracker/backend/internal/domain"
)

// Styles for terminal output.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	labelStyle   = lipgloss.NewStyle().Faint(true)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	groupStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")) // green
	separateTag  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // magenta
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintIngestStats renders the summary of one ingestion batch.
func PrintIngestStats(w io.Writer, title string, stats domain.IngestStats) {
	fmt.Fprintf(w, "\n%s  %s\n\n", headerStyle.Render(title), cyanStyle.Render("batch "+stats.BatchID))

	printCount(w, "records", stats.Total)
	printCount(w, "created", stats.Created)
	printCount(w, "updated", stats.Updated)
	printCount(w, "grouped", stats.Grouped)
	printCount(w, "new groups", stats.GroupsCreated)
	printCount(w, "marked unavailable", stats.MarkedUnseen)
	printWarnCount(w, "low confidence", stats.LowConfidence)
	printErrorCount(w, "errors", stats.Errors)

	fmt.Fprintln(w)
	printAggregateCounts(w, stats.Aggregates)
}

// PrintAggregateStats renders the summary of one aggregate recomputation.
func PrintAggregateStats(w io.Writer, stats domain.AggregateStats) {
	fmt.Fprintf(w, "\n%s\n\n", headerStyle.Render("Group aggregates"))
	printAggregateCounts(w, stats)
}

func printAggregateCounts(w io.Writer, stats domain.AggregateStats) {
	printCount(w, "groups", stats.Groups)
	printCount(w, "prices updated", stats.PricesUpdated)
	printCount(w, "images updated", stats.ImagesUpdated)
	printErrorCount(w, "failed", stats.Failed)
}

// PrintSpec renders the normalized form of a title.
func PrintSpec(w io.Writer, spec domain.ProductSpec) {
	k := spec.KeySpecs

	fmt.Fprintf(w, "%s\n", valueStyle.Render(spec.RawTitle))
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("canonical:"), groupStyle.Render(spec.CanonicalModel))
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("brand:    "), spec.Brand)
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("model:    "), k.FullModelName())
	if k.VRAM > 0 {
		fmt.Fprintf(w, "  %s %d GB\n", labelStyle.Render("vram:     "), k.VRAM)
	}
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("partner:  "), k.BoardPartner)
	if k.SubBrandText != "" {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("sub-brand:"), k.SubBrandText)
	}
}

// PrintDecision renders a grouping decision between two titles.
func PrintDecision(w io.Writer, a, b domain.ProductSpec, d domain.GroupDecision) {
	PrintSpec(w, a)
	PrintSpec(w, b)

	tag := separateTag.Render("SEPARATE")
	if d.Grouped() {
		tag = groupStyle.Render("GROUP")
	}
	fmt.Fprintf(w, "\n%s %s %s\n", tag,
		cyanStyle.Render(fmt.Sprintf("confidence %.2f", d.Confidence)),
		labelStyle.Render(d.Reason))
}

// PrintError renders an error line.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", errorStyle.Render("error:"), err)
}

func printCount(w io.Writer, label string, n int) {
	fmt.Fprintf(w, "  %-20s %s\n", labelStyle.Render(label), valueStyle.Render(fmt.Sprint(n)))
}

func printWarnCount(w io.Writer, label string, n int) {
	if n == 0 {
		printCount(w, label, n)
		return
	}
	fmt.Fprintf(w, "  %-20s %s\n", labelStyle.Render(label), warningStyle.Render(fmt.Sprint(n)))
}

func printErrorCount(w io.Writer, label string, n int) {
	if n == 0 {
		printCount(w, label, n)
		return
	}
	fmt.Fprintf(w, "  %-20s %s\n", labelStyle.Render(label), errorStyle.Render(fmt.Sprint(n)))
}
