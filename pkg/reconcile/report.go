package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects how reports are rendered.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatMarkdown, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

func newWriter(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func render(t table.Writer, f Format) {
	if f == FormatMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// WriteRun renders the summary, the per-variation outcomes and the
// unmatched report of a run.
func WriteRun(w io.Writer, run *Run, f Format) error {
	if f == FormatJSON {
		return writeJSON(w, run)
	}

	fmt.Fprintf(w, "Run %s (%s", run.ID, run.Status)
	if run.DryRun {
		fmt.Fprint(w, ", dry run")
	}
	fmt.Fprintln(w, ")")
	if run.ScanError != "" {
		fmt.Fprintf(w, "Catalog scan stopped early: %s\n", run.ScanError)
	}
	WriteSummary(w, run.Summary, f)

	if len(run.Outcomes) > 0 {
		t := newWriter(w)
		t.AppendHeader(table.Row{"Item", "Variation", "Vendor", "File", "Tier", "Score", "Status", "Detail"})
		for _, o := range run.Outcomes {
			detail := o.Reason
			switch {
			case o.Error != "":
				detail = o.Error
			case o.Warning != "":
				detail = "association: " + o.Warning
			case o.Primary:
				detail = "primary"
			}
			t.AppendRow(table.Row{o.ItemName, o.VariationName, o.Vendor, o.File, o.Tier, o.Score, o.Status, detail})
		}
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: 40},
			{Number: 4, WidthMax: 40},
			{Number: 6, Align: text.AlignRight},
			{Number: 8, WidthMax: 50},
		})
		render(t, f)
	}

	if len(run.Unmatched) > 0 {
		fmt.Fprintln(w, "Unmatched")
		return WriteUnmatched(w, run.Unmatched, f)
	}
	return nil
}

// WriteSummary renders the run counters.
func WriteSummary(w io.Writer, s Summary, f Format) {
	t := newWriter(w)
	t.AppendHeader(table.Row{"Counter", "Value"})
	t.AppendRows([]table.Row{
		{"items scanned", s.ItemsScanned},
		{"variations considered", s.VariationsConsidered},
		{"matched", s.Matched},
		{"uploaded", s.Uploaded},
		{"skipped", s.Skipped},
		{"failed", s.Failed},
		{"unmatched", s.Unmatched},
		{"association warnings", s.AssociationWarnings},
		{"bytes uploaded", s.BytesUploaded},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	render(t, f)
}

// WriteUnmatched renders the unmatched report, vendors in name order.
func WriteUnmatched(w io.Writer, report UnmatchedReport, f Format) error {
	if f == FormatJSON {
		return writeJSON(w, report)
	}
	if len(report) == 0 {
		fmt.Fprintln(w, "No unmatched variations")
		return nil
	}

	t := newWriter(w)
	t.AppendHeader(table.Row{"Vendor", "Item", "Variation", "Vendor SKU", "Reason", "Best"})
	for _, vendor := range report.Vendors() {
		for _, e := range report[vendor] {
			t.AppendRow(table.Row{vendor, e.ItemName, e.VariationName, e.VendorSKU, e.Reason, e.BestScore})
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 6, Align: text.AlignRight},
	})
	t.SetCaption("%d unmatched", report.Len())
	render(t, f)
	return nil
}

// Vendors returns the vendor names of the report, sorted.
func (r UnmatchedReport) Vendors() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len counts the entries of the report.
func (r UnmatchedReport) Len() int {
	n := 0
	for _, entries := range r {
		n += len(entries)
	}
	return n
}

// DecodeUnmatched parses a report stored by the ledger.
func DecodeUnmatched(data string) (UnmatchedReport, error) {
	report := UnmatchedReport{}
	if data == "" {
		return report, nil
	}
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to decode unmatched report: %w", err)
	}
	return report, nil
}

// DecodeSummary parses a summary stored by the ledger.
func DecodeSummary(data string) (Summary, error) {
	var s Summary
	if data == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return s, fmt.Errorf("failed to decode summary: %w", err)
	}
	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
