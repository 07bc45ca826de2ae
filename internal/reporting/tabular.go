// -- internal/reporting/tabular.go --
package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

// TabularReporter renders a human-readable summary with aligned columns.
type TabularReporter struct {
	writer io.WriteCloser
}

// NewTabularReporter takes ownership of the writer.
func NewTabularReporter(w io.WriteCloser) *TabularReporter {
	return &TabularReporter{writer: w}
}

// Render writes the investigation header, the per-collector table and the
// merged node table. Rows follow the same deterministic order as the
// structured format.
func (r *TabularReporter) Render(inv *schemas.Investigation, graph schemas.Graph) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Investigation %s\n", inv.ID)
	fmt.Fprintf(&b, "Target:   %s (%s)\n", inv.Target.NormalizedValue, inv.Target.Kind)
	fmt.Fprintf(&b, "Status:   %s\n", inv.Status)
	fmt.Fprintf(&b, "Started:  %s\n", inv.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Entities: %d\n\n", len(graph.Nodes))

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTOR\tOUTCOME\tDURATION\tFINDINGS\tDETAIL")
	for _, cs := range summarizeResults(inv.Results) {
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%d\t%s\n",
			cs.Name, cs.Outcome, cs.DurationMS, cs.Findings, cs.ErrorDetail)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to format collector table: %w", err)
	}
	b.WriteString("\n")

	tw = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tVALUE\tCONFIDENCE\tSOURCES\tEDGES")
	for _, n := range sortedNodes(graph) {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n",
			n.Type, n.Value, n.Confidence, sourceList(n.Provenance), edgeList(n.Edges))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to format node table: %w", err)
	}

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write tabular report: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *TabularReporter) Close() error {
	return r.writer.Close()
}

func sourceList(provenance []schemas.ProvenanceRecord) string {
	names := make([]string, 0, len(provenance))
	for _, p := range provenance {
		names = append(names, p.CollectorName)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func edgeList(edges []schemas.Edge) string {
	if len(edges) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(edges))
	for _, e := range edges {
		parts = append(parts, fmt.Sprintf("%s->%s", e.Relation, e.To))
	}
	return strings.Join(parts, " ")
}
