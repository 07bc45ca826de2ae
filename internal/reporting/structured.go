// -- internal/reporting/structured.go --
package reporting

import (
	"fmt"
	"io"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

// SchemaVersion identifies the structured report layout. Consumers pin on it.
const SchemaVersion = "1.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// structuredReport is the machine-readable document. Every slice is sorted
// before marshaling, so the same investigation always renders to the same
// bytes.
type structuredReport struct {
	SchemaVersion string             `json:"schema_version"`
	Investigation reportHeader       `json:"investigation"`
	Collectors    []collectorSummary `json:"collectors"`
	Nodes         []reportNode       `json:"nodes"`
}

type reportHeader struct {
	ID        string                      `json:"id"`
	Target    schemas.Target              `json:"target"`
	Status    schemas.InvestigationStatus `json:"status"`
	StartTime time.Time                   `json:"start_time"`
	Deadline  time.Time                   `json:"deadline"`
	NodeCount int                         `json:"node_count"`
}

type collectorSummary struct {
	Name        string          `json:"name"`
	Outcome     schemas.Outcome `json:"outcome"`
	DurationMS  int64           `json:"duration_ms"`
	Findings    int             `json:"findings"`
	ErrorDetail string          `json:"error_detail,omitempty"`
}

type reportNode struct {
	Key string `json:"key"`
	schemas.Node
}

// StructuredReporter renders the JSON report format.
type StructuredReporter struct {
	writer io.WriteCloser
}

// NewStructuredReporter takes ownership of the writer.
func NewStructuredReporter(w io.WriteCloser) *StructuredReporter {
	return &StructuredReporter{writer: w}
}

// Render writes the full report document.
func (r *StructuredReporter) Render(inv *schemas.Investigation, graph schemas.Graph) error {
	doc := structuredReport{
		SchemaVersion: SchemaVersion,
		Investigation: reportHeader{
			ID:        inv.ID,
			Target:    inv.Target,
			Status:    inv.Status,
			StartTime: inv.StartTime,
			Deadline:  inv.Deadline,
			NodeCount: len(graph.Nodes),
		},
		Collectors: summarizeResults(inv.Results),
		Nodes:      sortedNodes(graph),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal structured report: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write structured report: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *StructuredReporter) Close() error {
	return r.writer.Close()
}

func summarizeResults(results []schemas.AdapterResult) []collectorSummary {
	out := make([]collectorSummary, 0, len(results))
	for _, res := range results {
		out = append(out, collectorSummary{
			Name:        res.CollectorName,
			Outcome:     res.Outcome,
			DurationMS:  res.Duration.Milliseconds(),
			Findings:    len(res.Findings),
			ErrorDetail: res.ErrorDetail,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// sortedNodes flattens the graph into a slice ordered by node key, which
// groups nodes by type and then by canonical value.
func sortedNodes(graph schemas.Graph) []reportNode {
	out := make([]reportNode, 0, len(graph.Nodes))
	for key, node := range graph.Nodes {
		out = append(out, reportNode{Key: key, Node: node})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
