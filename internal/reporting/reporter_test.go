package reporting

import (
	"bytes"
	encjson "encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

func fixtureInvestigation() *schemas.Investigation {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return &schemas.Investigation{
		ID: "4f5c9a1e-0000-0000-0000-000000000001",
		Target: schemas.Target{
			Kind:            schemas.KindDomain,
			NormalizedValue: "example.com",
			RawInput:        "Example.COM",
		},
		StartTime: start,
		Deadline:  start.Add(2 * time.Minute),
		Status:    schemas.StatusCompleted,
		Results: []schemas.AdapterResult{
			{
				CollectorName: "shodan",
				Outcome:       schemas.OutcomeAuthMissing,
				Duration:      3 * time.Millisecond,
				ObservedAt:    start,
				ErrorDetail:   "api_key is not configured",
			},
			{
				CollectorName: "crtsh",
				Outcome:       schemas.OutcomeSuccess,
				Duration:      412 * time.Millisecond,
				ObservedAt:    start,
				Findings: []schemas.Finding{
					{Type: schemas.FindingSubdomain, Value: "www.example.com", Confidence: 0.9},
				},
			},
		},
	}
}

func fixtureGraph() schemas.Graph {
	observed := time.Date(2025, 3, 14, 9, 0, 1, 0, time.UTC)
	return schemas.Graph{Nodes: map[string]schemas.Node{
		"subdomain:www.example.com": {
			Type:       schemas.FindingSubdomain,
			Value:      "www.example.com",
			Confidence: 0.9,
			Provenance: []schemas.ProvenanceRecord{
				{CollectorName: "crtsh", ObservedAt: observed, Confidence: 0.9},
			},
			Edges: []schemas.Edge{
				{Relation: "belongs_to", To: "subdomain:example.com"},
			},
		},
		"subdomain:example.com": {
			Type:       schemas.FindingSubdomain,
			Value:      "example.com",
			Confidence: 0.9,
			Provenance: []schemas.ProvenanceRecord{
				{CollectorName: "crtsh", ObservedAt: observed, Confidence: 0.9},
			},
		},
	}}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	_, err := New("yaml", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r, err := New("structured", path)
	require.NoError(t, err)

	require.NoError(t, r.Render(fixtureInvestigation(), fixtureGraph()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, encjson.Valid(data))
}

func TestStructuredReporter_Deterministic(t *testing.T) {
	render := func() []byte {
		var buf bytes.Buffer
		r := NewStructuredReporter(&nopWriteCloser{&buf})
		require.NoError(t, r.Render(fixtureInvestigation(), fixtureGraph()))
		return buf.Bytes()
	}
	assert.Equal(t, render(), render(), "same input must render to identical bytes")
}

func TestStructuredReporter_Content(t *testing.T) {
	var buf bytes.Buffer
	r := NewStructuredReporter(&nopWriteCloser{&buf})
	require.NoError(t, r.Render(fixtureInvestigation(), fixtureGraph()))

	var doc struct {
		SchemaVersion string `json:"schema_version"`
		Investigation struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			NodeCount int    `json:"node_count"`
		} `json:"investigation"`
		Collectors []struct {
			Name    string `json:"name"`
			Outcome string `json:"outcome"`
		} `json:"collectors"`
		Nodes []struct {
			Key        string  `json:"key"`
			Type       string  `json:"type"`
			Value      string  `json:"value"`
			Confidence float64 `json:"confidence"`
		} `json:"nodes"`
	}
	require.NoError(t, encjson.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, "completed", doc.Investigation.Status)
	assert.Equal(t, 2, doc.Investigation.NodeCount)

	// Collector summaries are ordered by name regardless of arrival order.
	require.Len(t, doc.Collectors, 2)
	assert.Equal(t, "crtsh", doc.Collectors[0].Name)
	assert.Equal(t, "shodan", doc.Collectors[1].Name)

	// Nodes are ordered by key, grouping type then canonical value.
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "subdomain:example.com", doc.Nodes[0].Key)
	assert.Equal(t, "subdomain:www.example.com", doc.Nodes[1].Key)
	assert.Equal(t, "www.example.com", doc.Nodes[1].Value)
	assert.InDelta(t, 0.9, doc.Nodes[1].Confidence, 1e-9)
}

func TestTabularReporter_Content(t *testing.T) {
	var buf bytes.Buffer
	r := NewTabularReporter(&nopWriteCloser{&buf})
	require.NoError(t, r.Render(fixtureInvestigation(), fixtureGraph()))
	out := buf.String()

	assert.Contains(t, out, "Target:   example.com (domain)")
	assert.Contains(t, out, "Status:   completed")
	assert.Contains(t, out, "COLLECTOR")
	assert.Contains(t, out, "crtsh")
	assert.Contains(t, out, "auth_missing")
	assert.Contains(t, out, "api_key is not configured")
	assert.Contains(t, out, "www.example.com")
	assert.Contains(t, out, "belongs_to->subdomain:example.com")

	// The apex node has no outgoing edges.
	assert.Contains(t, out, "-")
}
