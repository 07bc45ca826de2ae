package schemas

// -- Investigation Graph Schemas --

// Edge is a directed relationship from the node that carries it to another
// node key. Edges are only ever derived from declared parent hints, so the
// destination key always exists in the same graph.
type Edge struct {
	Relation string `json:"relation"`
	To       string `json:"to"`
}

// Node is one merged entity in the investigation graph: the reconciled
// finding payload plus one ProvenanceRecord per collector that independently
// reported it.
type Node struct {
	Type       FindingType        `json:"type"`
	Value      string             `json:"value"`
	Attributes map[string]string  `json:"attributes,omitempty"`
	Confidence float64            `json:"confidence"`
	Provenance []ProvenanceRecord `json:"provenance"`
	Edges      []Edge             `json:"edges,omitempty"`
}

// Graph maps canonical node keys to merged nodes. A Graph returned by the
// aggregator's Snapshot is a deep copy and safe to retain.
type Graph struct {
	Nodes map[string]Node `json:"nodes"`
}
