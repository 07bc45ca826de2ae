// File: internal/graph/graph.go
// Description: Single-writer aggregation of collector findings into the
// investigation graph. Merges are serialized under one mutex; collectors run
// fully in parallel and push results as they complete, so every merge rule
// here is commutative: any interleaving of the same results yields the same
// graph.
package graph

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

// attrSource records which observation currently owns an attribute value.
// Conflicts resolve to the higher confidence, then the earlier observation,
// then the lexicographically smaller collector name so merge order never
// matters.
type attrSource struct {
	value      string
	confidence float64
	observedAt time.Time
	collector  string
}

// nodeState is the mutable per-node bookkeeping behind a merged node.
type nodeState struct {
	typ        schemas.FindingType
	value      string
	attrs      map[string]attrSource
	confidence float64
	provenance map[string]schemas.ProvenanceRecord // keyed by collector name
	hints      map[string]schemas.Edge             // declared parent edges, keyed for dedupe
}

// Aggregator owns the investigation graph. No other component writes to it.
type Aggregator struct {
	mu    sync.Mutex
	nodes map[string]*nodeState
	log   *zap.Logger
}

// New creates an empty aggregator.
func New(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		nodes: make(map[string]*nodeState),
		log:   logger.Named("aggregator"),
	}
}

// Merge folds one adapter result into the graph. Results with non-success
// outcomes carry no findings and merge to a no-op. Safe for concurrent use.
func (a *Aggregator) Merge(result schemas.AdapterResult) {
	if len(result.Findings) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, f := range result.Findings {
		a.mergeFinding(result.CollectorName, result.ObservedAt, f)
	}

	a.log.Debug("Merged adapter result",
		zap.String("collector", result.CollectorName),
		zap.Int("findings", len(result.Findings)),
		zap.Int("nodes", len(a.nodes)))
}

// mergeFinding applies one finding under the lock.
func (a *Aggregator) mergeFinding(collector string, observedAt time.Time, f schemas.Finding) {
	key := schemas.NodeKey(f.Type, f.Value)

	n, exists := a.nodes[key]
	if !exists {
		n = &nodeState{
			typ:        f.Type,
			value:      schemas.CanonicalValue(f.Type, f.Value),
			attrs:      make(map[string]attrSource),
			provenance: make(map[string]schemas.ProvenanceRecord),
			hints:      make(map[string]schemas.Edge),
		}
		a.nodes[key] = n
	}

	// Node confidence is the maximum of all contributions, never averaged
	// down.
	if f.Confidence > n.confidence {
		n.confidence = f.Confidence
	}

	// One provenance record per collector; a collector repeating itself
	// within a single result keeps its strongest claim.
	if prev, ok := n.provenance[collector]; !ok || f.Confidence > prev.Confidence {
		n.provenance[collector] = schemas.ProvenanceRecord{
			CollectorName: collector,
			ObservedAt:    observedAt,
			Confidence:    f.Confidence,
		}
	}

	parent, parentType, relation := parentHint(f.Attributes)
	for k, v := range f.Attributes {
		if k == schemas.AttrParent || k == schemas.AttrParentType || k == schemas.AttrRelation {
			continue
		}
		incoming := attrSource{value: v, confidence: f.Confidence, observedAt: observedAt, collector: collector}
		if current, ok := n.attrs[k]; !ok || incoming.beats(current) {
			n.attrs[k] = incoming
		}
	}

	if parent != "" && parentType != "" {
		to := schemas.NodeKey(schemas.FindingType(parentType), parent)
		edge := schemas.Edge{Relation: relation, To: to}
		n.hints[edge.Relation+"|"+edge.To] = edge
	}
}

// beats reports whether the incoming observation wins an attribute conflict.
func (in attrSource) beats(cur attrSource) bool {
	if in.confidence != cur.confidence {
		return in.confidence > cur.confidence
	}
	if !in.observedAt.Equal(cur.observedAt) {
		return in.observedAt.Before(cur.observedAt)
	}
	return in.collector < cur.collector
}

// parentHint extracts the declared parent edge attributes, if any.
func parentHint(attrs map[string]string) (parent, parentType, relation string) {
	if attrs == nil {
		return "", "", ""
	}
	parent = attrs[schemas.AttrParent]
	parentType = attrs[schemas.AttrParentType]
	relation = attrs[schemas.AttrRelation]
	if relation == "" {
		relation = schemas.DefaultRelation
	}
	return parent, parentType, relation
}

// Snapshot returns a consistent, immutable deep copy of the graph. Edges are
// materialized here, only for hints whose destination node exists, so the
// graph never contains a dangling edge regardless of merge order.
func (a *Aggregator) Snapshot() schemas.Graph {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := schemas.Graph{Nodes: make(map[string]schemas.Node, len(a.nodes))}
	for key, n := range a.nodes {
		node := schemas.Node{
			Type:       n.typ,
			Value:      n.value,
			Confidence: n.confidence,
		}

		if len(n.attrs) > 0 {
			node.Attributes = make(map[string]string, len(n.attrs))
			for k, src := range n.attrs {
				node.Attributes[k] = src.value
			}
		}

		node.Provenance = make([]schemas.ProvenanceRecord, 0, len(n.provenance))
		for _, rec := range n.provenance {
			node.Provenance = append(node.Provenance, rec)
		}
		sort.Slice(node.Provenance, func(i, j int) bool {
			return node.Provenance[i].CollectorName < node.Provenance[j].CollectorName
		})

		for _, edge := range n.hints {
			if _, ok := a.nodes[edge.To]; ok {
				node.Edges = append(node.Edges, edge)
			}
		}
		sort.Slice(node.Edges, func(i, j int) bool {
			if node.Edges[i].To != node.Edges[j].To {
				return node.Edges[i].To < node.Edges[j].To
			}
			return node.Edges[i].Relation < node.Edges[j].Relation
		})

		out.Nodes[key] = node
	}
	return out
}

// Len returns the current node count.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.nodes)
}
