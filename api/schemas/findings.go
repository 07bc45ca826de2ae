package schemas

import (
	"strings"
	"time"
)

// -- Finding Schemas --

// FindingType categorizes a single fact reported by a collector. The values
// are lowercase to keep the structured report format stable.
type FindingType string

const (
	FindingSubdomain      FindingType = "subdomain"
	FindingIPAddress      FindingType = "ip_address"
	FindingEmailAddress   FindingType = "email_address"
	FindingSocialProfile  FindingType = "social_profile"
	FindingFileMetadata   FindingType = "file_metadata"
	FindingOpenPort       FindingType = "open_port"
	FindingCredentialLeak FindingType = "credential_leak"
	FindingOther          FindingType = "other"
)

// Attribute keys with defined aggregation semantics. A collector that knows
// the parent entity of a finding declares it through these hints; the
// aggregator derives relationship edges from them and from nothing else.
const (
	AttrParent     = "parent"      // canonical value of the parent entity
	AttrParentType = "parent_type" // FindingType of the parent entity
	AttrRelation   = "relation"    // edge label, defaults to "belongs_to"
	AttrRaw        = "raw"         // unmappable fragment carried by FindingOther
)

// DefaultRelation is the edge label used when a parent hint carries no
// explicit relation attribute.
const DefaultRelation = "belongs_to"

// Finding is one fact reported by a collector about a target. It is produced
// by the collector's parser and never mutated afterwards.
type Finding struct {
	Type       FindingType       `json:"type"`
	Value      string            `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Confidence float64           `json:"confidence"`
}

// CanonicalValue returns the deduplication form of a finding value for the
// given type: domains, subdomains and emails are lower-cased, everything is
// trimmed, usernames keep their case.
func CanonicalValue(t FindingType, value string) string {
	v := strings.TrimSpace(value)
	switch t {
	case FindingSubdomain, FindingIPAddress, FindingEmailAddress:
		return strings.ToLower(v)
	default:
		return v
	}
}

// NodeKey builds the canonical graph key for a finding type and value.
func NodeKey(t FindingType, value string) string {
	return string(t) + ":" + CanonicalValue(t, value)
}

// -- Adapter Result Schemas --

// Outcome classifies how a collector invocation ended. Everything except
// OutcomeSuccess is non-fatal to the investigation.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeNotAvailable Outcome = "not_available"
	OutcomeAuthMissing  Outcome = "auth_missing"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomeNetworkError Outcome = "network_error"
	OutcomeParseError   Outcome = "parse_error"
)

// AdapterResult is the complete record of one collector invocation. It is
// created exactly once per collector per investigation and never mutated
// after the collector task completes.
type AdapterResult struct {
	CollectorName string        `json:"collector_name"`
	Outcome       Outcome       `json:"outcome"`
	Duration      time.Duration `json:"duration"`
	ObservedAt    time.Time     `json:"observed_at"`
	Findings      []Finding     `json:"findings,omitempty"`
	ErrorDetail   string        `json:"error_detail,omitempty"`
}

// ProvenanceRecord states which collector reported a merged fact, when, and
// with what confidence.
type ProvenanceRecord struct {
	CollectorName string    `json:"collector_name"`
	ObservedAt    time.Time `json:"observed_at"`
	Confidence    float64   `json:"confidence"`
}
