package schemas

import (
	"context"
	"time"
)

// -- Target Schemas --

// TargetKind classifies the subject of an investigation. The values are
// lowercase to keep them stable in the structured report format.
type TargetKind string

const (
	KindDomain    TargetKind = "domain"
	KindIPAddress TargetKind = "ip_address"
	KindEmail     TargetKind = "email"
	KindUsername  TargetKind = "username"
)

// Target is the normalized subject of an investigation. It is immutable once
// created; NormalizedValue is fully canonicalized (lower-cased domains and
// emails, normalized IP textual form, trimmed usernames).
type Target struct {
	Kind            TargetKind `json:"kind"`
	NormalizedValue string     `json:"normalized_value"`
	RawInput        string     `json:"raw_input"`
}

// -- Investigation Schemas --

// InvestigationStatus tracks the lifecycle of a single run.
type InvestigationStatus string

const (
	StatusRunning   InvestigationStatus = "running"
	StatusCompleted InvestigationStatus = "completed"
	StatusTimedOut  InvestigationStatus = "timed_out"
)

// Investigation represents one run against a single target. It is mutated
// only by the orchestrator and sealed once the status leaves StatusRunning.
type Investigation struct {
	ID        string              `json:"id"`
	Target    Target              `json:"target"`
	StartTime time.Time           `json:"start_time"`
	Deadline  time.Time           `json:"deadline"`
	Status    InvestigationStatus `json:"status"`

	// Results holds exactly one AdapterResult per selected collector.
	Results []AdapterResult `json:"results"`
}

// -- Collector Contract --

// ConfigKeyAPIKey is the recognized name for a collector credential in both
// descriptors and configuration files.
const ConfigKeyAPIKey = "api_key"

// RateLimit declares the token-bucket budget for one collector: MaxCalls
// invocations per interval Per.
type RateLimit struct {
	MaxCalls int           `json:"max_calls"`
	Per      time.Duration `json:"per"`
}

// CollectorDescriptor declares a collector's capabilities. The registry uses
// it to decide which collectors apply to a target and in what order.
type CollectorDescriptor struct {
	Name               string       `json:"name"`
	Kinds              []TargetKind `json:"kinds"`
	RequiredConfigKeys []string     `json:"required_config_keys,omitempty"`
	Priority           int          `json:"priority"`
	RateLimit          RateLimit    `json:"rate_limit"`
}

// Accepts reports whether the collector declares support for the given kind.
func (d CollectorDescriptor) Accepts(kind TargetKind) bool {
	for _, k := range d.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// RequiresAPIKey reports whether the descriptor lists "api_key" among its
// required configuration keys.
func (d CollectorDescriptor) RequiresAPIKey() bool {
	for _, k := range d.RequiredConfigKeys {
		if k == ConfigKeyAPIKey {
			return true
		}
	}
	return false
}

// CollectorSettings carries the per-collector configuration recognized by
// every collector. Values a collector does not understand are simply unused.
type CollectorSettings struct {
	APIKey  string
	Timeout time.Duration
	Enabled bool
}

// Collector wraps one external OSINT tool behind a uniform invoke/parse
// contract. Implementations must never let a failure escape Invoke: every
// failure path, including context cancellation, terminates in a well-formed
// AdapterResult.
type Collector interface {
	// Name returns the unique registry name of the collector.
	Name() string

	// Descriptor declares accepted target kinds, required credentials and
	// the rate-limit budget.
	Descriptor() CollectorDescriptor

	// Invoke runs the external tool against the target. The context carries
	// the per-collector deadline; implementations must observe it and return
	// OutcomeTimeout rather than blocking past it.
	Invoke(ctx context.Context, target Target, settings CollectorSettings) AdapterResult
}
