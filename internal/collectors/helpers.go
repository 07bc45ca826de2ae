// File: internal/collectors/helpers.go
package collectors

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

// maxRawFragment caps how much unmappable output is carried into a
// FindingOther attribute.
const maxRawFragment = 512

// failure builds a well-formed AdapterResult for a non-success outcome.
// Failed invocations never carry findings; in particular a timed-out
// collector contributes zero findings even when partial output exists.
func failure(name string, started time.Time, outcome schemas.Outcome, detail string) schemas.AdapterResult {
	return schemas.AdapterResult{
		CollectorName: name,
		Outcome:       outcome,
		Duration:      time.Since(started),
		ObservedAt:    time.Now().UTC(),
		ErrorDetail:   detail,
	}
}

// success builds the AdapterResult for a completed parse.
func success(name string, started time.Time, findings []schemas.Finding) schemas.AdapterResult {
	return schemas.AdapterResult{
		CollectorName: name,
		Outcome:       schemas.OutcomeSuccess,
		Duration:      time.Since(started),
		ObservedAt:    time.Now().UTC(),
		Findings:      findings,
	}
}

// classifyTransport maps a transport-level error to an outcome. Deadline and
// cancellation both classify as Timeout: cancellation only ever reaches a
// collector through the investigation deadline.
func classifyTransport(err error) (schemas.Outcome, string) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return schemas.OutcomeTimeout, err.Error()
	}
	return schemas.OutcomeNetworkError, err.Error()
}

// truncateRaw trims an unmappable fragment for attribute storage.
func truncateRaw(body []byte) string {
	if len(body) > maxRawFragment {
		return string(body[:maxRawFragment])
	}
	return string(body)
}
