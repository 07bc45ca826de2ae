// File: internal/target/normalizer.go
// Description: Classifies and validates a raw user supplied string into a
// typed investigation target. Kind inference is strictly ordered: IP literal,
// email syntax, domain syntax, then username fallback.
package target

import (
	"fmt"
	"net/mail"
	"net/netip"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

// InvalidTargetError is returned when an input matches no supported target
// kind. It is fatal to the investigation and surfaced before any collector
// runs.
type InvalidTargetError struct {
	Raw    string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q: %s", e.Raw, e.Reason)
}

// usernameRe accepts the handle alphabet shared by the major platforms.
// Dotted handles are deliberately excluded; anything with a dot must qualify
// as a domain instead.
var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// domainLabelRe matches a single LDH (letters, digits, hyphen) domain label.
var domainLabelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Normalize classifies rawInput into a Target. It is a pure function and
// idempotent: normalizing a NormalizedValue yields the same Target kind and
// value.
func Normalize(rawInput string) (schemas.Target, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return schemas.Target{}, &InvalidTargetError{Raw: rawInput, Reason: "empty input"}
	}

	// 1. IP literal. netip canonicalizes the textual form (including IPv6
	// zero compression and lowercase hex).
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return schemas.Target{
			Kind:            schemas.KindIPAddress,
			NormalizedValue: addr.String(),
			RawInput:        rawInput,
		}, nil
	}

	// 2. Email syntax.
	if strings.Contains(trimmed, "@") {
		if norm, ok := normalizeEmail(trimmed); ok {
			return schemas.Target{
				Kind:            schemas.KindEmail,
				NormalizedValue: norm,
				RawInput:        rawInput,
			}, nil
		}
		return schemas.Target{}, &InvalidTargetError{Raw: rawInput, Reason: "contains '@' but is not a valid email address"}
	}

	// 3. Domain syntax. Dotless strings never classify as domains.
	if strings.Contains(trimmed, ".") {
		if norm, ok := normalizeDomain(trimmed); ok {
			return schemas.Target{
				Kind:            schemas.KindDomain,
				NormalizedValue: norm,
				RawInput:        rawInput,
			}, nil
		}
		return schemas.Target{}, &InvalidTargetError{Raw: rawInput, Reason: "contains '.' but is not a valid domain name"}
	}

	// 4. Username fallback.
	if usernameRe.MatchString(trimmed) {
		return schemas.Target{
			Kind:            schemas.KindUsername,
			NormalizedValue: trimmed,
			RawInput:        rawInput,
		}, nil
	}

	return schemas.Target{}, &InvalidTargetError{Raw: rawInput, Reason: "matches no supported target kind"}
}

// normalizeEmail validates bare email syntax (no display names) and returns
// the lower-cased address.
func normalizeEmail(s string) (string, bool) {
	parsed, err := mail.ParseAddress(s)
	if err != nil || parsed.Address != s {
		return "", false
	}
	local, domainPart, found := strings.Cut(s, "@")
	if !found || local == "" {
		return "", false
	}
	normDomain, ok := normalizeDomain(domainPart)
	if !ok {
		return "", false
	}
	return strings.ToLower(local) + "@" + normDomain, true
}

// normalizeDomain lower-cases and validates a domain name. The public suffix
// list is consulted so bare suffixes ("com", "co.uk") and names without a
// registrable parent are rejected.
func normalizeDomain(s string) (string, bool) {
	d := strings.ToLower(strings.TrimSuffix(s, "."))
	if len(d) == 0 || len(d) > 253 {
		return "", false
	}

	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return "", false
	}
	for _, label := range labels {
		if !domainLabelRe.MatchString(label) {
			return "", false
		}
	}

	if _, err := publicsuffix.EffectiveTLDPlusOne(d); err != nil {
		return "", false
	}
	return d, true
}
