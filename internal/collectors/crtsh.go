// File: internal/collectors/crtsh.go
// Description: Certificate transparency collector. Queries crt.sh for
// certificates issued under a domain and reports the covered DNS names as
// subdomain findings.
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
	"github.com/xkilldash9x/dossier-cli/internal/network"
)

const (
	crtShName       = "crtsh"
	crtShBaseURL    = "https://crt.sh"
	crtShConfidence = 0.9
)

// crtShEntry is a single JSON entry from the crt.sh API.
type crtShEntry struct {
	NameValue string `json:"name_value"`
}

// CrtShCollector harvests subdomains from certificate transparency logs.
// crt.sh requires no credentials but is easily overwhelmed, hence the low
// declared rate limit.
type CrtShCollector struct {
	client  network.HTTPClient
	log     *zap.Logger
	baseURL string
}

// NewCrtSh creates the crt.sh collector.
func NewCrtSh(client network.HTTPClient, logger *zap.Logger) *CrtShCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrtShCollector{
		client:  client,
		log:     logger.Named("crtsh"),
		baseURL: crtShBaseURL,
	}
}

func (c *CrtShCollector) Name() string { return crtShName }

func (c *CrtShCollector) Descriptor() schemas.CollectorDescriptor {
	return schemas.CollectorDescriptor{
		Name:      crtShName,
		Kinds:     []schemas.TargetKind{schemas.KindDomain},
		Priority:  10,
		RateLimit: schemas.RateLimit{MaxCalls: 2, Per: time.Second},
	}
}

// Invoke queries the CT log index and parses the response into subdomain
// findings, each carrying a parent hint back to the apex domain.
func (c *CrtShCollector) Invoke(ctx context.Context, target schemas.Target, settings schemas.CollectorSettings) schemas.AdapterResult {
	started := time.Now()

	if c.client == nil {
		return failure(crtShName, started, schemas.OutcomeNotAvailable, "no HTTP client configured")
	}

	domain := target.NormalizedValue
	queryURL := fmt.Sprintf("%s/?q=%%.%s&output=json", c.baseURL, domain)

	body, status, err := c.client.Get(ctx, queryURL)
	if err != nil {
		outcome, detail := classifyTransport(err)
		return failure(crtShName, started, outcome, detail)
	}

	switch {
	case status == http.StatusOK:
		// fall through to parsing
	case status == http.StatusTooManyRequests:
		return failure(crtShName, started, schemas.OutcomeRateLimited, "crt.sh returned HTTP 429")
	default:
		return failure(crtShName, started, schemas.OutcomeNetworkError, fmt.Sprintf("crt.sh returned HTTP %d", status))
	}

	var entries []crtShEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		// crt.sh serves an HTML error page under load; that is fully
		// unparseable as far as this collector is concerned.
		return failure(crtShName, started, schemas.OutcomeParseError, fmt.Sprintf("unparseable crt.sh response: %v", err))
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "*.")))
			if name == "" || name == domain {
				continue
			}
			if strings.HasSuffix(name, "."+domain) {
				seen[name] = true
			}
		}
	}

	// Deterministic finding order keeps downstream merges reproducible.
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	findings := make([]schemas.Finding, 0, len(names)+1)
	// The apex itself anchors the parent edges of every discovered name.
	findings = append(findings, schemas.Finding{
		Type:       schemas.FindingSubdomain,
		Value:      domain,
		Confidence: crtShConfidence,
	})
	for _, name := range names {
		findings = append(findings, schemas.Finding{
			Type:  schemas.FindingSubdomain,
			Value: name,
			Attributes: map[string]string{
				schemas.AttrParent:     domain,
				schemas.AttrParentType: string(schemas.FindingSubdomain),
			},
			Confidence: crtShConfidence,
		})
	}

	c.log.Debug("CT log harvest complete",
		zap.String("domain", domain),
		zap.Int("subdomains", len(names)))

	return success(crtShName, started, findings)
}
