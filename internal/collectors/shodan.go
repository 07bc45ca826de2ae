// File: internal/collectors/shodan.go
// Description: Network-device search collector backed by the Shodan host
// lookup API. Requires an API key; reports open ports, resolved hostnames
// and host metadata for an IP address target.
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
	"github.com/xkilldash9x/dossier-cli/internal/network"
)

const (
	shodanName       = "shodan"
	shodanBaseURL    = "https://api.shodan.io"
	shodanConfidence = 0.95
)

// shodanHost is the subset of the host lookup response this collector maps
// into findings.
type shodanHost struct {
	Ports     []int    `json:"ports"`
	Hostnames []string `json:"hostnames"`
	Org       string   `json:"org"`
	OS        string   `json:"os"`
	Country   string   `json:"country_name"`
}

// ShodanCollector wraps the Shodan host lookup endpoint.
type ShodanCollector struct {
	client  network.HTTPClient
	log     *zap.Logger
	baseURL string
}

// NewShodan creates the Shodan collector.
func NewShodan(client network.HTTPClient, logger *zap.Logger) *ShodanCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShodanCollector{
		client:  client,
		log:     logger.Named("shodan"),
		baseURL: shodanBaseURL,
	}
}

func (s *ShodanCollector) Name() string { return shodanName }

func (s *ShodanCollector) Descriptor() schemas.CollectorDescriptor {
	return schemas.CollectorDescriptor{
		Name:               shodanName,
		Kinds:              []schemas.TargetKind{schemas.KindIPAddress},
		RequiredConfigKeys: []string{schemas.ConfigKeyAPIKey},
		Priority:           20,
		RateLimit:          schemas.RateLimit{MaxCalls: 1, Per: time.Second},
	}
}

// Invoke performs the host lookup. A missing API key short-circuits to
// AuthMissing without touching the network.
func (s *ShodanCollector) Invoke(ctx context.Context, target schemas.Target, settings schemas.CollectorSettings) schemas.AdapterResult {
	started := time.Now()

	if settings.APIKey == "" {
		return failure(shodanName, started, schemas.OutcomeAuthMissing, "collector requires api_key but none is configured")
	}
	if s.client == nil {
		return failure(shodanName, started, schemas.OutcomeNotAvailable, "no HTTP client configured")
	}

	ip := target.NormalizedValue
	queryURL := fmt.Sprintf("%s/shodan/host/%s?key=%s", s.baseURL, url.PathEscape(ip), url.QueryEscape(settings.APIKey))

	body, status, err := s.client.Get(ctx, queryURL)
	if err != nil {
		outcome, detail := classifyTransport(err)
		return failure(shodanName, started, outcome, detail)
	}

	switch status {
	case http.StatusOK:
		// fall through to parsing
	case http.StatusUnauthorized, http.StatusForbidden:
		return failure(shodanName, started, schemas.OutcomeAuthMissing, fmt.Sprintf("shodan rejected the API key (HTTP %d)", status))
	case http.StatusTooManyRequests:
		return failure(shodanName, started, schemas.OutcomeRateLimited, "shodan returned HTTP 429")
	case http.StatusNotFound:
		// No information for this host. A clean, empty success.
		return success(shodanName, started, nil)
	default:
		if status >= 500 {
			return failure(shodanName, started, schemas.OutcomeNetworkError, fmt.Sprintf("shodan returned HTTP %d", status))
		}
		return failure(shodanName, started, schemas.OutcomeParseError, fmt.Sprintf("unexpected shodan response HTTP %d", status))
	}

	var host shodanHost
	if err := json.Unmarshal(body, &host); err != nil {
		return failure(shodanName, started, schemas.OutcomeParseError, fmt.Sprintf("unparseable shodan response: %v", err))
	}

	findings := s.parseHost(ip, body, host)

	s.log.Debug("Host lookup complete",
		zap.String("ip", ip),
		zap.Int("ports", len(host.Ports)),
		zap.Int("hostnames", len(host.Hostnames)))

	return success(shodanName, started, findings)
}

// parseHost maps the decoded host record into findings. A record with no
// recognized fields degrades to a single Other finding carrying the raw
// fragment instead of being dropped.
func (s *ShodanCollector) parseHost(ip string, body []byte, host shodanHost) []schemas.Finding {
	if len(host.Ports) == 0 && len(host.Hostnames) == 0 && host.Org == "" && host.OS == "" && host.Country == "" {
		return []schemas.Finding{{
			Type:       schemas.FindingOther,
			Value:      "shodan:" + ip,
			Attributes: map[string]string{schemas.AttrRaw: truncateRaw(body)},
			Confidence: 0.3,
		}}
	}

	findings := make([]schemas.Finding, 0, 1+len(host.Ports)+len(host.Hostnames))

	hostAttrs := make(map[string]string)
	if host.Org != "" {
		hostAttrs["org"] = host.Org
	}
	if host.OS != "" {
		hostAttrs["os"] = host.OS
	}
	if host.Country != "" {
		hostAttrs["country"] = host.Country
	}
	findings = append(findings, schemas.Finding{
		Type:       schemas.FindingIPAddress,
		Value:      ip,
		Attributes: hostAttrs,
		Confidence: shodanConfidence,
	})

	for _, port := range host.Ports {
		findings = append(findings, schemas.Finding{
			Type:  schemas.FindingOpenPort,
			Value: ip + ":" + strconv.Itoa(port),
			Attributes: map[string]string{
				"port":                 strconv.Itoa(port),
				schemas.AttrParent:     ip,
				schemas.AttrParentType: string(schemas.FindingIPAddress),
				schemas.AttrRelation:   "open_on",
			},
			Confidence: shodanConfidence,
		})
	}

	for _, hostname := range host.Hostnames {
		findings = append(findings, schemas.Finding{
			Type:  schemas.FindingSubdomain,
			Value: hostname,
			Attributes: map[string]string{
				schemas.AttrParent:     ip,
				schemas.AttrParentType: string(schemas.FindingIPAddress),
				schemas.AttrRelation:   "resolves_to",
			},
			Confidence: shodanConfidence,
		})
	}

	return findings
}
