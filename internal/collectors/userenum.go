// File: internal/collectors/userenum.go
// Description: Username enumeration collector. Probes a fixed list of
// profile URL patterns and reports sites where the handle resolves.
package collectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
	"github.com/xkilldash9x/dossier-cli/internal/network"
)

const (
	userEnumName = "userenum"
	// Presence probes are weak evidence: many sites serve vanity pages or
	// soft 404s, so a bare HTTP 200 only earns a low confidence.
	userEnumConfidence = 0.6
)

// profileSite is one probe pattern. The pattern receives the URL-escaped
// username via fmt.Sprintf.
type profileSite struct {
	Name    string
	Pattern string
}

// defaultSites is the built-in probe list. Kept small; site coverage is a
// collector implementation detail, not a contract.
var defaultSites = []profileSite{
	{Name: "github", Pattern: "https://github.com/%s"},
	{Name: "gitlab", Pattern: "https://gitlab.com/%s"},
	{Name: "reddit", Pattern: "https://old.reddit.com/user/%s"},
	{Name: "keybase", Pattern: "https://keybase.io/%s"},
}

// UserEnumCollector checks username presence across the probe list.
type UserEnumCollector struct {
	client network.HTTPClient
	log    *zap.Logger
	sites  []profileSite
}

// NewUserEnum creates the username enumeration collector.
func NewUserEnum(client network.HTTPClient, logger *zap.Logger) *UserEnumCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserEnumCollector{
		client: client,
		log:    logger.Named("userenum"),
		sites:  defaultSites,
	}
}

func (u *UserEnumCollector) Name() string { return userEnumName }

func (u *UserEnumCollector) Descriptor() schemas.CollectorDescriptor {
	return schemas.CollectorDescriptor{
		Name:      userEnumName,
		Kinds:     []schemas.TargetKind{schemas.KindUsername, schemas.KindEmail},
		Priority:  5,
		RateLimit: schemas.RateLimit{MaxCalls: 4, Per: time.Second},
	}
}

// Invoke probes each site sequentially. Individual site failures are
// tolerated; the invocation only degrades to NetworkError when every probe
// failed at the transport level.
func (u *UserEnumCollector) Invoke(ctx context.Context, target schemas.Target, settings schemas.CollectorSettings) schemas.AdapterResult {
	started := time.Now()

	if u.client == nil {
		return failure(userEnumName, started, schemas.OutcomeNotAvailable, "no HTTP client configured")
	}
	if len(u.sites) == 0 {
		return failure(userEnumName, started, schemas.OutcomeNotAvailable, "no probe sites configured")
	}

	username := handleFor(target)

	var findings []schemas.Finding
	transportErrors := 0

	for _, site := range u.sites {
		if ctx.Err() != nil {
			outcome, detail := classifyTransport(ctx.Err())
			return failure(userEnumName, started, outcome, detail)
		}

		probeURL := fmt.Sprintf(site.Pattern, url.PathEscape(username))
		_, status, err := u.client.Get(ctx, probeURL)
		if err != nil {
			if ctx.Err() != nil {
				outcome, detail := classifyTransport(err)
				return failure(userEnumName, started, outcome, detail)
			}
			u.log.Debug("Probe failed", zap.String("site", site.Name), zap.Error(err))
			transportErrors++
			continue
		}

		if status == http.StatusOK {
			findings = append(findings, schemas.Finding{
				Type:  schemas.FindingSocialProfile,
				Value: probeURL,
				Attributes: map[string]string{
					"site":     site.Name,
					"username": username,
				},
				Confidence: userEnumConfidence,
			})
		}
	}

	if transportErrors == len(u.sites) {
		return failure(userEnumName, started, schemas.OutcomeNetworkError,
			fmt.Sprintf("all %d probe sites unreachable", len(u.sites)))
	}

	u.log.Debug("Username enumeration complete",
		zap.String("username", username),
		zap.Int("hits", len(findings)))

	return success(userEnumName, started, findings)
}

// handleFor derives the handle to probe. Email targets are probed by their
// local part, the common convention for handle reuse.
func handleFor(target schemas.Target) string {
	if target.Kind == schemas.KindEmail {
		for i, r := range target.NormalizedValue {
			if r == '@' {
				return target.NormalizedValue[:i]
			}
		}
	}
	return target.NormalizedValue
}
