// ABOUTME: Best-effort remediation for gateway "no allowed providers" rejections.
// ABOUTME: Re-queries the gateway for which upstream providers serve the chain's gateway models.

package summary

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/2389-research/summarize/llm"
)

// EndpointLister lists the upstream providers serving a gateway model.
type EndpointLister interface {
	ListEndpoints(ctx context.Context, model string) ([]llm.GatewayEndpoint, error)
}

// ListerFactory builds an EndpointLister for a gateway attempt, or returns
// nil when it cannot (for example, no credential).
type ListerFactory func(a Attempt, snap Snapshot) EndpointLister

// DefaultListerFactory uses the same OpenAI-compatible client as the gateway
// transport.
func DefaultListerFactory(a Attempt, snap Snapshot) EndpointLister {
	key, ok := snap.Credential(a.RequiredEnv)
	if !ok {
		return nil
	}
	return gatewayClient(a, key)
}

// DefaultRemediationTimeout bounds the whole remediation probe.
const DefaultRemediationTimeout = 5 * time.Second

// Remediate fills d.Remediation after a "no allowed providers" failure by
// asking the gateway which providers serve each gateway model in attempts.
// The probe is not retried. Its own failures are logged and otherwise
// ignored, so the original error is always what the caller reports.
func (d *Diagnostics) Remediate(ctx context.Context, attempts []Attempt, snap Snapshot, lister ListerFactory, timeout time.Duration) {
	if !d.NoAllowedProviders {
		return
	}
	if lister == nil {
		lister = DefaultListerFactory
	}
	if timeout <= 0 {
		timeout = DefaultRemediationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var parts []string
	var hints []string
	for _, a := range attempts {
		if a.Transport != llm.TransportGateway {
			continue
		}
		for _, h := range a.RoutingHints {
			if !slices.Contains(hints, h) {
				hints = append(hints, h)
			}
		}
		l := lister(a, snap)
		if l == nil {
			continue
		}
		endpoints, err := l.ListEndpoints(ctx, a.Model)
		if err != nil {
			log.Printf("component=summary.gateway action=probe_failed model=%s err=%v", a.Model, err)
			continue
		}
		var names []string
		for _, ep := range endpoints {
			name := ep.ProviderName
			if name == "" {
				name = ep.Name
			}
			if name != "" && !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", a.Model, strings.Join(names, ", ")))
		}
	}

	var b strings.Builder
	if len(hints) > 0 {
		fmt.Fprintf(&b, "routing is restricted to %s", strings.Join(hints, ", "))
	}
	if len(parts) > 0 {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "providers serving these models: %s", strings.Join(parts, "; "))
	}
	if b.Len() > 0 {
		b.WriteString("; adjust gateway.only in your config")
	}
	d.Remediation = b.String()
}
