// Package discovery keeps VictoriaMetrics datasource endpoints in sync with
// the pods behind a Kubernetes Service.
package discovery

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/coder/quartz"

	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const defaultRefresh = 30 * time.Second

// EndpointsSink is implemented by services that can accept updated endpoint lists
type EndpointsSink interface {
	ReplaceEndpoints([]string)
}

// Resolver is the subset of *net.Resolver used for lookups.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type Options struct {
	Resolver Resolver
	Clock    quartz.Clock
}

// DNSDiscovery periodically resolves a service name and pushes the resulting
// endpoints to a sink. An empty or failed lookup keeps the previous list.
type DNSDiscovery struct {
	source   string
	cfg      config.DNSDiscoveryConfig
	sink     EndpointsSink
	resolver Resolver
	clock    quartz.Clock
	logger   logger.Logger

	last []string
}

func NewDNSDiscovery(source string, cfg config.DNSDiscoveryConfig, sink EndpointsSink, log logger.Logger, opts Options) *DNSDiscovery {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	d := &DNSDiscovery{
		source:   source,
		cfg:      cfg,
		sink:     sink,
		resolver: opts.Resolver,
		clock:    opts.Clock,
		logger:   log,
	}
	if d.resolver == nil {
		d.resolver = net.DefaultResolver
	}
	if d.clock == nil {
		d.clock = quartz.NewReal()
	}
	return d
}

func (d *DNSDiscovery) interval() time.Duration {
	if d.cfg.RefreshSeconds <= 0 {
		return defaultRefresh
	}
	return time.Duration(d.cfg.RefreshSeconds) * time.Second
}

// Start resolves once, then keeps refreshing until ctx is done. It returns
// once the first lookup finished.
func (d *DNSDiscovery) Start(ctx context.Context) {
	d.Refresh(ctx)
	d.clock.TickerFunc(ctx, d.interval(), func() error {
		d.Refresh(ctx)
		return nil
	}, "dnsDiscovery")
}

// Refresh performs one lookup and pushes the endpoints when they changed.
func (d *DNSDiscovery) Refresh(ctx context.Context) []string {
	eps, err := d.resolve(ctx)
	if err != nil {
		d.logger.Warn("DNS discovery lookup failed", "source", d.source, "service", d.cfg.Service, "error", err)
		return d.last
	}
	if len(eps) == 0 {
		d.logger.Warn("DNS discovery resolved no endpoints", "source", d.source, "service", d.cfg.Service)
		return d.last
	}
	if !slices.Equal(eps, d.last) {
		d.last = eps
		d.sink.ReplaceEndpoints(eps)
	}
	return eps
}

func (d *DNSDiscovery) resolve(ctx context.Context) ([]string, error) {
	var out []string
	if d.cfg.UseSRV {
		// _http._tcp.<service> unless the caller spelled the SRV name out
		service := d.cfg.Service
		if !strings.HasPrefix(service, "_") {
			service = fmt.Sprintf("_http._tcp.%s", service)
		}
		_, addrs, err := d.resolver.LookupSRV(ctx, "", "", service)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			host := strings.TrimSuffix(a.Target, ".")
			out = append(out, fmt.Sprintf("%s://%s", d.cfg.Scheme, net.JoinHostPort(host, fmt.Sprint(a.Port))))
		}
	} else {
		// A/AAAA records (works with headless services to list pods)
		ips, err := d.resolver.LookupIPAddr(ctx, d.cfg.Service)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			out = append(out, fmt.Sprintf("%s://%s", d.cfg.Scheme, net.JoinHostPort(ip.IP.String(), fmt.Sprint(d.cfg.Port))))
		}
	}

	sort.Strings(out)
	return slices.Compact(out), nil
}
