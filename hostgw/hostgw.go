// Package hostgw resolves the address of the host machine as seen from inside
// a bridge-networked container, so a containerized client can reach an
// inference endpoint served on the host. Resolution walks a prioritized chain
// of strategies; the first success wins and a hard fallback guarantees an
// answer, so resolution itself never fails.
package hostgw

import (
	"context"
	"time"

	"github.com/hupe1980/modelbridge/logging"
)

const (
	// FallbackAddr is the standard Linux docker bridge gateway, returned when
	// every strategy fails.
	FallbackAddr = "172.17.0.1"

	// DefaultRouteTablePath is the Linux kernel routing table.
	DefaultRouteTablePath = "/proc/net/route"

	// DefaultInternalHost is the host alias published by Docker Desktop.
	DefaultInternalHost = "host.docker.internal"

	// DefaultProbeTarget is the public address UDPProbe connects towards.
	// The socket is never written to.
	DefaultProbeTarget = "8.8.8.8:80"
)

// Options configures a Resolver.
type Options struct {
	// Strategies are tried in order; the first success wins.
	Strategies []Strategy

	// Fallback is returned when every strategy fails.
	Fallback string

	// Logger receives per-strategy outcomes (defaults to NoOp).
	Logger logging.Logger
}

// Resolver resolves the container host address by walking a strategy chain.
// A Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	strategies []Strategy
	fallback   string
	logger     logging.Logger
}

// DefaultStrategies returns the standard chain: kernel route table first (most
// reliable inside Linux containers), then the Docker Desktop host alias.
func DefaultStrategies() []Strategy {
	return []Strategy{
		RouteTable(DefaultRouteTablePath),
		DNSLookup(DefaultInternalHost),
	}
}

// ProbeStrategies returns the socket-probe alternative chain: UDP source
// address discovery first, then the Docker Desktop host alias as a literal.
func ProbeStrategies() []Strategy {
	return []Strategy{
		UDPProbe(DefaultProbeTarget),
		Static(DefaultInternalHost),
	}
}

// NewResolver creates a Resolver. Without options it uses DefaultStrategies
// and FallbackAddr.
func NewResolver(optFns ...func(o *Options)) *Resolver {
	opts := Options{
		Strategies: DefaultStrategies(),
		Fallback:   FallbackAddr,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Resolver{
		strategies: opts.Strategies,
		fallback:   opts.Fallback,
		logger:     opts.Logger,
	}
}

// Resolve walks the strategy chain and returns the first resolved address, or
// the fallback when every strategy fails. Failed strategies are logged and
// skipped; Resolve never returns an error.
func (r *Resolver) Resolve(ctx context.Context) string {
	for _, s := range r.strategies {
		start := time.Now()

		addr, err := s.Probe(ctx)
		if err != nil {
			r.logger.Warn("Host strategy failed", "strategy", s.Name, "error", err)
			continue
		}

		if addr == "" {
			r.logger.Warn("Host strategy returned empty address", "strategy", s.Name)
			continue
		}

		r.logger.Info("Host resolved", "strategy", s.Name, "address", addr, "duration", time.Since(start))

		return addr
	}

	r.logger.Warn("All host strategies failed, using fallback", "address", r.fallback)

	return r.fallback
}
