package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wasipo/harbor-sub000/internal/infra/config"
)

// Namespace prefixes every collector exported by the service.
const Namespace = "rbac"

// Provider owns the service registry and the domain level counters.
// HTTP and gRPC collectors register themselves against Registry().
type Provider struct {
	registry *prometheus.Registry

	roleAssignments     *prometheus.CounterVec
	registrations       *prometheus.CounterVec
	authorizationChecks *prometheus.CounterVec
	eventFailures       *prometheus.CounterVec
}

// Attach creates the registry and registers runtime and domain collectors.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	registry := prometheus.NewRegistry()
	p := &Provider{
		registry: registry,
		roleAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "role_assignment_operations_total",
			Help:      "Role assign and revoke calls partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts partitioned by outcome.",
		}, []string{"outcome"}),
		authorizationChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "authorization_checks_total",
			Help:      "Permission gate decisions on the admin API.",
		}, []string{"permission", "result"}),
		eventFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "event_publish_failures_total",
			Help:      "Domain events the broker rejected after retries.",
		}, []string{"topic"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.roleAssignments,
		p.registrations,
		p.authorizationChecks,
		p.eventFailures,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return p, nil
}

// Registry exposes the registry for the /metrics handler and transport collectors.
func (p *Provider) Registry() *prometheus.Registry { return p.registry }

// RoleAssignment records an assign or revoke call. outcome is "changed", "noop" or "error".
func (p *Provider) RoleAssignment(operation, outcome string) {
	if p == nil {
		return
	}
	p.roleAssignments.WithLabelValues(operation, outcome).Inc()
}

// Registration records a registration attempt.
func (p *Provider) Registration(outcome string) {
	if p == nil {
		return
	}
	p.registrations.WithLabelValues(outcome).Inc()
}

// AuthorizationCheck records a permission gate decision.
func (p *Provider) AuthorizationCheck(permission string, allowed bool) {
	if p == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	p.authorizationChecks.WithLabelValues(permission, result).Inc()
}

// EventPublishFailure records an event the producer gave up on.
func (p *Provider) EventPublishFailure(topic string, _ error) {
	if p == nil {
		return
	}
	p.eventFailures.WithLabelValues(topic).Inc()
}
