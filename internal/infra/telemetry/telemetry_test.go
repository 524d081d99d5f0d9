package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wasipo/harbor-sub000/internal/infra/config"
)

func TestProviderCounters(t *testing.T) {
	p, err := Attach(context.Background(), &config.AppConfig{})
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	p.RoleAssignment("assign", "changed")
	p.RoleAssignment("assign", "noop")
	p.RoleAssignment("assign", "noop")
	p.Registration("created")
	p.AuthorizationCheck("roles.manage", false)
	p.EventPublishFailure("rbac.user.registered", nil)

	if got := testutil.ToFloat64(p.roleAssignments.WithLabelValues("assign", "noop")); got != 2 {
		t.Fatalf("expected 2 noop assignments, got %v", got)
	}
	if got := testutil.ToFloat64(p.authorizationChecks.WithLabelValues("roles.manage", "denied")); got != 1 {
		t.Fatalf("expected 1 denied check, got %v", got)
	}
	if got := testutil.ToFloat64(p.eventFailures.WithLabelValues("rbac.user.registered")); got != 1 {
		t.Fatalf("expected 1 event failure, got %v", got)
	}
	if got := testutil.CollectAndCount(p.registrations); got != 1 {
		t.Fatalf("expected 1 registration series, got %d", got)
	}
}

func TestAttachRequiresConfig(t *testing.T) {
	if _, err := Attach(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestAttachUsesIsolatedRegistry(t *testing.T) {
	first, err := Attach(context.Background(), &config.AppConfig{})
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	second, err := Attach(context.Background(), &config.AppConfig{})
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	if first.Registry() == second.Registry() {
		t.Fatal("expected separate registries")
	}
}

func TestNilProviderIsSafe(t *testing.T) {
	var p *Provider
	p.RoleAssignment("assign", "changed")
	p.Registration("created")
	p.AuthorizationCheck("users.view", true)
}
