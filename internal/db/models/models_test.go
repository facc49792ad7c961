package models

import "testing"

func TestPlanForPropertyCount(t *testing.T) {
	tests := []struct {
		count    int
		plan     string
		maxProps int
		maxUsers int
	}{
		{0, PlanBasic, 5, 5},
		{1, PlanBasic, 5, 5},
		{5, PlanBasic, 5, 5},
		{6, PlanPro, 20, 15},
		{12, PlanPro, 20, 15},
		{15, PlanPro, 20, 15},
		{16, PlanEnterprise, 100, 50},
		{500, PlanEnterprise, 100, 50},
	}

	for _, tc := range tests {
		plan, maxProps, maxUsers := PlanForPropertyCount(tc.count)
		if plan != tc.plan {
			t.Errorf("PlanForPropertyCount(%d) plan = %s, want %s", tc.count, plan, tc.plan)
		}
		if maxProps != tc.maxProps {
			t.Errorf("PlanForPropertyCount(%d) maxProperties = %d, want %d", tc.count, maxProps, tc.maxProps)
		}
		if maxUsers != tc.maxUsers {
			t.Errorf("PlanForPropertyCount(%d) maxUsers = %d, want %d", tc.count, maxUsers, tc.maxUsers)
		}
	}
}

func TestHasFeature(t *testing.T) {
	tenant := &Tenant{Features: []string{"channel_manager", "payments"}}

	if !tenant.HasFeature("payments") {
		t.Error("expected payments to be enabled")
	}
	if tenant.HasFeature("pos") {
		t.Error("expected pos to be disabled")
	}

	empty := &Tenant{}
	if empty.HasFeature("payments") {
		t.Error("expected no features on empty tenant")
	}
}

func TestValidTenantStatus(t *testing.T) {
	for _, s := range []string{TenantStatusActive, TenantStatusSuspended, TenantStatusTerminated} {
		if !ValidTenantStatus(s) {
			t.Errorf("ValidTenantStatus(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "deleted", "Active", "pending"} {
		if ValidTenantStatus(s) {
			t.Errorf("ValidTenantStatus(%q) = true, want false", s)
		}
	}
}

func TestCanTransition_ForwardOnly(t *testing.T) {
	d := &Deployment{
		DeploymentStatus: DeploymentStatusProvisioning,
		DatabaseStatus:   DatabaseStatusMigrating,
		SeedDataStatus:   SeedStatusCompleted,
	}

	if !d.CanAdvanceDeployment(DeploymentStatusReady) {
		t.Error("provisioning -> ready should be allowed")
	}
	if !d.CanAdvanceDeployment(DeploymentStatusFailed) {
		t.Error("provisioning -> failed should be allowed")
	}
	if !d.CanAdvanceDatabase(DatabaseStatusMigrating) {
		t.Error("repeating the current status should be allowed")
	}
	if d.CanAdvanceDatabase(DatabaseStatusCreating) {
		t.Error("migrating -> creating must be rejected")
	}
	if d.CanAdvanceSeed(SeedStatusSeeding) {
		t.Error("completed -> seeding must be rejected")
	}
	if d.CanAdvanceSeed("bogus") {
		t.Error("unknown status must be rejected")
	}

	ready := &Deployment{DeploymentStatus: DeploymentStatusReady}
	if ready.CanAdvanceDeployment(DeploymentStatusProvisioning) {
		t.Error("ready -> provisioning must be rejected")
	}
	if ready.CanAdvanceDeployment(DeploymentStatusFailed) {
		t.Error("ready -> failed must be rejected")
	}
	if !ready.IsTerminal() {
		t.Error("ready should be terminal")
	}
}

func TestCanTransition_RetryFromFailed(t *testing.T) {
	// A failed track can be re-entered by an operator retry.
	d := &Deployment{
		DeploymentStatus: DeploymentStatusFailed,
		DatabaseStatus:   DatabaseStatusFailed,
		SeedDataStatus:   SeedStatusFailed,
	}

	if !d.CanAdvanceDeployment(DeploymentStatusReady) {
		t.Error("failed -> ready should be allowed on retry")
	}
	if !d.CanAdvanceDatabase(DatabaseStatusMigrating) {
		t.Error("failed -> migrating should be allowed on retry")
	}
	if !d.CanAdvanceSeed(SeedStatusSeeding) {
		t.Error("failed -> seeding should be allowed on retry")
	}
	if d.CanAdvanceSeed("bogus") {
		t.Error("unknown status must be rejected even from failed")
	}
}
