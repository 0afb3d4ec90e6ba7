package authz

import (
	"errors"
	"testing"

	"minionkernel/internal/kernelerr"
)

func TestLeadHasEveryCapability(t *testing.T) {
	for _, cap := range []Capability{CapManage, CapCode, CapBuild, CapReview, CapTest, CapInvestigate, CapPlan} {
		if !Has(ClassLead, cap) {
			t.Fatalf("lead missing capability %s", cap)
		}
	}
	if Has(ClassLead, CapHPWrite) {
		t.Fatalf("lead must not hold hp_write; only the daemon runtime does")
	}
}

func TestCoderOnlyHasCode(t *testing.T) {
	if !Has(ClassCoder, CapCode) {
		t.Fatalf("coder should have code capability")
	}
	if Has(ClassCoder, CapManage) {
		t.Fatalf("coder must not have manage capability")
	}
}

func TestCheckAllowsViaCapability(t *testing.T) {
	cmd := Command{Name: "create_task", Requires: CapManage}
	if err := Check(ClassLead, cmd); err != nil {
		t.Fatalf("lead should pass manage-gated command: %v", err)
	}
	err := Check(ClassCoder, cmd)
	if !errors.Is(err, kernelerr.ClassDenied) {
		t.Fatalf("coder should be denied manage-gated command, got %v", err)
	}
}

func TestCheckAllowsViaAllowlist(t *testing.T) {
	cmd := Command{Name: "close_task", Allowlist: []Class{ClassLead}}
	if err := Check(ClassLead, cmd); err != nil {
		t.Fatalf("lead should pass allowlisted command: %v", err)
	}
	if err := Check(ClassCoder, cmd); err == nil {
		t.Fatalf("coder should be denied lead-only command")
	}
}

func TestCheckWithNoRequirementAllowsAnyClass(t *testing.T) {
	if err := Check(ClassAuditor, Command{Name: "who"}); err != nil {
		t.Fatalf("unrestricted command should allow any class: %v", err)
	}
}
