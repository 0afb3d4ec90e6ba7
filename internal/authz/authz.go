// Package authz implements capability-based authorization for the
// coordination kernel: classes bundle a fixed capability subset and a
// staleness window, and the authorization check is a pure function with no
// dynamic dispatch, per the design note in spec.md §9.
package authz

import "minionkernel/internal/kernelerr"

// Class is a fixed role identifier.
type Class string

const (
	ClassLead     Class = "lead"
	ClassCoder    Class = "coder"
	ClassBuilder  Class = "builder"
	ClassOracle   Class = "oracle"
	ClassRecon    Class = "recon"
	ClassPlanner  Class = "planner"
	ClassAuditor  Class = "auditor"
)

// Capability is a named permission a command may require.
type Capability string

const (
	CapManage     Capability = "manage"
	CapCode       Capability = "code"
	CapBuild      Capability = "build"
	CapReview     Capability = "review"
	CapTest       Capability = "test"
	CapInvestigate Capability = "investigate"
	CapPlan       Capability = "plan"

	// CapHPWrite is granted only to the daemon runtime, never to a class,
	// so HP updates never require impersonating lead (spec.md §4.B design
	// note, and the "privilege leakage" note in §9).
	CapHPWrite Capability = "hp_write"
)

// ValidClasses lists every class accepted by Agent.Class invariants.
var ValidClasses = map[Class]bool{
	ClassLead: true, ClassCoder: true, ClassBuilder: true, ClassOracle: true,
	ClassRecon: true, ClassPlanner: true, ClassAuditor: true,
}

// capabilitySets maps each class to its fixed capability subset. This is the
// entire authorization policy: no other code path grants capabilities.
var capabilitySets = map[Class]map[Capability]bool{
	ClassLead:    set(CapManage, CapCode, CapBuild, CapReview, CapTest, CapInvestigate, CapPlan),
	ClassCoder:   set(CapCode),
	ClassBuilder: set(CapBuild),
	ClassOracle:  set(CapReview, CapTest),
	ClassRecon:   set(CapInvestigate),
	ClassPlanner: set(CapPlan),
	ClassAuditor: set(CapReview),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// Capabilities returns the capability set for a class. Unknown classes have
// no capabilities.
func Capabilities(c Class) map[Capability]bool {
	if caps, ok := capabilitySets[c]; ok {
		return caps
	}
	return map[Capability]bool{}
}

// Has reports whether class c possesses capability cap.
func Has(c Class, cap Capability) bool {
	return Capabilities(c)[cap]
}

// Command describes the authorization requirement for one kernel command:
// either membership in an explicit class allowlist, or possession of a
// capability (or both — either satisfies the check).
type Command struct {
	Name      string
	Allowlist []Class
	Requires  Capability
}

// Check is the pure authorization function: (caller_class, command) ->
// allow|deny. It never consults mutable state.
func Check(caller Class, cmd Command) error {
	for _, allowed := range cmd.Allowlist {
		if allowed == caller {
			return nil
		}
	}
	if cmd.Requires != "" && Has(caller, cmd.Requires) {
		return nil
	}
	if len(cmd.Allowlist) == 0 && cmd.Requires == "" {
		return nil
	}
	return kernelerr.New(kernelerr.ClassDenied,
		"command requires allowlisted class or a possessed capability",
		string(caller)+" attempted "+cmd.Name,
		"use an agent whose class is allowlisted or holds the required capability")
}

// StalenessWindow returns the context-freshness window for a class, per
// spec.md §4.B (lead 15m, oracle 30m, others 5m). Values are supplied by
// the caller's config rather than hard-coded here so contract documents
// remain the single source of numeric defaults.
func StalenessWindow(c Class, lead, oracle, other int64) int64 {
	switch c {
	case ClassLead:
		return lead
	case ClassOracle:
		return oracle
	default:
		return other
	}
}
