// Package triggers scans outgoing message content for the fixed trigger
// vocabulary and identifies which triggers are "active" (flip a process-
// wide flag in the same transaction as the message insert) versus
// advisory (observed and recorded only).
package triggers

import "strings"

// Trigger is one recognized keyword.
type Trigger string

const (
	MoonCrash Trigger = "moon_crash"
	StandDown Trigger = "stand_down"
	FenixDown Trigger = "fenix_down"
	Sitrep    Trigger = "sitrep"
	Rally     Trigger = "rally"
	Retreat   Trigger = "retreat"
	HotZone   Trigger = "hot_zone"
	Recon     Trigger = "recon"
)

// All is the fixed set of recognized triggers, per spec.md §4.L.
var All = []Trigger{MoonCrash, StandDown, FenixDown, Sitrep, Rally, Retreat, HotZone, Recon}

// Active triggers flip a correspondingly named process-wide flag.
var active = map[Trigger]bool{
	MoonCrash: true,
	StandDown: true,
}

// IsActive reports whether a trigger has a side effect beyond being
// recorded.
func IsActive(t Trigger) bool { return active[t] }

// Scan returns every trigger word found in content, in the order of All
// without duplicates.
func Scan(content string) []Trigger {
	lower := strings.ToLower(content)
	var found []Trigger
	seen := map[Trigger]bool{}
	for _, t := range All {
		if strings.Contains(lower, string(t)) && !seen[t] {
			found = append(found, t)
			seen[t] = true
		}
	}
	return found
}
