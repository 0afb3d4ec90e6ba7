package main

import "minionkernel/internal/authz"

// commandTable is the authorization requirement for every command in the
// surface (spec.md §4.B, §6: "each command carries a required capability
// or class allowlist"). A zero-value authz.Command (no allowlist, no
// required capability) is an open command any registered caller may run.
// This is the only place command-level authorization policy is declared.
var commandTable = map[string]authz.Command{
	// Agents (spec.md §4.C).
	"register":        {Name: "register"},
	"deregister":      {Name: "deregister", Requires: authz.CapManage},
	"rename":          {Name: "rename", Allowlist: []authz.Class{authz.ClassLead}},
	"who":             {Name: "who"},
	"set_context":     {Name: "set_context"},
	"set_status":      {Name: "set_status"},
	"cold_start":      {Name: "cold_start"},
	"fenix_down":      {Name: "fenix_down"},
	"update_hp":       {Name: "update_hp", Requires: authz.CapHPWrite},
	"check_activity":  {Name: "check_activity"},
	"check_freshness": {Name: "check_freshness"},

	// Comms (spec.md §4.D, §4.L).
	"send":             {Name: "send"},
	"check_inbox":      {Name: "check_inbox"},
	"purge_inbox":      {Name: "purge_inbox"},
	"get_history":      {Name: "get_history"},
	"list_triggers":    {Name: "list_triggers"},
	"clear_moon_crash": {Name: "clear_moon_crash", Requires: authz.CapManage},

	// Tasks (spec.md §4.H).
	"create_task":    {Name: "create_task", Requires: authz.CapManage},
	"assign_task":    {Name: "assign_task", Requires: authz.CapManage},
	"pull_task":      {Name: "pull_task"},
	"update_task":    {Name: "update_task"},
	"submit_result":  {Name: "submit_result"},
	"complete_phase": {Name: "complete_phase"},
	"close_task":     {Name: "close_task", Allowlist: []authz.Class{authz.ClassLead}},
	"reopen_task":    {Name: "reopen_task", Allowlist: []authz.Class{authz.ClassLead}},
	"get_task":       {Name: "get_task"},
	"list_tasks":     {Name: "list_tasks"},
	"task_lineage":   {Name: "task_lineage"},

	// Flows (spec.md §4.G).
	"list_flows":  {Name: "list_flows"},
	"show_flow":   {Name: "show_flow"},
	"next_status": {Name: "next_status"},
	"transition":  {Name: "transition", Allowlist: []authz.Class{authz.ClassLead}},

	// Files (spec.md §4.E).
	"claim_file":   {Name: "claim_file"},
	"release_file": {Name: "release_file"},
	"list_claims":  {Name: "list_claims"},

	// War-room (spec.md §4.F).
	"set_plan":           {Name: "set_plan", Requires: authz.CapPlan},
	"get_plan":           {Name: "get_plan"},
	"update_plan_status": {Name: "update_plan_status", Requires: authz.CapPlan},
	"log":                {Name: "log"},
	"get_log":            {Name: "get_log"},

	// Crew lifecycle (spec.md §5).
	"spawn_party":   {Name: "spawn_party", Requires: authz.CapManage},
	"stand_down":    {Name: "stand_down", Allowlist: []authz.Class{authz.ClassLead}},
	"retire_agent":  {Name: "retire_agent", Allowlist: []authz.Class{authz.ClassLead}},
	"recruit":       {Name: "recruit", Requires: authz.CapManage},
	"hand_off_zone": {Name: "hand_off_zone"},
	"interrupt":     {Name: "interrupt", Allowlist: []authz.Class{authz.ClassLead}},
	"resume":        {Name: "resume", Allowlist: []authz.Class{authz.ClassLead}},
	"list_crews":    {Name: "list_crews"},

	// Observability.
	"party_status": {Name: "party_status"},
	"sitrep":       {Name: "sitrep"},
	"poll":         {Name: "poll"},
	"list_tools":   {Name: "list_tools"},
}
