// Package taskdag implements the task state machine: create, assign, pull,
// update, submit_result, complete_phase, close, reopen, and lineage
// (spec.md §4.H). Every contended operation executes as a single
// compare-and-set transaction; the engine never performs a topological
// sort — flows are state machines, not build graphs (spec.md §9).
package taskdag

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"minionkernel/internal/datastore"
	"minionkernel/internal/flow"
	"minionkernel/internal/health"
	"minionkernel/internal/kernelerr"
	"minionkernel/internal/logging"
	"minionkernel/internal/warroom"
)

// activityWarningThreshold is the design tag for "this fight is dragging"
// (spec.md §4.H step 6).
const activityWarningThreshold = 4

// Engine wires the datastore, flow loader, and war-room together.
type Engine struct {
	store  *datastore.Store
	flows  *flow.Loader
	room   *warroom.WarRoom
	health *health.Monitor
}

// New builds an Engine.
func New(store *datastore.Store, flows *flow.Loader, room *warroom.WarRoom, hp *health.Monitor) *Engine {
	return &Engine{store: store, flows: flows, room: room, health: hp}
}

func (e *Engine) resolveFlow(taskType string) (*flow.Flow, error) {
	if taskType == "" || taskType == "_base" {
		base := flow.Base
		return &base, nil
	}
	return e.flows.Resolve(taskType)
}

// CreateTaskInput is the input to CreateTask.
type CreateTaskInput struct {
	Title           string
	TaskFile        string
	Project         string
	Zone            string
	CreatedBy       string
	Files           []string
	ClassRequired   string
	TaskType        string
	BlockedBy       []string
	RequirementPath string
}

// CreateTask requires manage capability (enforced by the caller) and an
// active plan; it creates the task at the flow's initial stage.
func (e *Engine) CreateTask(ctx context.Context, in CreateTaskInput) (*datastore.Task, error) {
	hasPlan, err := e.room.HasActivePlan(ctx, in.Project)
	if err != nil {
		return nil, err
	}
	if !hasPlan {
		return nil, kernelerr.New(kernelerr.NoActivePlan, "create_task requires an active war-room plan", "no active plan for "+in.Project, "call set_plan before creating tasks")
	}

	f, err := e.resolveFlow(in.TaskType)
	if err != nil {
		return nil, err
	}

	t := &datastore.Task{
		ID: uuid.NewString(), Title: in.Title, TaskFile: in.TaskFile, Project: in.Project,
		Zone: in.Zone, Status: f.Initial, BlockedBy: in.BlockedBy, CreatedBy: in.CreatedBy,
		Files: in.Files, ClassRequired: in.ClassRequired, TaskType: in.TaskType,
		RequirementPath: in.RequirementPath,
	}
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		return datastore.CreateTaskTx(tx, t)
	})
	if err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryTasks).Info("task created", map[string]interface{}{"id": t.ID, "type": in.TaskType})
	return e.store.GetTask(ctx, t.ID)
}

// AssignTask transitions open -> assigned and sets assigned_to. Blocked if
// any task in blocked_by is unclosed. Returns a non-fatal warning string if
// the target agent's HP is CRITICAL (advisory only, per spec.md §4.H).
func (e *Engine) AssignTask(ctx context.Context, taskID, agent string) (warning string, err error) {
	f, t, ferr := e.loadTaskAndFlow(ctx, taskID)
	if ferr != nil {
		return "", ferr
	}
	closedStatuses := terminalStatuses(f)

	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := datastore.GetTaskTx(tx, taskID)
		if err != nil {
			return err
		}
		if cur.Status != "open" {
			return kernelerr.New(kernelerr.InvalidTransition, "assign requires an open task", "status="+cur.Status, "only open tasks can be assigned")
		}
		allClosed, err := datastore.AllClosedTx(tx, cur.BlockedBy, closedStatuses)
		if err != nil {
			return err
		}
		if !allClosed {
			return kernelerr.New(kernelerr.BlockedBy, "assign requires all blocked_by tasks closed", fmt.Sprintf("blocked_by=%v", cur.BlockedBy), "close the blocking tasks first")
		}
		assignedTo := agent
		return datastore.TransitionTaskTx(tx, taskID, cur.Status, "assigned", agent, &assignedTo)
	})
	if err != nil {
		return "", err
	}

	if e.health != nil {
		if zone, _, ok, herr := e.health.ZoneFor(ctx, agent); herr == nil && ok && zone == health.Critical {
			warning = agent + " is at CRITICAL HP; assignment proceeded anyway"
		}
	}
	return warning, nil
}

// PullTask is the race-safe transition: exactly one concurrent caller
// succeeds (spec.md testable property 3).
func (e *Engine) PullTask(ctx context.Context, agent, taskID string) error {
	f, _, ferr := e.loadTaskAndFlow(ctx, taskID)
	if ferr != nil {
		return ferr
	}
	closedStatuses := terminalStatuses(f)

	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := datastore.GetTaskTx(tx, taskID)
		if err != nil {
			return err
		}
		if cur.Status != "open" && cur.Status != "assigned" {
			return kernelerr.New(kernelerr.AlreadyPulled, "pull requires status open or assigned", "status="+cur.Status, "this task is already past pull")
		}
		if cur.AssignedTo != "" && cur.AssignedTo != agent {
			return kernelerr.New(kernelerr.AlreadyPulled, "task already assigned to a different agent", "assigned_to="+cur.AssignedTo, "wait for reassignment or pull a different task")
		}
		class, err := datastore.AgentClassTx(tx, agent)
		if err != nil {
			return err
		}
		if cur.ClassRequired != "" && class != cur.ClassRequired {
			return kernelerr.New(kernelerr.WorkerClassMismatch, "pull requires the task's class_required", "caller class="+class+" required="+cur.ClassRequired, "pull with an agent of the required class")
		}
		allClosed, err := datastore.AllClosedTx(tx, cur.BlockedBy, closedStatuses)
		if err != nil {
			return err
		}
		if !allClosed {
			return kernelerr.New(kernelerr.BlockedBy, "pull requires all blocked_by tasks closed", fmt.Sprintf("blocked_by=%v", cur.BlockedBy), "close the blocking tasks first")
		}
		assignedTo := agent
		// A pull from open passes through assigned on the way to in_progress,
		// so task_history always records edges that exist in the effective
		// flow (spec.md testable property 6) rather than jumping straight
		// from open to in_progress.
		if cur.Status == "open" {
			if err := datastore.TransitionTaskTx(tx, taskID, "open", "assigned", agent, &assignedTo); err != nil {
				return err
			}
			cur.Status = "assigned"
		}
		return datastore.TransitionTaskTx(tx, taskID, cur.Status, "in_progress", agent, &assignedTo)
	})
}

// UpdateTask mutates progress/files within the current stage; it never
// changes status (that is complete_phase's job).
func (e *Engine) UpdateTask(ctx context.Context, taskID, progress string, files []string) error {
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		return datastore.UpdateTaskFieldsTx(tx, taskID, progress, files)
	})
}

// SubmitResult stores the result file, required before any transition whose
// requires set includes submit_result.
func (e *Engine) SubmitResult(ctx context.Context, taskID, resultFile string) error {
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		return datastore.SetResultFileTx(tx, taskID, resultFile)
	})
}

// CompletePhaseResult reports the outcome of a complete_phase call.
type CompletePhaseResult struct {
	NewStatus      string
	Unassigned     bool
	ActivityWarning bool
}

// CompletePhase is the DAG routing contract (spec.md §4.H step 6): resolves
// next/fail target, verifies requires and worker-class gates, optionally
// clears assigned_to on a class handoff, and records history.
func (e *Engine) CompletePhase(ctx context.Context, agent, taskID string, failed bool) (*CompletePhaseResult, error) {
	f, _, ferr := e.loadTaskAndFlow(ctx, taskID)
	if ferr != nil {
		return nil, ferr
	}

	var result CompletePhaseResult
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := datastore.GetTaskTx(tx, taskID)
		if err != nil {
			return err
		}
		stage, ok := f.Stages[cur.Status]
		if !ok {
			return kernelerr.New(kernelerr.InvalidTransition, "current status has no stage definition", cur.Status, "check the flow definition")
		}
		if stage.Terminal {
			return kernelerr.New(kernelerr.InvalidTransition, "terminal stage has no complete_phase target", cur.Status, "this task is already closed")
		}

		target := stage.Next
		if failed {
			target = stage.Fail
			if target == "" {
				return kernelerr.New(kernelerr.InvalidTransition, "stage has no fail branch", cur.Status, "do not pass --failed for this stage")
			}
		}

		for _, req := range stage.Requires {
			if req == "submit_result" && cur.ResultFile == "" {
				return kernelerr.New(kernelerr.MissingResult, "stage requires submit_result before completing", "result_file empty", "call submit_result first")
			}
		}

		class, err := datastore.AgentClassTx(tx, agent)
		if err != nil {
			return err
		}
		allowed := stage.WorkersFor(class)
		if !containsClass(allowed, class) {
			return kernelerr.New(kernelerr.WorkerClassMismatch, "caller class is not a permitted worker of the current stage", "class="+class+" stage="+cur.Status, "use an agent class listed in the stage's workers map")
		}

		var nextAssigned *string
		targetStage := f.Stages[target]
		nextAllowed := targetStage.WorkersFor(class)
		if !containsClass(nextAllowed, class) {
			empty := ""
			nextAssigned = &empty
			result.Unassigned = true
		}

		if err := datastore.TransitionTaskTx(tx, taskID, cur.Status, target, agent, nextAssigned); err != nil {
			return err
		}
		result.NewStatus = target
		result.ActivityWarning = cur.ActivityCount+1 >= activityWarningThreshold
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.ActivityWarning {
		logging.Get(logging.CategoryTasks).Warn("task activity count high, this fight is dragging", map[string]interface{}{"task_id": taskID})
	}
	return &result, nil
}

// CloseTask is lead-only (enforced by the caller via authz.Check) and
// requires result_file to be non-null.
func (e *Engine) CloseTask(ctx context.Context, agent, taskID string) error {
	f, _, ferr := e.loadTaskAndFlow(ctx, taskID)
	if ferr != nil {
		return ferr
	}
	terminal := firstTerminalStage(f)

	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := datastore.GetTaskTx(tx, taskID)
		if err != nil {
			return err
		}
		if cur.ResultFile == "" {
			return kernelerr.New(kernelerr.MissingResult, "close requires result_file", "result_file empty", "call submit_result first")
		}
		return datastore.TransitionTaskTx(tx, taskID, cur.Status, terminal, agent, nil)
	})
}

// ReopenTask is lead-only: moves a task to a named stage of its flow and
// clears assigned_to. The task's current status is not checked, so a
// non-terminal task is moved as well.
func (e *Engine) ReopenTask(ctx context.Context, agent, taskID, targetStage string) error {
	f, _, ferr := e.loadTaskAndFlow(ctx, taskID)
	if ferr != nil {
		return ferr
	}
	if _, ok := f.Stages[targetStage]; !ok {
		return kernelerr.New(kernelerr.InvalidTransition, "reopen target must be a stage of the task's flow", "stage="+targetStage, "pick a stage defined in the flow")
	}
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := datastore.GetTaskTx(tx, taskID)
		if err != nil {
			return err
		}
		empty := ""
		return datastore.TransitionTaskTx(tx, taskID, cur.Status, targetStage, agent, &empty)
	})
}

// GetTask returns one task by id.
func (e *Engine) GetTask(ctx context.Context, id string) (*datastore.Task, error) {
	return e.store.GetTask(ctx, id)
}

// ListTasks returns tasks for a project, optionally filtered by status.
func (e *Engine) ListTasks(ctx context.Context, project, status string) ([]*datastore.Task, error) {
	return e.store.ListTasks(ctx, project, status)
}

// Lineage is the ordered history plus the resolved flow for a task,
// enabling a caller to render visited vs. not-visited stages.
type Lineage struct {
	Task    *datastore.Task
	Flow    *flow.Flow
	History []*datastore.HistoryEntry
	Visited map[string]bool
}

// TaskLineage returns the full history plus resolved flow for a task.
func (e *Engine) TaskLineage(ctx context.Context, taskID string) (*Lineage, error) {
	t, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	f, err := e.resolveFlow(t.TaskType)
	if err != nil {
		return nil, err
	}
	history, err := e.store.History(ctx, taskID)
	if err != nil {
		return nil, err
	}
	visited := map[string]bool{f.Initial: true}
	for _, h := range history {
		visited[h.FromStatus] = true
		visited[h.ToStatus] = true
	}
	return &Lineage{Task: t, Flow: f, History: history, Visited: visited}, nil
}

func (e *Engine) loadTaskAndFlow(ctx context.Context, taskID string) (*flow.Flow, *datastore.Task, error) {
	t, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	f, err := e.resolveFlow(t.TaskType)
	if err != nil {
		return nil, nil, err
	}
	return f, t, nil
}

func terminalStatuses(f *flow.Flow) map[string]bool {
	out := map[string]bool{}
	for name, stage := range f.Stages {
		if stage.Terminal {
			out[name] = true
		}
	}
	return out
}

func firstTerminalStage(f *flow.Flow) string {
	for name, stage := range f.Stages {
		if stage.Terminal {
			return name
		}
	}
	return "closed"
}

func containsClass(classes []string, class string) bool {
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}
