// ABOUTME: State machine that builds the Task/Thought/Stage model from dispatched step events.
// ABOUTME: Creates tasks and thoughts lazily, overwrites stages by kind, and latches terminal completion.

package pipeline

import "time"

// Aggregator folds step events into the task arena. It owns the arena
// exclusively; readers go through the Store, which hands out deep-copied
// snapshots. Not safe for concurrent use on its own.
type Aggregator struct {
	tasks map[string]*Task
	order []string // task IDs in creation order

	// created counts every task ever created, cycling the color palette.
	created int

	// isOurs answers whether a task ID was registered by a submission this
	// client made, consulted once at task creation.
	isOurs func(taskID string) bool

	// now supplies firstTimestamp for events that arrive without one.
	now func() time.Time
}

// NewAggregator creates an empty Aggregator. isOurs may be nil, in which
// case every task is treated as externally originated.
func NewAggregator(isOurs func(taskID string) bool) *Aggregator {
	if isOurs == nil {
		isOurs = func(string) bool { return false }
	}
	return &Aggregator{
		tasks:  make(map[string]*Task),
		isOurs: isOurs,
		now:    time.Now,
	}
}

// Apply folds one step event into the arena. Records missing a task or
// thought ID are dropped silently. Returns true when the arena changed.
func (a *Aggregator) Apply(ev StepEvent) bool {
	if ev.TaskID == "" || ev.ThoughtID == "" {
		return false
	}

	task, ok := a.tasks[ev.TaskID]
	if !ok {
		task = a.createTask(ev)
	}

	if task.Description == "" && ev.TaskDescription != "" {
		task.Description = ev.TaskDescription
	}

	thought := task.ThoughtByID(ev.ThoughtID)
	if thought == nil {
		thought = &Thought{
			ID:     ev.ThoughtID,
			Stages: make(map[StageKind]Stage),
		}
		task.Thoughts = append(task.Thoughts, thought)
	}

	// Overwrite by kind: a second pass of the same stage replaces the first.
	thought.Stages[ev.EventType] = Stage{
		Kind:      ev.EventType,
		Completed: true,
		Data:      ev.Fields,
	}

	if ev.Recursive {
		thought.Recursive = true
	}

	// Completion is monotonic: nothing ever resets it.
	if ev.EventType == StageActionResult && IsTerminalAction(ev.ActionExecuted) {
		task.Completed = true
	}

	return true
}

// createTask registers a new task on first reference. Ownership is decided
// here and never revisited: a submission acknowledgment that lands after the
// task's first stream event does not retroactively flip isOurs.
func (a *Aggregator) createTask(ev StepEvent) *Task {
	first := ev.Timestamp
	if first.IsZero() {
		first = a.now()
	}

	task := &Task{
		ID:             ev.TaskID,
		Description:    ev.TaskDescription,
		ColorTag:       colorPalette[a.created%len(colorPalette)],
		IsOurs:         a.isOurs(ev.TaskID),
		FirstTimestamp: first,
	}
	a.created++
	a.tasks[ev.TaskID] = task
	a.order = append(a.order, ev.TaskID)
	return task
}

// Task returns the live task record for an ID, or nil. The returned pointer
// shares structure with the arena; callers outside this package get clones
// via the Store instead.
func (a *Aggregator) Task(id string) *Task {
	return a.tasks[id]
}

// TasksInOrder returns the live task records in creation order.
func (a *Aggregator) TasksInOrder() []*Task {
	out := make([]*Task, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.tasks[id])
	}
	return out
}

// Len returns the number of tasks in the arena.
func (a *Aggregator) Len() int {
	return len(a.tasks)
}
