// ABOUTME: Tests for the Task/Thought/Stage aggregator state machine.
// ABOUTME: Covers lazy creation, stage overwrite, dedup by ID, terminal monotonicity, and dropped records.

package pipeline

import (
	"testing"
	"time"
)

func stepEvent(kind StageKind, taskID, thoughtID string, fields map[string]any) StepEvent {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["event_type"] = string(kind)
	fields["task_id"] = taskID
	fields["thought_id"] = thoughtID
	ev := StepEvent{
		EventType: kind,
		TaskID:    taskID,
		ThoughtID: thoughtID,
		Fields:    fields,
	}
	if desc, ok := fields["task_description"].(string); ok {
		ev.TaskDescription = desc
	}
	if action, ok := fields["action_executed"].(string); ok {
		ev.ActionExecuted = action
	}
	if rec, ok := fields["is_recursive"].(bool); ok {
		ev.Recursive = rec
	}
	return ev
}

func TestLazyTaskCreation(t *testing.T) {
	agg := NewAggregator(nil)

	ev := stepEvent(StageThoughtStart, "A", "X", map[string]any{"task_description": "demo"})
	ev.Timestamp = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !agg.Apply(ev) {
		t.Fatal("expected event to apply")
	}

	task := agg.Task("A")
	if task == nil {
		t.Fatal("task not created")
	}
	if task.Description != "demo" {
		t.Errorf("description = %q, want %q", task.Description, "demo")
	}
	if !task.FirstTimestamp.Equal(ev.Timestamp) {
		t.Errorf("firstTimestamp = %v, want %v", task.FirstTimestamp, ev.Timestamp)
	}
	if task.Completed {
		t.Error("new task must not be completed")
	}
	if task.ColorTag == "" {
		t.Error("task must get a color tag at creation")
	}
}

func TestFirstTimestampFallsBackToNow(t *testing.T) {
	agg := NewAggregator(nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return fixed }

	agg.Apply(stepEvent(StageThoughtStart, "A", "X", nil))

	if got := agg.Task("A").FirstTimestamp; !got.Equal(fixed) {
		t.Errorf("firstTimestamp = %v, want %v", got, fixed)
	}
}

func TestFirstTimestampImmutable(t *testing.T) {
	agg := NewAggregator(nil)

	first := stepEvent(StageThoughtStart, "A", "X", nil)
	first.Timestamp = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	agg.Apply(first)

	later := stepEvent(StageSnapshotAndContext, "A", "X", nil)
	later.Timestamp = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	agg.Apply(later)

	if got := agg.Task("A").FirstTimestamp; !got.Equal(first.Timestamp) {
		t.Errorf("firstTimestamp changed to %v", got)
	}
}

func TestDroppedEventWithoutTaskID(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Apply(stepEvent(StageThoughtStart, "A", "X", nil))

	before := agg.Len()
	if agg.Apply(stepEvent(StageActionResult, "", "X", nil)) {
		t.Error("event without task_id must not apply")
	}
	if agg.Apply(stepEvent(StageActionResult, "A", "", nil)) {
		t.Error("event without thought_id must not apply")
	}
	if agg.Len() != before {
		t.Errorf("task count changed from %d to %d", before, agg.Len())
	}
	if len(agg.Task("A").Thoughts[0].Stages) != 1 {
		t.Error("existing task was altered by a dropped event")
	}
}

func TestDedupByThoughtID(t *testing.T) {
	agg := NewAggregator(nil)

	kinds := []StageKind{
		StageThoughtStart,
		StageSnapshotAndContext,
		StageDMAResults,
		StageASPDMAResult,
		StageConscienceResult,
	}
	for _, kind := range kinds {
		agg.Apply(stepEvent(kind, "A", "X", nil))
	}

	task := agg.Task("A")
	if len(task.Thoughts) != 1 {
		t.Fatalf("expected 1 thought, got %d", len(task.Thoughts))
	}
	if len(task.Thoughts[0].Stages) != len(kinds) {
		t.Errorf("expected %d stages, got %d", len(kinds), len(task.Thoughts[0].Stages))
	}
}

func TestIdempotentStageOverwrite(t *testing.T) {
	agg := NewAggregator(nil)

	agg.Apply(stepEvent(StageActionResult, "A", "X", map[string]any{"selected": "first"}))
	agg.Apply(stepEvent(StageActionResult, "A", "X", map[string]any{"selected": "second"}))

	thought := agg.Task("A").Thoughts[0]
	if len(thought.Stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(thought.Stages))
	}
	if got := thought.Stages[StageActionResult].Data["selected"]; got != "second" {
		t.Errorf("second application must win, got %v", got)
	}
}

func TestTerminalCompletion(t *testing.T) {
	agg := NewAggregator(nil)

	agg.Apply(stepEvent(StageActionResult, "A", "X", map[string]any{"action_executed": "SPEAK.task_complete"}))
	if !agg.Task("A").Completed {
		t.Fatal("terminal action must complete the task")
	}

	// Terminal monotonicity: no later event resets completion.
	agg.Apply(stepEvent(StageActionResult, "A", "Y", map[string]any{"action_executed": "ponder"}))
	agg.Apply(stepEvent(StageThoughtStart, "A", "Z", nil))
	if !agg.Task("A").Completed {
		t.Error("completed was reset by a later event")
	}
}

func TestNonTerminalActionDoesNotComplete(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Apply(stepEvent(StageActionResult, "A", "X", map[string]any{"action_executed": "SPEAK.speak"}))
	if agg.Task("A").Completed {
		t.Error("non-terminal action must not complete the task")
	}
}

func TestOwnershipAtCreation(t *testing.T) {
	ours := map[string]bool{"B": true}
	agg := NewAggregator(func(id string) bool { return ours[id] })

	agg.Apply(stepEvent(StageThoughtStart, "A", "X", nil))
	agg.Apply(stepEvent(StageThoughtStart, "B", "Y", nil))

	if agg.Task("A").IsOurs {
		t.Error("task A should not be ours")
	}
	if !agg.Task("B").IsOurs {
		t.Error("task B should be ours")
	}

	// Registration after creation does not retroactively flip ownership.
	ours["A"] = true
	agg.Apply(stepEvent(StageSnapshotAndContext, "A", "X", nil))
	if agg.Task("A").IsOurs {
		t.Error("isOurs must be fixed at creation time")
	}
}

func TestColorTagsCycle(t *testing.T) {
	agg := NewAggregator(nil)

	total := len(colorPalette) + 2
	for i := 0; i < total; i++ {
		agg.Apply(stepEvent(StageThoughtStart, string(rune('a'+i)), "X", nil))
	}

	tasks := agg.TasksInOrder()
	if len(tasks) != total {
		t.Fatalf("expected %d tasks, got %d", total, len(tasks))
	}
	for i, task := range tasks {
		want := colorPalette[i%len(colorPalette)]
		if task.ColorTag != want {
			t.Errorf("task %d color = %q, want %q", i, task.ColorTag, want)
		}
	}
}

func TestDescriptionSetOnce(t *testing.T) {
	agg := NewAggregator(nil)

	agg.Apply(stepEvent(StageThoughtStart, "A", "X", nil))
	agg.Apply(stepEvent(StageSnapshotAndContext, "A", "X", map[string]any{"task_description": "filled in"}))
	agg.Apply(stepEvent(StageDMAResults, "A", "X", map[string]any{"task_description": "overwritten"}))

	if got := agg.Task("A").Description; got != "filled in" {
		t.Errorf("description = %q, want %q", got, "filled in")
	}
}

func TestRecursiveFlagLatches(t *testing.T) {
	agg := NewAggregator(nil)

	agg.Apply(stepEvent(StageASPDMAResult, "A", "X", map[string]any{"is_recursive": true}))
	agg.Apply(stepEvent(StageConscienceResult, "A", "X", nil))

	if !agg.Task("A").Thoughts[0].Recursive {
		t.Error("recursive flag must stay latched")
	}
}

func TestStreamScenario(t *testing.T) {
	// Two step_update frames as delivered by the stream.
	frame1 := `{"events": [{"event_type": "thought_start", "task_id": "A", "thought_id": "X", "task_description": "demo"}]}`
	frame2 := `{"events": [{"event_type": "action_result", "task_id": "A", "thought_id": "X", "action_executed": "SPEAK.task_complete", "carbon_grams": 10}]}`

	agg := NewAggregator(nil)
	for _, frame := range []string{frame1, frame2} {
		events, err := ParseStepUpdate([]byte(frame))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, ev := range events {
			agg.Apply(ev)
		}
	}

	if agg.Len() != 1 {
		t.Fatalf("expected 1 task, got %d", agg.Len())
	}
	task := agg.Task("A")
	if task.Description != "demo" {
		t.Errorf("description = %q", task.Description)
	}
	if len(task.Thoughts) != 1 || len(task.Thoughts[0].Stages) != 2 {
		t.Fatalf("expected one thought with two stages, got %+v", task.Thoughts)
	}
	if !task.Completed {
		t.Error("terminal action must complete the task")
	}

	impact := ComputeImpact(task, DefaultImpactCoefficients())
	if impact == nil {
		t.Fatal("expected a rollup, got nil")
	}
	if impact.CarbonGrams != 10 {
		t.Errorf("carbon = %v, want 10", impact.CarbonGrams)
	}
	if impact.Tokens != 0 {
		t.Errorf("tokens = %d, want 0", impact.Tokens)
	}
	if impact.WaterMl <= 0 {
		t.Errorf("water must be positive for a carbon-reporting task, got %v", impact.WaterMl)
	}
}
