// ABOUTME: Tests for the observable store: snapshot isolation, batch atomicity, and notifications.
// ABOUTME: Verifies versioning, subscriber delivery, drop-on-full behavior, and intake counters.

package pipeline

import (
	"testing"
	"time"
)

func TestSnapshotIsolation(t *testing.T) {
	store := NewStore()
	store.ApplySteps([]StepEvent{
		stepEvent(StageThoughtStart, "A", "X", map[string]any{"task_description": "demo"}),
	})

	snap := store.Snapshot()
	if len(snap.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(snap.Tasks))
	}

	// Mutating the snapshot must not leak into the arena.
	snap.Tasks[0].Description = "tampered"
	snap.Tasks[0].Thoughts[0].Stages[StageActionResult] = Stage{Kind: StageActionResult}

	fresh := store.Snapshot()
	if fresh.Tasks[0].Description != "demo" {
		t.Error("snapshot mutation leaked into the store")
	}
	if len(fresh.Tasks[0].Thoughts[0].Stages) != 1 {
		t.Error("snapshot stage mutation leaked into the store")
	}
}

func TestBatchBumpsVersionOnce(t *testing.T) {
	store := NewStore()
	before := store.Snapshot().Version

	store.ApplySteps([]StepEvent{
		stepEvent(StageThoughtStart, "A", "X", nil),
		stepEvent(StageSnapshotAndContext, "A", "X", nil),
		stepEvent(StageDMAResults, "A", "X", nil),
	})

	after := store.Snapshot().Version
	if after != before+1 {
		t.Errorf("one frame must bump the version once, got %d -> %d", before, after)
	}
}

func TestDroppedBatchDoesNotNotify(t *testing.T) {
	store := NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	store.ApplySteps([]StepEvent{
		stepEvent(StageActionResult, "", "X", nil),
	})

	select {
	case v := <-ch:
		t.Errorf("no-op batch must not notify, got version %d", v)
	case <-time.After(20 * time.Millisecond):
	}

	stats := store.Stats()
	if stats.RecordsDropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.RecordsDropped)
	}
	if stats.EventsApplied != 0 {
		t.Errorf("applied = %d, want 0", stats.EventsApplied)
	}
}

func TestSubscribeReceivesVersions(t *testing.T) {
	store := NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	store.ApplySteps([]StepEvent{stepEvent(StageThoughtStart, "A", "X", nil)})

	select {
	case v := <-ch:
		if v == 0 {
			t.Error("expected a non-zero version")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewStore()
	_, cancel := store.Subscribe() // never read
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			store.SetMessages([]Message{{ID: "m", Timestamp: time.Now()}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mutation blocked on a slow subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	store := NewStore()
	ch, cancel := store.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("cancelled subscription channel must be closed")
	}

	// A second cancel is a no-op, not a double close.
	cancel()
}

func TestStoreTimelineUsesRegistry(t *testing.T) {
	store := NewStore()
	store.RegisterSubmission("B", "m1")
	store.ApplySteps([]StepEvent{stepEvent(StageThoughtStart, "B", "X", nil)})
	store.SetMessages([]Message{
		{ID: "m1", Content: "go", Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	})

	items := store.Timeline()
	if len(items) != 1 {
		t.Fatalf("expected the task attached to its message, got %d items", len(items))
	}
	if items[0].Task == nil || items[0].Task.ID != "B" {
		t.Errorf("expected task B attached, got %+v", items[0])
	}
	if !items[0].Task.IsOurs {
		t.Error("task registered before creation must be ours")
	}
}

func TestIgnoredAcknowledgmentDoesNotNotify(t *testing.T) {
	store := NewStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	before := store.Snapshot().Version
	store.RegisterSubmission("", "m1")

	if v := store.Snapshot().Version; v != before {
		t.Errorf("version bumped from %d to %d on an ignored acknowledgment", before, v)
	}
	select {
	case v := <-ch:
		t.Errorf("unexpected notification for version %d", v)
	default:
	}
}

func TestTaskSnapshotUnknownID(t *testing.T) {
	store := NewStore()
	if task := store.TaskSnapshot("nope"); task != nil {
		t.Errorf("expected nil for unknown task, got %+v", task)
	}
}

func TestFailureCounters(t *testing.T) {
	store := NewStore()
	store.NoteFrameFailure()
	store.NoteFrameFailure()
	store.NotePollError()

	stats := store.Stats()
	if stats.FramesFailed != 2 || stats.PollErrors != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
