// ABOUTME: In-memory model for the agent's reasoning pipeline: Task, Thought, and Stage records.
// ABOUTME: Tasks own discovery-ordered thoughts; thoughts hold at most one stage per stage kind.

package pipeline

import "time"

// Stage is the payload of one pipeline phase within a thought. Stages are
// only ever inserted fully formed, so Completed is true from insertion.
type Stage struct {
	Kind      StageKind      `json:"kind"`
	Completed bool           `json:"completed"`
	Data      map[string]any `json:"data,omitempty"`
}

// Thought is one reasoning pass within a task. Stages are keyed by kind; a
// later stage of the same kind overwrites the earlier one. Recursive latches
// true once any stage of the thought reports a recursive re-evaluation pass.
type Thought struct {
	ID        string              `json:"thought_id"`
	Recursive bool                `json:"recursive,omitempty"`
	Stages    map[StageKind]Stage `json:"stages"`
}

// Task is one unit of agent work, tracked end-to-end through the pipeline.
type Task struct {
	ID             string    `json:"task_id"`
	Description    string    `json:"description"`
	ColorTag       string    `json:"color_tag"`
	Completed      bool      `json:"completed"`
	IsOurs         bool      `json:"is_ours"`
	FirstTimestamp time.Time `json:"first_timestamp"`

	// Thoughts in discovery order, unique by thought ID.
	Thoughts []*Thought `json:"thoughts"`
}

// ThoughtByID returns the task's thought with the given ID, or nil.
func (t *Task) ThoughtByID(id string) *Thought {
	for _, th := range t.Thoughts {
		if th.ID == id {
			return th
		}
	}
	return nil
}

// colorPalette is the fixed cycle of display tags handed out to tasks in
// creation order. Purely cosmetic; not persisted.
var colorPalette = []string{
	"#7aa2f7", // blue
	"#9ece6a", // green
	"#e0af68", // amber
	"#f7768e", // red
	"#bb9af7", // purple
	"#7dcfff", // cyan
	"#ff9e64", // orange
	"#73daca", // teal
}

// cloneTask deep-copies a task so snapshot readers never share mutable
// structure with the aggregator.
func cloneTask(t *Task) *Task {
	clone := *t
	clone.Thoughts = make([]*Thought, len(t.Thoughts))
	for i, th := range t.Thoughts {
		clone.Thoughts[i] = cloneThought(th)
	}
	return &clone
}

func cloneThought(th *Thought) *Thought {
	clone := *th
	clone.Stages = make(map[StageKind]Stage, len(th.Stages))
	for kind, stage := range th.Stages {
		clone.Stages[kind] = cloneStage(stage)
	}
	return &clone
}

func cloneStage(s Stage) Stage {
	clone := s
	if s.Data != nil {
		clone.Data = make(map[string]any, len(s.Data))
		for k, v := range s.Data {
			clone.Data[k] = v
		}
	}
	return clone
}
