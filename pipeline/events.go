// ABOUTME: Step-event vocabulary and payload parsing for the agent's reasoning stream.
// ABOUTME: Decodes step_update frame payloads into ordered StepEvent records for the aggregator.

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FrameStepUpdate is the only stream frame type that carries reasoning
// content; all other frame types (keepalives, cursors) are ignored.
const FrameStepUpdate = "step_update"

// StageKind discriminates the six phases a thought passes through.
type StageKind string

const (
	StageThoughtStart       StageKind = "thought_start"
	StageSnapshotAndContext StageKind = "snapshot_and_context"
	StageDMAResults         StageKind = "dma_results"
	StageASPDMAResult       StageKind = "aspdma_result"
	StageConscienceResult   StageKind = "conscience_result"
	StageActionResult       StageKind = "action_result"
)

// terminalActions are the executed actions that complete a task when they
// appear in an action_result stage.
var terminalActions = map[string]bool{
	"task_complete": true,
	"task_reject":   true,
}

// StepEvent is one pipeline-event record from a step_update payload. Fields
// holds the full decoded record so stage-specific data survives untouched.
type StepEvent struct {
	EventType       StageKind
	TaskID          string
	ThoughtID       string
	TaskDescription string
	Timestamp       time.Time
	ActionExecuted  string
	Recursive       bool
	Fields          map[string]any
}

// stepUpdatePayload is the wire shape of a step_update frame's data.
type stepUpdatePayload struct {
	Events []json.RawMessage `json:"events"`
}

// ParseStepUpdate decodes a step_update frame payload into its ordered event
// records. A parse failure fails the whole frame; the caller logs and moves
// on to the next frame.
func ParseStepUpdate(data []byte) ([]StepEvent, error) {
	var payload stepUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding step_update payload: %w", err)
	}

	events := make([]StepEvent, 0, len(payload.Events))
	for i, raw := range payload.Events {
		ev, err := parseStepEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding step_update event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// parseStepEvent decodes a single record, lifting the envelope fields out of
// the raw map while keeping the full map as the opaque stage payload.
func parseStepEvent(raw json.RawMessage) (StepEvent, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return StepEvent{}, err
	}

	ev := StepEvent{
		EventType:       StageKind(stringField(fields, "event_type")),
		TaskID:          stringField(fields, "task_id"),
		ThoughtID:       stringField(fields, "thought_id"),
		TaskDescription: stringField(fields, "task_description"),
		ActionExecuted:  stringField(fields, "action_executed"),
		Recursive:       boolField(fields, "is_recursive"),
		Fields:          fields,
	}

	if ts := stringField(fields, "timestamp"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = parsed
		}
	}

	return ev, nil
}

// IsTerminalAction reports whether an executed action completes its task.
// Actions arrive qualified, e.g. "SPEAK.task_complete" or
// "HandlerActionType.TASK_REJECT"; everything up to the last dot is stripped
// before the case-insensitive membership test.
func IsTerminalAction(action string) bool {
	if idx := strings.LastIndexByte(action, '.'); idx >= 0 {
		action = action[idx+1:]
	}
	return terminalActions[strings.ToLower(action)]
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func boolField(fields map[string]any, key string) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return false
}
