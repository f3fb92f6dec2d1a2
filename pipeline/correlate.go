// ABOUTME: Correlation registry linking this client's submissions to the tasks the stream later reports.
// ABOUTME: Tracks the "ours" task-ID set and the message-ID to task-ID map, both best-effort.

package pipeline

import "sync"

// Registry records the (task_id, message_id) pairs returned when this client
// submits a message. The aggregator consults the ours set at task creation;
// the timeline projector uses the message map to attach tasks to the chat
// messages that originated them.
//
// Both correlations are best-effort. If the acknowledgment lands after the
// task's first stream event, the task keeps isOurs == false for the session;
// a reconnect rebuilds the arena against the by-then-complete registry.
type Registry struct {
	mu        sync.Mutex
	ours      map[string]struct{}
	msgToTask map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		ours:      make(map[string]struct{}),
		msgToTask: make(map[string]string),
	}
}

// RegisterSubmission records a submission acknowledgment and reports whether
// anything was recorded. Empty IDs are ignored so a partial acknowledgment
// never poisons the maps.
func (r *Registry) RegisterSubmission(taskID, messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if taskID == "" {
		return false
	}
	r.ours[taskID] = struct{}{}
	if messageID != "" {
		r.msgToTask[messageID] = taskID
	}
	return true
}

// IsOurs reports whether a task ID came from a submission this client made.
func (r *Registry) IsOurs(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ours[taskID]
	return ok
}

// TaskForMessage returns the task ID correlated with a message this client
// authored, if any.
func (r *Registry) TaskForMessage(messageID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	taskID, ok := r.msgToTask[messageID]
	return taskID, ok
}
