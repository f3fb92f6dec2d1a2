// ABOUTME: Timeline projection merging conversation history and the task arena into one ordered view.
// ABOUTME: Attaches each correlated task to its originating message; leftover tasks appear standalone.

package pipeline

import (
	"sort"
	"time"
)

// ItemKind discriminates the two timeline entry types.
type ItemKind string

const (
	ItemMessage ItemKind = "message"
	ItemTask    ItemKind = "task"
)

// Message is one entry of the polled conversation history.
type Message struct {
	ID        string    `json:"id"`
	IsAgent   bool      `json:"is_agent"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TimelineItem is one row of the projected view. Message items may carry the
// task they originated; task items stand alone for tasks no message claims.
type TimelineItem struct {
	Kind      ItemKind  `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Task      *Task     `json:"task,omitempty"`
}

// ProjectTimeline merges messages and tasks into a single chronologically
// ascending sequence. taskForMessage resolves a message ID this client
// authored to its task ID, per the correlation registry.
//
// A task attaches to at most one message; every unattached task appears
// standalone exactly once, ordered by its first-seen timestamp. The sort is
// stable, so equal timestamps keep construction order. The projection is a
// pure function of its inputs and is recomputed on every change.
func ProjectTimeline(messages []Message, tasks []*Task, taskForMessage func(messageID string) (string, bool)) []TimelineItem {
	if taskForMessage == nil {
		taskForMessage = func(string) (string, bool) { return "", false }
	}

	byID := make(map[string]*Task, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
	}

	attached := make(map[string]bool)
	items := make([]TimelineItem, 0, len(messages)+len(tasks))

	for i := range messages {
		msg := &messages[i]
		item := TimelineItem{
			Kind:      ItemMessage,
			Timestamp: msg.Timestamp,
			Message:   msg,
		}
		// Only messages this client authored correlate to tasks, and a
		// task attaches to at most one message. The task for a just-sent
		// message may not exist yet; the next update re-projects.
		if !msg.IsAgent {
			if taskID, ok := taskForMessage(msg.ID); ok && !attached[taskID] {
				if task, exists := byID[taskID]; exists {
					item.Task = task
					attached[taskID] = true
				}
			}
		}
		items = append(items, item)
	}

	for _, task := range tasks {
		if attached[task.ID] {
			continue
		}
		items = append(items, TimelineItem{
			Kind:      ItemTask,
			Timestamp: task.FirstTimestamp,
			Task:      task,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})

	return items
}
