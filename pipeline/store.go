// ABOUTME: Authoritative observable store for the dashboard: task arena, message history, and registry.
// ABOUTME: Mutations happen under one lock and bump a version; subscribers get non-blocking notifications.

package pipeline

import "sync"

// subscriberBuffer is the notification channel depth per subscriber. A slow
// reader misses intermediate versions, never blocks the stream loop; the
// latest Snapshot call catches it up.
const subscriberBuffer = 8

// Store is the single authoritative holder of dashboard state. The
// aggregator arena is owned exclusively by the store; readers receive
// deep-copied snapshots, so a render never observes a half-applied batch.
type Store struct {
	mu       sync.RWMutex
	agg      *Aggregator
	registry *Registry
	messages []Message
	version  uint64

	stats Stats

	subMu       sync.Mutex
	subscribers map[int]chan uint64
	nextSub     int
}

// Stats counts the store's intake outcomes, exposed for the metrics surface.
type Stats struct {
	EventsApplied  uint64 `json:"events_applied"`
	RecordsDropped uint64 `json:"records_dropped"`
	FramesFailed   uint64 `json:"frames_failed"`
	PollErrors     uint64 `json:"poll_errors"`
}

// Snapshot is an immutable copy of the store's state at one version.
type Snapshot struct {
	Version  uint64
	Messages []Message
	Tasks    []*Task // creation order, deep copies
}

// NewStore creates an empty Store wired so task creation consults the
// correlation registry for ownership.
func NewStore() *Store {
	registry := NewRegistry()
	return &Store{
		agg:         NewAggregator(registry.IsOurs),
		registry:    registry,
		subscribers: make(map[int]chan uint64),
	}
}

// ApplySteps folds a batch of step events — one decoded frame — into the
// arena atomically: subscribers see one version bump per frame, never a
// half-applied batch.
func (s *Store) ApplySteps(events []StepEvent) {
	s.mu.Lock()
	changed := false
	for _, ev := range events {
		if s.agg.Apply(ev) {
			s.stats.EventsApplied++
			changed = true
		} else {
			s.stats.RecordsDropped++
		}
	}
	if changed {
		s.version++
	}
	version := s.version
	s.mu.Unlock()

	if changed {
		s.notify(version)
	}
}

// SetMessages replaces the conversation history from a poll result.
func (s *Store) SetMessages(messages []Message) {
	s.mu.Lock()
	s.messages = append([]Message(nil), messages...)
	s.version++
	version := s.version
	s.mu.Unlock()

	s.notify(version)
}

// RegisterSubmission records a submission acknowledgment and notifies, since
// the new correlation can change the projection immediately. An acknowledgment
// the registry ignores does not bump the version.
func (s *Store) RegisterSubmission(taskID, messageID string) {
	if !s.registry.RegisterSubmission(taskID, messageID) {
		return
	}

	s.mu.Lock()
	s.version++
	version := s.version
	s.mu.Unlock()

	s.notify(version)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:  s.version,
		Messages: append([]Message(nil), s.messages...),
	}

	live := s.agg.TasksInOrder()
	snap.Tasks = make([]*Task, len(live))
	for i, task := range live {
		snap.Tasks[i] = cloneTask(task)
	}
	return snap
}

// TaskSnapshot returns a deep copy of one task, or nil if unknown.
func (s *Store) TaskSnapshot(id string) *Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task := s.agg.Task(id)
	if task == nil {
		return nil
	}
	return cloneTask(task)
}

// Timeline projects the current snapshot into the ordered view.
func (s *Store) Timeline() []TimelineItem {
	snap := s.Snapshot()
	return ProjectTimeline(snap.Messages, snap.Tasks, s.registry.TaskForMessage)
}

// TaskForMessage resolves a message ID to its correlated task ID.
func (s *Store) TaskForMessage(messageID string) (string, bool) {
	return s.registry.TaskForMessage(messageID)
}

// NoteFrameFailure counts a frame whose payload failed to parse.
func (s *Store) NoteFrameFailure() {
	s.mu.Lock()
	s.stats.FramesFailed++
	s.mu.Unlock()
}

// NotePollError counts a history poll that failed and was skipped.
func (s *Store) NotePollError() {
	s.mu.Lock()
	s.stats.PollErrors++
	s.mu.Unlock()
}

// Stats returns the intake counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Subscribe registers for version notifications. The returned cancel func
// unregisters and closes the channel; callers must stop reading after
// cancelling.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, subscriberBuffer)
	s.subscribers[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// notify delivers a version bump to every subscriber without blocking.
func (s *Store) notify(version uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- version:
		default:
			// Subscriber is behind; it will catch up on its next snapshot.
		}
	}
}
