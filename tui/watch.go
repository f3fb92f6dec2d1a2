// ABOUTME: WatchModel is an inline Bubble Tea model streaming the agent's live task view to the terminal.
// ABOUTME: Shows per-task stage progress, color tags, completion marks, and impact lines without alt-screen.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/CIRISAI/scoutgui/pipeline"
)

// stageOrder is the display order of the six pipeline phases.
var stageOrder = []pipeline.StageKind{
	pipeline.StageThoughtStart,
	pipeline.StageSnapshotAndContext,
	pipeline.StageDMAResults,
	pipeline.StageASPDMAResult,
	pipeline.StageConscienceResult,
	pipeline.StageActionResult,
}

// stageGlyphs are the single-character markers for each phase in display order.
var stageGlyphs = []string{"◦", "◉", "Δ", "→", "✓", "!"}

// StoreUpdateMsg signals that the store advanced to a new version.
type StoreUpdateMsg struct {
	Version uint64
}

// TickMsg drives the spinner for tasks still in flight.
type TickMsg struct {
	Time time.Time
}

// WatchModel is an inline (non-alt-screen) Bubble Tea model that renders the
// task arena as a streaming list: one line per task, stage dots per latest
// thought, and an impact line once a task completes.
type WatchModel struct {
	store  *pipeline.Store
	coeffs pipeline.ImpactCoefficients
	cancel context.CancelFunc

	updates   <-chan uint64
	unsub     func()
	snapshot  pipeline.Snapshot
	spin      spinner.Model
	startedAt time.Time
	width     int
}

// NewWatchModel subscribes to the store and prepares the inline view.
// cancel tears down the stream and poller when the user quits.
func NewWatchModel(store *pipeline.Store, coeffs pipeline.ImpactCoefficients, cancel context.CancelFunc) WatchModel {
	if cancel == nil {
		cancel = func() {}
	}
	updates, unsub := store.Subscribe()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = runningStyle

	return WatchModel{
		store:     store,
		coeffs:    coeffs,
		cancel:    cancel,
		updates:   updates,
		unsub:     unsub,
		snapshot:  store.Snapshot(),
		spin:      sp,
		startedAt: time.Now(),
	}
}

// waitForUpdate blocks on the next store notification.
func waitForUpdate(updates <-chan uint64) tea.Cmd {
	return func() tea.Msg {
		version, ok := <-updates
		if !ok {
			return nil
		}
		return StoreUpdateMsg{Version: version}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), m.spin.Tick, tickCmd())
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case StoreUpdateMsg:
		m.snapshot = m.store.Snapshot()
		return m, waitForUpdate(m.updates)

	case TickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			m.unsub()
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("scout — live reasoning"))
	b.WriteString("\n\n")

	if len(m.snapshot.Tasks) == 0 {
		b.WriteString(dimStyle.Render("  waiting for tasks..."))
		b.WriteString("\n")
	}

	for _, task := range m.snapshot.Tasks {
		b.WriteString(m.renderTaskLine(task))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")

	return b.String()
}

// renderTaskLine renders one task: marker, tag-colored label, stage dots for
// the latest thought, and an impact summary once completed.
func (m WatchModel) renderTaskLine(task *pipeline.Task) string {
	label := task.Description
	if label == "" {
		label = task.ID
	}
	tag := tagStyle(task.ColorTag)

	marker := m.spin.View()
	if task.Completed {
		marker = completedStyle.Render("✓")
	}

	line := fmt.Sprintf("  %s %s %s", marker, tag.Render(label), m.renderStages(task))
	if task.IsOurs {
		line += dimStyle.Render("  (you)")
	}

	if task.Completed {
		if impact := pipeline.ComputeImpact(task, m.coeffs); impact != nil {
			line += "\n" + dimStyle.Render(fmt.Sprintf(
				"      %.1f g CO2 · %.1f mL water · %d tokens",
				impact.CarbonGrams, impact.WaterMl, impact.Tokens))
		}
	}
	return line
}

// renderStages renders the six stage glyphs for the task's latest thought;
// reached stages take the task's color, pending ones stay dim.
func (m WatchModel) renderStages(task *pipeline.Task) string {
	var stages map[pipeline.StageKind]pipeline.Stage
	if n := len(task.Thoughts); n > 0 {
		stages = task.Thoughts[n-1].Stages
	}

	tag := tagStyle(task.ColorTag)
	var b strings.Builder
	for i, kind := range stageOrder {
		if _, ok := stages[kind]; ok {
			b.WriteString(tag.Render(stageGlyphs[i]))
		} else {
			b.WriteString(dimStyle.Render("·"))
		}
	}
	return b.String()
}

// renderStatusLine renders the bottom counters line.
func (m WatchModel) renderStatusLine() string {
	completed := 0
	for _, task := range m.snapshot.Tasks {
		if task.Completed {
			completed++
		}
	}
	elapsed := time.Since(m.startedAt).Round(time.Second)
	return dimStyle.Render(fmt.Sprintf(
		"  %d/%d tasks complete · %d messages · %s · q to quit",
		completed, len(m.snapshot.Tasks), len(m.snapshot.Messages), elapsed))
}
