// Package inspect implements the interactive task browser behind
// "escoredump inspect": a scrollable list of recovered tasks, with a
// detail pane showing registers and stack bounds for the selected one.
package inspect

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"escoredump/internal/ui/colorize"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#569CD6"))
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// TaskSummary is the read-only view of one recovered task the list and
// detail pane render. The caller builds it from the per-task reports of
// coredump.ListTasks; this package has no dependency on the coredump or
// elfcore packages themselves.
type TaskSummary struct {
	Index      int
	Name       string
	TCBAddr    uint32
	StackStart uint32
	StackEnd   uint32
	Corrupted  bool
	Regs       []uint32
	RegNames   []string
}

// taskItem adapts a TaskSummary to bubbles/list.Item.
type taskItem struct{ s TaskSummary }

func (i taskItem) Title() string {
	name := i.s.Name
	if name == "" {
		name = fmt.Sprintf("task[%d]", i.s.Index)
	}
	if i.s.Corrupted {
		return name + " " + colorize.Flag("[corrupted]")
	}
	return name
}

func (i taskItem) Description() string {
	return fmt.Sprintf("tcb=%s stack=[%s, %s)",
		colorize.Address(i.s.TCBAddr), colorize.Address(i.s.StackStart), colorize.Address(i.s.StackEnd))
}

func (i taskItem) FilterValue() string { return i.s.Name }

// Model is the top-level Bubble Tea model for the inspect command.
type Model struct {
	list       list.Model
	detail     viewport.Model
	tasks      []TaskSummary
	showDetail bool
	width      int
	height     int
}

// NewModel builds an inspect Model over the given tasks.
func NewModel(tasks []TaskSummary) Model {
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{s: t}
	}

	const defaultWidth, defaultHeight = 80, 24
	l := list.New(items, list.NewDefaultDelegate(), defaultWidth-4, defaultHeight-4)
	l.Title = "escoredump - recovered tasks"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)

	d := viewport.New(defaultWidth-4, defaultHeight-4)

	return Model{list: l, detail: d, tasks: tasks, width: defaultWidth, height: defaultHeight}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-4)
		m.detail.Width = msg.Width - 4
		m.detail.Height = msg.Height - 4

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if m.showDetail {
				m.showDetail = false
				return m, nil
			}
		case "enter":
			if !m.showDetail {
				if item, ok := m.list.SelectedItem().(taskItem); ok {
					m.detail.SetContent(renderDetail(item.s))
					m.showDetail = true
				}
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	if m.showDetail {
		m.detail, cmd = m.detail.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	if m.showDetail {
		return borderStyle.Render(m.detail.View()) + "\nesc: back  q: quit"
	}
	return m.list.View()
}

func renderDetail(t TaskSummary) string {
	var b strings.Builder
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("task[%d]", t.Index)
	}
	fmt.Fprintln(&b, titleStyle.Render(name))
	fmt.Fprintf(&b, "tcb:   %s\n", colorize.Address(t.TCBAddr))
	fmt.Fprintf(&b, "stack: [%s, %s)\n", colorize.Address(t.StackStart), colorize.Address(t.StackEnd))
	if t.Corrupted {
		fmt.Fprintln(&b, colorize.Flag("status: corrupted"))
	} else {
		fmt.Fprintln(&b, colorize.OK("status: ok"))
	}
	fmt.Fprintln(&b, colorize.Border(strings.Repeat("-", 40)))
	for i, v := range t.Regs {
		regName := fmt.Sprintf("r%d", i)
		if i < len(t.RegNames) {
			regName = t.RegNames[i]
		}
		fmt.Fprintf(&b, "%-8s %s\n", regName, colorize.HexDump(fmt.Sprintf("%08x", v)))
	}
	return b.String()
}
