package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/design-survey/internal/batch"
	"github.com/kelsos/design-survey/internal/models"
)

const maxLogLines = 10

type TaskStatus string

const (
	StatusStarted   TaskStatus = "started"
	StatusSkipped   TaskStatus = "skipped"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

type Model struct {
	total     int
	processed int
	skipped   int
	failed    int
	current   models.TaskID
	logs      []string
	logPath   string
	summary   *batch.Summary
	spinner   spinner.Model
	progress  progress.Model
	width     int
	height    int
	quit      bool
}

type RunStarted struct {
	Total int
}

type TaskUpdate struct {
	TaskID models.TaskID
	Status TaskStatus
	Error  error
}

type RunFinished struct {
	Summary batch.Summary
}

type LogMessage struct {
	Message string
}

func NewModel(logPath string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		logs:     []string{},
		logPath:  logPath,
		spinner:  sp,
		progress: pr,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case RunStarted:
		m.total = msg.Total
		m = m.addLog(fmt.Sprintf("Loaded %d tasks", msg.Total))

	case TaskUpdate:
		m = m.handleTaskUpdate(msg)

	case RunFinished:
		summary := msg.Summary
		m.summary = &summary
		m.current = ""
		m = m.addLog(fmt.Sprintf("Results saved to %s", summary.OutputFile))

	case LogMessage:
		m = m.addLog(msg.Message)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = max(msg.Width-40, 10)
	return m
}

func (m Model) handleTaskUpdate(msg TaskUpdate) Model {
	switch msg.Status {
	case StatusStarted:
		m.current = msg.TaskID
	case StatusSkipped:
		m.skipped++
	case StatusSucceeded:
		m.processed++
		m.current = ""
		m = m.addLog(fmt.Sprintf("✅ Task %s done", msg.TaskID))
	case StatusFailed:
		m.failed++
		m.current = ""
		m = m.addLog(fmt.Sprintf("❌ Task %s failed: %v", msg.TaskID, msg.Error))
	}
	return m
}

func (m Model) addLog(line string) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line))
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	return m
}

// Done is the share of tasks that were skipped, processed or failed.
func (m Model) Done() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.skipped+m.processed+m.failed) / float64(m.total)
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("🎨 Design Survey Prefill"))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("Tasks: %d | ✅ Processed: %d | ⏭ Skipped: %d | ❌ Failed: %d",
		m.total, m.processed, m.skipped, m.failed)
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n\n")

	statusStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var status strings.Builder
	switch {
	case m.summary != nil && m.summary.Interrupted:
		status.WriteString("⏸ Interrupted, progress is checkpointed\n")
	case m.summary != nil:
		status.WriteString("✅ Complete\n")
	case m.current != "":
		status.WriteString(fmt.Sprintf("%s Processing task %s\n", m.spinner.View(), truncate(m.current.String(), 30)))
	default:
		status.WriteString(fmt.Sprintf("%s Waiting\n", m.spinner.View()))
	}
	status.WriteString(m.progress.ViewAs(m.Done()))

	s.WriteString(statusStyle.Render(status.String()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(maxLogLines + 1)

	var logSection strings.Builder
	logSection.WriteString("📝 Recent Logs\n")
	for _, line := range m.logs {
		logSection.WriteString(line + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Press 'q' to stop after the current task"
	if m.logPath != "" {
		footer += " | Logs: " + m.logPath
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
